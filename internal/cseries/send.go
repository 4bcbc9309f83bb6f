package cseries

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Send invokes the configured external send command on a version's branch
// and, when requested, autolinks the result afterwards. The command
// inherits the terminal so interactive senders work.
func (m *Manager) Send(ctx context.Context, nameArg string, autolink bool, wait time.Duration, extra []string) error {
	name, version, err := m.resolveName(nameArg, 0)
	if err != nil {
		return err
	}
	_, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	branch := BranchName(name, sv.Version)

	args := append([]string{}, m.cfg.SendCommand[1:]...)
	args = append(args, extra...)
	args = append(args, branch)
	if m.dryRun {
		m.printf("Would run: %s %s\n", m.cfg.SendCommand[0], strings.Join(args, " "))
	} else {
		cmd := exec.CommandContext(ctx, m.cfg.SendCommand[0], args...)
		cmd.Dir = m.repo.Dir()
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("send command failed: %w", err)
		}
	}

	if !autolink {
		return nil
	}
	return m.Autolink(ctx, nameArg, sv.Version, true, wait)
}
