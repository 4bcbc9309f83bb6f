package ui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// usePager reports whether output should be piped to a pager: stdout is a
// terminal, paging isn't disabled, and the content doesn't fit on screen.
func usePager(content string) bool {
	if os.Getenv("CSERIES_NO_PAGER") != "" {
		return false
	}
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return false
	}
	_, height, err := term.GetSize(fd)
	if err != nil || height == 0 {
		return false
	}
	return strings.Count(content, "\n")+1 > height-1
}

// pagerCommand returns the pager to use: $CSERIES_PAGER, then $PAGER, then
// less.
func pagerCommand() []string {
	for _, env := range []string{"CSERIES_PAGER", "PAGER"} {
		if pager := os.Getenv(env); pager != "" {
			return strings.Fields(pager)
		}
	}
	return []string{"less"}
}

// Page writes content to stdout, through a pager when it would scroll off
// the screen.
func Page(content string) error {
	if !usePager(content) {
		fmt.Print(content)
		return nil
	}

	parts := pagerCommand()
	if len(parts) == 0 {
		fmt.Print(content)
		return nil
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// -R keeps colour, -F quits when it fits, -X skips screen clearing.
	if os.Getenv("LESS") == "" {
		cmd.Env = append(os.Environ(), "LESS=-RFX")
	} else {
		cmd.Env = os.Environ()
	}
	return cmd.Run()
}
