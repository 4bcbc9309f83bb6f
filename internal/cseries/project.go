package cseries

import "context"

// SetProject resolves a patchwork project by name or link name and stores
// its id so series queries can be scoped to it.
func (m *Manager) SetProject(ctx context.Context, name string) error {
	if name == "" {
		return inputf("set-project needs a project name")
	}
	projects, err := m.client.GetProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if p.Name != name && p.LinkName != name {
			continue
		}
		err := m.tx(func() error {
			return m.store.SetProject(p.Name, p.ID, p.LinkName)
		})
		if err != nil {
			return err
		}
		m.client.SetProject(p.ID, p.LinkName)
		m.printf("Project set to %q (id %d, link %s)\n", p.Name, p.ID, p.LinkName)
		return nil
	}
	return notFoundf("no patchwork project named %q", name)
}

// GetProject prints the configured patchwork project.
func (m *Manager) GetProject() error {
	set, err := m.store.GetSettings()
	if err != nil {
		return err
	}
	if set == nil || !set.ProjID.Valid {
		return notFoundf("no patchwork project configured; run 'cseries patchwork set-project'")
	}
	m.printf("%s (id %d, link %s)\n", set.Name.String, set.ProjID.Int64, set.LinkName.String)
	return nil
}
