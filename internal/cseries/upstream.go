package cseries

import "strings"

// UpstreamAdd records a named remote push target.
func (m *Manager) UpstreamAdd(name, url string) error {
	if name == "" || url == "" {
		return inputf("upstream add needs a name and a URL")
	}
	err := m.tx(func() error {
		return m.store.AddUpstream(name, url)
	})
	if err != nil {
		return err
	}
	m.printf("Added upstream %q\n", name)
	return nil
}

// UpstreamDelete removes a remote push target by name.
func (m *Manager) UpstreamDelete(name string) error {
	err := m.tx(func() error {
		return m.store.DeleteUpstream(name)
	})
	if err != nil {
		if strings.Contains(err.Error(), "no upstream") {
			return notFoundf("no upstream named %q", name)
		}
		return err
	}
	m.printf("Deleted upstream %q\n", name)
	return nil
}

// UpstreamList prints the recorded remote targets, default first.
func (m *Manager) UpstreamList() error {
	ups, err := m.store.Upstreams()
	if err != nil {
		return err
	}
	for _, u := range ups {
		marker := " "
		if u.IsDefault {
			marker = "*"
		}
		m.printf("%s %-20s %s\n", marker, u.Name, u.URL)
	}
	return nil
}

// UpstreamDefault marks one remote target as the default used by send.
func (m *Manager) UpstreamDefault(name string) error {
	err := m.tx(func() error {
		return m.store.SetDefaultUpstream(name)
	})
	if err != nil {
		if strings.Contains(err.Error(), "no upstream") {
			return notFoundf("no upstream named %q", name)
		}
		return err
	}
	m.printf("Default upstream is now %q\n", name)
	return nil
}
