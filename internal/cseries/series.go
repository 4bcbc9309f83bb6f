package cseries

// Rename changes a series name and renames every one of its version
// branches. It refuses when any target branch already exists or any source
// branch is missing, before touching anything.
func (m *Manager) Rename(oldArg, newArg string) error {
	oldName, v, err := SplitNameVersion(oldArg, 0)
	if err != nil {
		return err
	}
	if v != 0 {
		return inputf("rename takes a series name, not a version: %q", oldArg)
	}
	newName, v, err := SplitNameVersion(newArg, 0)
	if err != nil {
		return err
	}
	if v != 0 {
		return inputf("rename takes a series name, not a version: %q", newArg)
	}
	if err := validName(newName); err != nil {
		return err
	}

	ser, err := m.store.SeriesByName(oldName)
	if err != nil {
		return err
	}
	if ser == nil {
		return notFoundf("no series named %q", oldName)
	}
	svs, err := m.store.SerVersForSeries(ser.ID)
	if err != nil {
		return err
	}

	// Verify every branch move up front so the rename is all-or-nothing.
	type move struct{ from, to string }
	var moves []move
	for _, sv := range svs {
		from := BranchName(oldName, sv.Version)
		to := BranchName(newName, sv.Version)
		if !m.repo.BranchExists(from) {
			return notFoundf("no branch named %q", from)
		}
		if m.repo.BranchExists(to) {
			return conflictf("branch %q already exists", to)
		}
		moves = append(moves, move{from, to})
	}

	return m.tx(func() error {
		if err := m.store.RenameSeries(ser.ID, newName); err != nil {
			return err
		}
		if m.dryRun {
			for _, mv := range moves {
				m.printf("Would rename branch %q to %q\n", mv.from, mv.to)
			}
			return nil
		}
		for i, mv := range moves {
			if err := m.repo.RenameBranch(mv.from, mv.to); err != nil {
				// Undo completed moves so the rollback leaves branches as
				// they were.
				for j := i - 1; j >= 0; j-- {
					_ = m.repo.RenameBranch(moves[j].to, moves[j].from)
				}
				return err
			}
			m.printf("Renamed branch %q to %q\n", mv.from, mv.to)
		}
		return nil
	})
}

// Remove deletes a series and all its versions and patches. Branches are
// left alone.
func (m *Manager) Remove(nameArg string) error {
	name, v, err := SplitNameVersion(nameArg, 0)
	if err != nil {
		return err
	}
	if v != 0 {
		return inputf("remove takes a series name; use remove-version for one version")
	}
	ser, err := m.store.SeriesByName(name)
	if err != nil {
		return err
	}
	if ser == nil {
		return notFoundf("no series named %q", name)
	}
	err = m.tx(func() error {
		return m.store.DeleteSeries(ser.ID)
	})
	if err != nil {
		return err
	}
	m.printf("Removed series %q\n", name)
	return nil
}

// RemoveVersion deletes one version of a series; its patches cascade. The
// branch is left alone.
func (m *Manager) RemoveVersion(nameArg string, version int) error {
	name, version, err := m.resolveName(nameArg, version)
	if err != nil {
		return err
	}
	if version == 0 {
		return inputf("remove-version needs a version; pass -V or a versioned name")
	}
	ser, sv, err := m.seriesVer(name, version)
	if err != nil {
		return err
	}
	err = m.tx(func() error {
		return m.store.DeleteSerVer(sv.ID)
	})
	if err != nil {
		return err
	}
	m.printf("Removed %q v%d\n", ser.Name, version)
	return nil
}

// Archive hides a series from listings and frees its name for reuse.
func (m *Manager) Archive(nameArg string) error {
	return m.setArchived(nameArg, true)
}

// Unarchive restores an archived series.
func (m *Manager) Unarchive(nameArg string) error {
	return m.setArchived(nameArg, false)
}

func (m *Manager) setArchived(nameArg string, archived bool) error {
	name, v, err := SplitNameVersion(nameArg, 0)
	if err != nil {
		return err
	}
	if v != 0 {
		return inputf("archive takes a series name, not a version: %q", nameArg)
	}
	// Archiving acts on the live row; unarchiving may need to find a row
	// hidden from the default lookup.
	ser, err := m.store.SeriesByName(name)
	if err != nil {
		return err
	}
	if ser == nil && !archived {
		if ser, err = m.store.SeriesByNameAny(name); err != nil {
			return err
		}
	}
	if ser == nil {
		return notFoundf("no series named %q", name)
	}
	if ser.Archived == archived {
		state := "archived"
		if !archived {
			state = "not archived"
		}
		return inputf("series %q is already %s", name, state)
	}
	err = m.tx(func() error {
		return m.store.SetArchived(ser.ID, archived)
	})
	if err != nil {
		return err
	}
	if archived {
		m.printf("Archived series %q\n", name)
	} else {
		m.printf("Unarchived series %q\n", name)
	}
	return nil
}
