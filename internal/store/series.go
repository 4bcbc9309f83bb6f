package store

import (
	"database/sql"
	"fmt"
)

// Series is a named patch series.
type Series struct {
	ID       int64
	Name     string
	Desc     string
	Archived bool
}

// SerVer is one version of a series. Link, cover and remote-name fields are
// null until the series has been linked or synced against patchwork.
type SerVer struct {
	ID               int64
	SeriesID         int64
	Version          int
	Link             sql.NullString
	CoverID          sql.NullString
	CoverNumComments sql.NullInt64
	Name             sql.NullString
}

// PCommit is one patch within one ser_ver, 1:1 with a local commit.
type PCommit struct {
	ID          int64
	SVID        int64
	Seq         int
	Subject     string
	ChangeID    sql.NullString
	State       sql.NullString
	PatchID     sql.NullInt64
	NumComments sql.NullInt64
}

// Upstream is a named remote push target.
type Upstream struct {
	Name      string
	URL       string
	IsDefault bool
}

// Settings holds the configured patchwork project. At most one row exists.
type Settings struct {
	Name     sql.NullString
	ProjID   sql.NullInt64
	LinkName sql.NullString
}

// AddSeries inserts a series row and returns its id.
func (s *Store) AddSeries(name, desc string) (int64, error) {
	res, err := s.q().Exec(
		`INSERT INTO series (name, desc, archived) VALUES (?, ?, 0)`, name, desc)
	if err != nil {
		return 0, wrapConstraint(err)
	}
	return res.LastInsertId()
}

// SeriesByName returns the non-archived series with the given name, or nil.
func (s *Store) SeriesByName(name string) (*Series, error) {
	return s.scanSeries(s.q().QueryRow(
		`SELECT id, name, desc, archived FROM series WHERE name = ? AND archived = 0`, name))
}

// SeriesByNameAny returns the series with the given name regardless of
// archived state, or nil.
func (s *Store) SeriesByNameAny(name string) (*Series, error) {
	return s.scanSeries(s.q().QueryRow(
		`SELECT id, name, desc, archived FROM series WHERE name = ?`, name))
}

// SeriesByID returns the series with the given id, or nil.
func (s *Store) SeriesByID(id int64) (*Series, error) {
	return s.scanSeries(s.q().QueryRow(
		`SELECT id, name, desc, archived FROM series WHERE id = ?`, id))
}

func (s *Store) scanSeries(row *sql.Row) (*Series, error) {
	var ser Series
	var archived int
	err := row.Scan(&ser.ID, &ser.Name, &ser.Desc, &archived)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ser.Archived = archived != 0
	return &ser, nil
}

// AllSeries lists series ordered by name. Archived series are included
// only when requested.
func (s *Store) AllSeries(includeArchived bool) ([]Series, error) {
	query := `SELECT id, name, desc, archived FROM series`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY name`

	rows, err := s.q().Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Series
	for rows.Next() {
		var ser Series
		var archived int
		if err := rows.Scan(&ser.ID, &ser.Name, &ser.Desc, &archived); err != nil {
			return nil, err
		}
		ser.Archived = archived != 0
		out = append(out, ser)
	}
	return out, rows.Err()
}

// RenameSeries updates the series name.
func (s *Store) RenameSeries(id int64, newName string) error {
	_, err := s.q().Exec(`UPDATE series SET name = ? WHERE id = ?`, newName, id)
	return wrapConstraint(err)
}

// SetArchived toggles the archived flag.
func (s *Store) SetArchived(id int64, archived bool) error {
	val := 0
	if archived {
		val = 1
	}
	_, err := s.q().Exec(`UPDATE series SET archived = ? WHERE id = ?`, val, id)
	return wrapConstraint(err)
}

// DeleteSeries removes a series. Its ser_vers and their pcommits cascade.
func (s *Store) DeleteSeries(id int64) error {
	_, err := s.q().Exec(`DELETE FROM series WHERE id = ?`, id)
	return err
}

// AddSerVer inserts a new version row for a series and returns its id.
func (s *Store) AddSerVer(seriesID int64, version int) (int64, error) {
	res, err := s.q().Exec(
		`INSERT INTO ser_ver (series_id, version) VALUES (?, ?)`, seriesID, version)
	if err != nil {
		return 0, wrapConstraint(err)
	}
	return res.LastInsertId()
}

// SerVer returns the row for (seriesID, version), or nil.
func (s *Store) SerVer(seriesID int64, version int) (*SerVer, error) {
	rows, err := s.q().Query(serVerSelect+` WHERE series_id = ? AND version = ?`,
		seriesID, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	svs, err := scanSerVers(rows)
	if err != nil || len(svs) == 0 {
		return nil, err
	}
	return &svs[0], nil
}

const serVerSelect = `SELECT id, series_id, version, link, cover_id, cover_num_comments, name FROM ser_ver`

// SerVersForSeries lists a series' versions in ascending order.
func (s *Store) SerVersForSeries(seriesID int64) ([]SerVer, error) {
	rows, err := s.q().Query(serVerSelect+` WHERE series_id = ? ORDER BY version`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSerVers(rows)
}

// AllSerVers lists every ser_ver row, ordered by series then version.
func (s *Store) AllSerVers() ([]SerVer, error) {
	rows, err := s.q().Query(serVerSelect + ` ORDER BY series_id, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSerVers(rows)
}

func scanSerVers(rows *sql.Rows) ([]SerVer, error) {
	var out []SerVer
	for rows.Next() {
		var sv SerVer
		err := rows.Scan(&sv.ID, &sv.SeriesID, &sv.Version, &sv.Link,
			&sv.CoverID, &sv.CoverNumComments, &sv.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// MaxVersion returns the highest version recorded for a series, or 0 when
// the series has no versions.
func (s *Store) MaxVersion(seriesID int64) (int, error) {
	var v sql.NullInt64
	err := s.q().QueryRow(
		`SELECT MAX(version) FROM ser_ver WHERE series_id = ?`, seriesID).Scan(&v)
	if err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// DeleteSerVer removes one version row; its pcommits cascade.
func (s *Store) DeleteSerVer(id int64) error {
	_, err := s.q().Exec(`DELETE FROM ser_ver WHERE id = ?`, id)
	return err
}

// SetLink writes the remote series link for a ser_ver.
func (s *Store) SetLink(svid int64, link string) error {
	_, err := s.q().Exec(`UPDATE ser_ver SET link = ? WHERE id = ?`, link, svid)
	return err
}

// SetCover records the remote cover-letter details on a ser_ver.
func (s *Store) SetCover(svid int64, coverID string, numComments int, name string) error {
	_, err := s.q().Exec(
		`UPDATE ser_ver SET cover_id = ?, cover_num_comments = ?, name = ? WHERE id = ?`,
		coverID, numComments, name, svid)
	return err
}

// PCommits lists a ser_ver's patches in seq order.
func (s *Store) PCommits(svid int64) ([]PCommit, error) {
	rows, err := s.q().Query(
		`SELECT id, svid, seq, subject, change_id, state, patch_id, num_comments
		 FROM pcommit WHERE svid = ? ORDER BY seq`, svid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PCommit
	for rows.Next() {
		var pc PCommit
		err := rows.Scan(&pc.ID, &pc.SVID, &pc.Seq, &pc.Subject, &pc.ChangeID,
			&pc.State, &pc.PatchID, &pc.NumComments)
		if err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// ReplacePCommits swaps a ser_ver's patch rows for a new contiguous set.
// seq values are assigned from the slice order, starting at 0.
func (s *Store) ReplacePCommits(svid int64, pcs []PCommit) error {
	if _, err := s.q().Exec(`DELETE FROM pcommit WHERE svid = ?`, svid); err != nil {
		return err
	}
	for i, pc := range pcs {
		_, err := s.q().Exec(
			`INSERT INTO pcommit (svid, seq, subject, change_id, state, patch_id, num_comments)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			svid, i, pc.Subject, pc.ChangeID, pc.State, pc.PatchID, pc.NumComments)
		if err != nil {
			return wrapConstraint(err)
		}
	}
	return nil
}

// SetPCommitChangeID records (or clears) the Change-Id mark of one patch.
func (s *Store) SetPCommitChangeID(id int64, changeID sql.NullString) error {
	_, err := s.q().Exec(`UPDATE pcommit SET change_id = ? WHERE id = ?`, changeID, id)
	return err
}

// UpdatePCommitRemote records the remote review state for one patch.
func (s *Store) UpdatePCommitRemote(id int64, state string, patchID int64, numComments int) error {
	_, err := s.q().Exec(
		`UPDATE pcommit SET state = ?, patch_id = ?, num_comments = ? WHERE id = ?`,
		state, patchID, numComments, id)
	return err
}

// AddUpstream inserts a remote target.
func (s *Store) AddUpstream(name, url string) error {
	_, err := s.q().Exec(`INSERT INTO upstream (name, url, is_default) VALUES (?, ?, 0)`,
		name, url)
	return wrapConstraint(err)
}

// DeleteUpstream removes a remote target by name.
func (s *Store) DeleteUpstream(name string) error {
	res, err := s.q().Exec(`DELETE FROM upstream WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no upstream named %q", name)
	}
	return nil
}

// Upstreams lists remote targets, default first.
func (s *Store) Upstreams() ([]Upstream, error) {
	rows, err := s.q().Query(
		`SELECT name, url, is_default FROM upstream ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Upstream
	for rows.Next() {
		var u Upstream
		var isDefault int
		if err := rows.Scan(&u.Name, &u.URL, &isDefault); err != nil {
			return nil, err
		}
		u.IsDefault = isDefault != 0
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetDefaultUpstream marks one remote target as the default, clearing any
// previous default so at most one row carries the flag.
func (s *Store) SetDefaultUpstream(name string) error {
	if _, err := s.q().Exec(`UPDATE upstream SET is_default = 0`); err != nil {
		return err
	}
	res, err := s.q().Exec(`UPDATE upstream SET is_default = 1 WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no upstream named %q", name)
	}
	return nil
}

// GetSettings returns the settings row, or nil when unset.
func (s *Store) GetSettings() (*Settings, error) {
	var set Settings
	err := s.q().QueryRow(
		`SELECT name, proj_id, link_name FROM settings WHERE id = 1`).
		Scan(&set.Name, &set.ProjID, &set.LinkName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// SetProject writes the configured patchwork project into settings.
func (s *Store) SetProject(name string, projID int, linkName string) error {
	_, err := s.q().Exec(
		`INSERT INTO settings (id, name, proj_id, link_name) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, proj_id = excluded.proj_id, link_name = excluded.link_name`,
		name, projID, linkName)
	return err
}
