package store

// LatestVersion is the current schema version. Increment when adding
// migrations.
const LatestVersion = 2

// migrations maps schema versions to the SQL that brings the database from
// (version-1) to (version). Version 0 is the initial schema; it is applied
// when the database file is first created.
var migrations = map[int]string{
	// Initial tables.
	0: `
-- A named patch series. The name never carries a version suffix; branch
-- names are derived as <name> for v1 and <name><version> for v2+.
CREATE TABLE IF NOT EXISTS series (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT    NOT NULL,
	desc     TEXT    NOT NULL DEFAULT '',
	archived INTEGER NOT NULL DEFAULT 0
);

-- Name is unique among non-archived series only.
CREATE UNIQUE INDEX IF NOT EXISTS idx_series_name
	ON series(name) WHERE archived = 0;

-- One version of a series.
CREATE TABLE IF NOT EXISTS ser_ver (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	series_id INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	link      TEXT,
	cover_id  TEXT,
	name      TEXT,
	UNIQUE(series_id, version)
);

-- One patch (commit) within one ser_ver. seq is the 0-based position in
-- the branch, oldest first.
CREATE TABLE IF NOT EXISTS pcommit (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	svid         INTEGER NOT NULL REFERENCES ser_ver(id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	subject      TEXT    NOT NULL,
	change_id    TEXT,
	state        TEXT,
	patch_id     INTEGER,
	num_comments INTEGER,
	UNIQUE(svid, seq)
);

-- Named remote push targets used by 'send'.
CREATE TABLE IF NOT EXISTS upstream (
	name       TEXT    NOT NULL UNIQUE,
	url        TEXT    NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0
);

-- Singleton row holding the configured patchwork project.
CREATE TABLE IF NOT EXISTS settings (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	name      TEXT,
	proj_id   INTEGER,
	link_name TEXT
);
`,

	// Track the schema version in the database itself. Databases written
	// before this migration have no schema_version table and read as v0.
	1: `
CREATE TABLE IF NOT EXISTS schema_version (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL
);
`,

	// Cover-letter comment counts on each ser_ver.
	2: `
ALTER TABLE ser_ver ADD COLUMN cover_num_comments INTEGER;
`,
}
