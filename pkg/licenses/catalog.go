package licenses

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/exploopio/depaudit/pkg/errors"
	"github.com/exploopio/depaudit/pkg/project"
)

// Catalog is a local SQLite store of component licenses, filled by Import
// and queried as a Resolver. It lets a team curate licenses for components
// whose descriptors declare none.
type Catalog struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenCatalog opens (creating if needed) the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.E(errors.KindInvalidInput, "licenses.OpenCatalog", "create catalog directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.E(errors.KindInternal, "licenses.OpenCatalog", "open database", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.E(errors.KindInternal, "licenses.OpenCatalog", "set pragma", err)
		}
	}

	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, errors.E(errors.KindInternal, "licenses.OpenCatalog", "init schema", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS components (
		group_id TEXT NOT NULL,
		artifact_id TEXT NOT NULL,
		version TEXT NOT NULL,
		packaging TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		scm_url TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (group_id, artifact_id, version)
	);

	CREATE TABLE IF NOT EXISTS component_licenses (
		group_id TEXT NOT NULL,
		artifact_id TEXT NOT NULL,
		version TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (group_id, artifact_id, version, position),
		FOREIGN KEY (group_id, artifact_id, version)
			REFERENCES components(group_id, artifact_id, version) ON DELETE CASCADE
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Import stores the given projects and their declared licenses, replacing
// earlier rows for the same group:artifact:version. It returns the number
// of components written.
func (c *Catalog) Import(ctx context.Context, projects []*project.Project) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.E(errors.KindInternal, "licenses.Import", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n := 0
	for _, p := range projects {
		if p == nil || p.ArtifactID == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO components (group_id, artifact_id, version, packaging, name, description, url, scm_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(group_id, artifact_id, version) DO UPDATE SET
				packaging = excluded.packaging,
				name = excluded.name,
				description = excluded.description,
				url = excluded.url,
				scm_url = excluded.scm_url,
				updated_at = CURRENT_TIMESTAMP
		`, p.GroupID, p.ArtifactID, p.Version, p.Packaging, p.Name, p.Description, p.URL, p.SCMURL)
		if err != nil {
			return 0, errors.E(errors.KindInternal, "licenses.Import", "insert "+p.String(), err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM component_licenses WHERE group_id = ? AND artifact_id = ? AND version = ?`,
			p.GroupID, p.ArtifactID, p.Version); err != nil {
			return 0, errors.E(errors.KindInternal, "licenses.Import", "clear licenses of "+p.String(), err)
		}

		pos := 0
		for _, l := range p.Licenses {
			if l.Name == "" || l.Name == UnknownLicense {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO component_licenses (group_id, artifact_id, version, position, name, url)
				VALUES (?, ?, ?, ?, ?, ?)
			`, p.GroupID, p.ArtifactID, p.Version, pos, l.Name, l.URL); err != nil {
				return 0, errors.E(errors.KindInternal, "licenses.Import", "insert license of "+p.String(), err)
			}
			pos++
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.E(errors.KindInternal, "licenses.Import", "commit", err)
	}
	return n, nil
}

// Resolve implements Resolver. It returns every cataloged component,
// ordered by coordinates; components without license rows resolve to
// UnknownLicense.
func (c *Catalog) Resolve(ctx context.Context, _ *project.Project) (*Resolution, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.QueryContext(ctx, `
		SELECT c.group_id, c.artifact_id, c.version, c.packaging, c.name, c.description, c.url, c.scm_url,
			l.name, l.url
		FROM components c
		LEFT JOIN component_licenses l
			ON l.group_id = c.group_id AND l.artifact_id = c.artifact_id AND l.version = c.version
		ORDER BY c.group_id, c.artifact_id, c.version, l.position
	`)
	if err != nil {
		return nil, errors.E(errors.KindInternal, "licenses.Resolve", err)
	}
	defer rows.Close()

	res := &Resolution{}
	var cur *project.Project
	flush := func() {
		if cur != nil {
			res.Entries = append(res.Entries, NewEntry(cur))
		}
	}
	for rows.Next() {
		var p project.Project
		var licName, licURL sql.NullString
		if err := rows.Scan(&p.GroupID, &p.ArtifactID, &p.Version, &p.Packaging,
			&p.Name, &p.Description, &p.URL, &p.SCMURL, &licName, &licURL); err != nil {
			return nil, errors.E(errors.KindInternal, "licenses.Resolve", err)
		}
		if cur == nil || cur.String() != p.String() {
			flush()
			cur = &p
		}
		if licName.Valid {
			cur.Licenses = append(cur.Licenses, project.License{Name: licName.String, URL: licURL.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(errors.KindInternal, "licenses.Resolve", err)
	}
	flush()
	return res, nil
}

// Lookup returns the cataloged entry for group:artifact:version.
func (c *Catalog) Lookup(ctx context.Context, group, artifact, version string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := project.Project{GroupID: group, ArtifactID: artifact, Version: version}
	err := c.db.QueryRowContext(ctx, `
		SELECT packaging, name, description, url, scm_url FROM components
		WHERE group_id = ? AND artifact_id = ? AND version = ?
	`, group, artifact, version).Scan(&p.Packaging, &p.Name, &p.Description, &p.URL, &p.SCMURL)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.E(errors.KindInternal, "licenses.Lookup", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT name, url FROM component_licenses
		WHERE group_id = ? AND artifact_id = ? AND version = ?
		ORDER BY position
	`, group, artifact, version)
	if err != nil {
		return Entry{}, false, errors.E(errors.KindInternal, "licenses.Lookup", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l project.License
		if err := rows.Scan(&l.Name, &l.URL); err != nil {
			return Entry{}, false, errors.E(errors.KindInternal, "licenses.Lookup", err)
		}
		p.Licenses = append(p.Licenses, l)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, false, errors.E(errors.KindInternal, "licenses.Lookup", err)
	}
	return NewEntry(&p), true, nil
}
