package mapper

import (
	"github.com/exploopio/depaudit/pkg/identity"
	"github.com/exploopio/depaudit/pkg/licenses"
	"github.com/exploopio/depaudit/pkg/project"
)

// Table maps component identities to the matched project and its resolved
// licenses. It is read-only once built.
type Table struct {
	entries map[string]licenses.Entry
	root    identity.ID
}

// NewTable builds the lookup table for a scan. The root project is inserted
// first under its own identity with its own declared licenses, so it takes
// part in matching like any dependency and no dependency entry replaces it.
// Among dependency entries, the first one for an identity wins.
func NewTable(root *project.Project, rootLicenses []string, entries []licenses.Entry) *Table {
	t := &Table{entries: make(map[string]licenses.Entry, len(entries)+1)}
	if root != nil {
		t.root = identity.FromProject(root)
		t.entries[t.root.Key()] = licenses.Entry{Project: root, Licenses: rootLicenses}
	}
	for _, e := range entries {
		if e.Project == nil {
			continue
		}
		key := identity.FromProject(e.Project).Key()
		if _, exists := t.entries[key]; exists {
			continue
		}
		t.entries[key] = e
	}
	return t
}

// Lookup returns the entry stored under id.
func (t *Table) Lookup(id identity.ID) (licenses.Entry, bool) {
	if t == nil {
		return licenses.Entry{}, false
	}
	e, ok := t.entries[id.Key()]
	return e, ok
}

// Root returns the identity of the root project.
func (t *Table) Root() identity.ID {
	return t.root
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
