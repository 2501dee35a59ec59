// Package report holds the component report sent to the evaluation service:
// the Dependency tree, its licenses, and the Scan envelope around it.
package report

import "encoding/json"

// KeyPrefix prefixes the group:artifact report key of Maven components.
const KeyPrefix = "mvn:"

// Key returns the report key of a component.
func Key(group, artifact string) string {
	return KeyPrefix + group + ":" + artifact
}

// License is a license attached to a component. Two licenses are the same
// when name and URL are equal.
type License struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Dependency is one mapped component of the report tree. It is immutable;
// create it with a Builder. Accessors return copies.
type Dependency struct {
	name         string
	description  string
	homepageURL  string
	repoURL      string
	key          string
	versions     []string
	private      bool
	checksum     string
	licenses     []License
	dependencies []*Dependency
}

func (d *Dependency) Name() string        { return d.name }
func (d *Dependency) Description() string { return d.description }
func (d *Dependency) HomepageURL() string { return d.homepageURL }
func (d *Dependency) RepoURL() string     { return d.repoURL }
func (d *Dependency) Key() string         { return d.key }
func (d *Dependency) Private() bool       { return d.private }

// Checksum returns the tagged checksum, or "" when none was computed.
func (d *Dependency) Checksum() string { return d.checksum }

// HasChecksum reports whether a checksum is attached.
func (d *Dependency) HasChecksum() bool { return d.checksum != "" }

// Versions returns the component versions in insertion order.
func (d *Dependency) Versions() []string {
	return append([]string(nil), d.versions...)
}

// Licenses returns the attached licenses in insertion order.
func (d *Dependency) Licenses() []License {
	return append([]License(nil), d.licenses...)
}

// LicenseNames returns the names of the attached licenses.
func (d *Dependency) LicenseNames() []string {
	names := make([]string, 0, len(d.licenses))
	for _, l := range d.licenses {
		names = append(names, l.Name)
	}
	return names
}

// Dependencies returns the child components in order. It never contains nil.
func (d *Dependency) Dependencies() []*Dependency {
	return append([]*Dependency(nil), d.dependencies...)
}

// Walk visits d and its descendants depth-first, parents before children.
func (d *Dependency) Walk(fn func(depth int, dep *Dependency)) {
	d.walk(0, fn)
}

func (d *Dependency) walk(depth int, fn func(int, *Dependency)) {
	fn(depth, d)
	for _, c := range d.dependencies {
		c.walk(depth+1, fn)
	}
}

// Count returns the number of components in the tree rooted at d.
func (d *Dependency) Count() int {
	n := 0
	d.Walk(func(int, *Dependency) { n++ })
	return n
}

// sameContent reports whether d and other describe the same component with
// the same versions. Used to collapse repeated children.
func (d *Dependency) sameContent(other *Dependency) bool {
	if d.key != other.key || len(d.versions) != len(other.versions) {
		return false
	}
	for i := range d.versions {
		if d.versions[i] != other.versions[i] {
			return false
		}
	}
	return true
}

// SameComponent reports whether both nodes carry the same report key and
// versions.
func SameComponent(a, b *Dependency) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.sameContent(b)
}

type wireDependency struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Key          string        `json:"key"`
	Versions     []string      `json:"versions"`
	HomepageURL  string        `json:"homepageUrl"`
	RepoURL      string        `json:"repoUrl"`
	Private      bool          `json:"private"`
	Checksum     string        `json:"checksum,omitempty"`
	Licenses     []License     `json:"licenses"`
	Dependencies []*Dependency `json:"dependencies"`
}

// MarshalJSON encodes the component in the evaluation service's schema.
func (d *Dependency) MarshalJSON() ([]byte, error) {
	w := wireDependency{
		Name:         d.name,
		Description:  d.description,
		Key:          d.key,
		Versions:     d.versions,
		HomepageURL:  d.homepageURL,
		RepoURL:      d.repoURL,
		Private:      d.private,
		Checksum:     d.checksum,
		Licenses:     d.licenses,
		Dependencies: d.dependencies,
	}
	if w.Versions == nil {
		w.Versions = []string{}
	}
	if w.Licenses == nil {
		w.Licenses = []License{}
	}
	if w.Dependencies == nil {
		w.Dependencies = []*Dependency{}
	}
	return json.Marshal(w)
}
