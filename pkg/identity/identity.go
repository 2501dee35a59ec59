// Package identity provides the canonical key used to match components
// across the dependency graph and the license table.
package identity

import (
	"regexp"

	"github.com/exploopio/depaudit/pkg/artifact"
	"github.com/exploopio/depaudit/pkg/project"
)

// Inherited replaces an empty group or version in the canonical form.
const Inherited = "[inherited]"

// snapshotTimestamp matches versions of deployed snapshot builds, e.g.
// 1.0-20151123.141732-1.
var snapshotTimestamp = regexp.MustCompile(`^(.*)-([0-9]{8}\.[0-9]{6})-([0-9]+)$`)

// ID identifies a component by group, artifact and version. Two IDs are
// interchangeable when their canonical strings are equal, however they were
// built; use Key for map keys and Equal for comparison.
type ID struct {
	group    string
	artifact string
	version  string
	key      string
}

// New returns the identity of group:artifact:version.
func New(group, artifact, version string) ID {
	return ID{
		group:    group,
		artifact: artifact,
		version:  version,
		key:      canonical(group, artifact, version),
	}
}

// Fallback returns the identity keyed on a base version instead of an exact
// version. It is only ever used as a second lookup key.
func Fallback(group, artifact, baseVersion string) ID {
	return New(group, artifact, baseVersion)
}

// FromArtifact projects an artifact reference onto its identity.
func FromArtifact(a *artifact.Artifact) ID {
	return New(a.GroupID, a.ArtifactID, a.Version)
}

// FallbackFromArtifact projects an artifact reference onto its base version
// identity. The artifact's own base version wins over one derived from its
// version.
func FallbackFromArtifact(a *artifact.Artifact) ID {
	base := a.BaseVersion
	if base == "" {
		base = BaseVersion(a.Version)
	}
	return Fallback(a.GroupID, a.ArtifactID, base)
}

// FromProject projects a project descriptor onto its identity.
func FromProject(p *project.Project) ID {
	return New(p.GroupID, p.ArtifactID, p.Version)
}

// BaseVersion strips the timestamp qualifier of a deployed snapshot build:
// 1.0-20151123.141732-1 becomes 1.0-SNAPSHOT. Other versions are returned
// unchanged.
func BaseVersion(version string) string {
	m := snapshotTimestamp.FindStringSubmatch(version)
	if m == nil {
		return version
	}
	return m[1] + "-SNAPSHOT"
}

func canonical(group, artifact, version string) string {
	if group == "" {
		group = Inherited
	}
	if version == "" {
		version = Inherited
	}
	return group + ":" + artifact + ":" + version
}

// Key returns the canonical string, suitable as a map key.
func (id ID) Key() string {
	if id.key == "" {
		return canonical(id.group, id.artifact, id.version)
	}
	return id.key
}

// String returns the canonical group:artifact:version form.
func (id ID) String() string {
	return id.Key()
}

// Equal reports whether both identities have the same canonical form.
func (id ID) Equal(other ID) bool {
	return id.Key() == other.Key()
}

func (id ID) GroupID() string    { return id.group }
func (id ID) ArtifactID() string { return id.artifact }
func (id ID) Version() string    { return id.version }
