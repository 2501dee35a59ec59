// Package licenses resolves the declared licenses of a project's resolved
// components.
package licenses

import (
	"context"
	"sort"

	"github.com/exploopio/depaudit/pkg/identity"
	"github.com/exploopio/depaudit/pkg/project"
)

// UnknownLicense is reported for a component whose license could not be
// determined. It is a marker, not a license name.
const UnknownLicense = "Unknown license"

// Entry is the resolved license list of one component. Licenses is either
// a list of license names or exactly []string{UnknownLicense}.
type Entry struct {
	Project  *project.Project
	Licenses []string
}

// NewEntry returns the entry for p with its declared license names, or the
// unknown marker if it declares none.
func NewEntry(p *project.Project) Entry {
	return Entry{Project: p, Licenses: Normalize(p.LicenseNames())}
}

// Known reports whether the entry carries usable license names.
func (e Entry) Known() bool {
	return !IsUnknown(e.Licenses)
}

// Normalize returns names without empty strings, or []string{UnknownLicense}
// if nothing remains.
func Normalize(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return []string{UnknownLicense}
	}
	return out
}

// IsUnknown reports whether names carries no usable license: it is empty or
// exactly the unknown marker.
func IsUnknown(names []string) bool {
	return len(names) == 0 || (len(names) == 1 && names[0] == UnknownLicense)
}

// Resolution is the result of resolving a project's licenses.
type Resolution struct {
	Entries []Entry
}

// Group lists the components carrying one license.
type Group struct {
	License  string
	Projects []*project.Project
}

// ByLicense groups the components by license name, ordered by name.
// Components with unknown license are grouped under UnknownLicense.
func (r *Resolution) ByLicense() []Group {
	idx := make(map[string]int)
	var groups []Group
	for _, e := range r.Entries {
		names := e.Licenses
		if len(names) == 0 {
			names = []string{UnknownLicense}
		}
		for _, name := range names {
			i, ok := idx[name]
			if !ok {
				i = len(groups)
				idx[name] = i
				groups = append(groups, Group{License: name})
			}
			groups[i].Projects = append(groups[i].Projects, e.Project)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].License < groups[j].License })
	return groups
}

// Resolver resolves the licenses of every component resolved for a project.
type Resolver interface {
	Resolve(ctx context.Context, p *project.Project) (*Resolution, error)
}

// Static is a Resolver returning a fixed resolution.
type Static struct {
	Resolution *Resolution
}

// Resolve implements Resolver.
func (s Static) Resolve(ctx context.Context, _ *project.Project) (*Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Resolution == nil {
		return &Resolution{}, nil
	}
	return s.Resolution, nil
}

// Chain queries resolvers in order and merges their entries. For a
// component present in several results, the first resolver wins, except
// that a known license list replaces an earlier unknown one.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, p *project.Project) (*Resolution, error) {
	merged := &Resolution{}
	idx := make(map[string]int)
	for _, r := range c {
		res, err := r.Resolve(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, e := range res.Entries {
			if e.Project == nil {
				continue
			}
			key := identity.FromProject(e.Project).Key()
			i, ok := idx[key]
			if !ok {
				idx[key] = len(merged.Entries)
				merged.Entries = append(merged.Entries, e)
				continue
			}
			if !merged.Entries[i].Known() && e.Known() {
				merged.Entries[i] = e
			}
		}
	}
	return merged, nil
}

var (
	_ Resolver = Static{}
	_ Resolver = Chain(nil)
	_ Resolver = (*FileResolver)(nil)
	_ Resolver = (*Catalog)(nil)
)
