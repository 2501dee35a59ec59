package report

// Builder accumulates the fields of a Dependency. It is a staging area for a
// single goroutine; Build returns an independent immutable snapshot, so the
// builder may be discarded or reused afterwards.
//
// The builder stores whatever it is given. Callers filter the unknown
// license sentinel before calling AddLicense.
type Builder struct {
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

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) SetName(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) SetDescription(description string) *Builder {
	b.description = description
	return b
}

func (b *Builder) SetHomepageURL(url string) *Builder {
	b.homepageURL = url
	return b
}

func (b *Builder) SetRepoURL(url string) *Builder {
	b.repoURL = url
	return b
}

func (b *Builder) SetKey(key string) *Builder {
	b.key = key
	return b
}

func (b *Builder) SetPrivate(private bool) *Builder {
	b.private = private
	return b
}

// SetChecksum sets the tagged checksum ("sha-1:<hex>").
func (b *Builder) SetChecksum(checksum string) *Builder {
	b.checksum = checksum
	return b
}

// AddVersion adds v unless it is already present.
func (b *Builder) AddVersion(v string) *Builder {
	for _, have := range b.versions {
		if have == v {
			return b
		}
	}
	if b.versions == nil {
		b.versions = make([]string, 0, 1)
	}
	b.versions = append(b.versions, v)
	return b
}

// AddLicense adds a license without URL.
func (b *Builder) AddLicense(name string) *Builder {
	return b.addLicense(License{Name: name})
}

// AddLicenseURL adds a license with URL. A license equal on name and URL to
// one already present is ignored.
func (b *Builder) AddLicenseURL(name, url string) *Builder {
	return b.addLicense(License{Name: name, URL: url})
}

func (b *Builder) addLicense(l License) *Builder {
	for _, have := range b.licenses {
		if have == l {
			return b
		}
	}
	if b.licenses == nil {
		b.licenses = make([]License, 0, 1)
	}
	b.licenses = append(b.licenses, l)
	return b
}

// AddDependency appends a child component. A nil child is ignored.
func (b *Builder) AddDependency(child *Dependency) *Builder {
	if child == nil {
		return b
	}
	if b.dependencies == nil {
		b.dependencies = make([]*Dependency, 0, 4)
	}
	b.dependencies = append(b.dependencies, child)
	return b
}

// HasDependency reports whether a child with the same report key and
// versions as child has already been added.
func (b *Builder) HasDependency(child *Dependency) bool {
	for _, have := range b.dependencies {
		if SameComponent(have, child) {
			return true
		}
	}
	return false
}

// Build returns an immutable snapshot of the accumulated fields.
func (b *Builder) Build() *Dependency {
	return &Dependency{
		name:         b.name,
		description:  b.description,
		homepageURL:  b.homepageURL,
		repoURL:      b.repoURL,
		key:          b.key,
		versions:     cloneSlice(b.versions),
		private:      b.private,
		checksum:     b.checksum,
		licenses:     cloneSlice(b.licenses),
		dependencies: cloneSlice(b.dependencies),
	}
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
