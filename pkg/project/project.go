// Package project describes the projects that take part in a scan: the
// scanned project itself and every resolved dependency, as seen through
// their project descriptors.
package project

// Project is a project descriptor.
type Project struct {
	GroupID     string    `json:"groupId" yaml:"group_id"`
	ArtifactID  string    `json:"artifactId" yaml:"artifact_id"`
	Version     string    `json:"version" yaml:"version"`
	Packaging   string    `json:"packaging,omitempty" yaml:"packaging,omitempty"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string    `json:"url,omitempty" yaml:"url,omitempty"`
	SCMURL      string    `json:"scmUrl,omitempty" yaml:"scm_url,omitempty"`
	Licenses    []License `json:"licenses,omitempty" yaml:"licenses,omitempty"`
}

// License is a license declared in a project descriptor.
type License struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// DisplayName returns the project name, falling back to the artifact id.
func (p *Project) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ArtifactID
}

// LicenseNames returns the names of the declared licenses in order.
func (p *Project) LicenseNames() []string {
	names := make([]string, 0, len(p.Licenses))
	for _, l := range p.Licenses {
		names = append(names, l.Name)
	}
	return names
}

// ModuleID returns group:artifact.
func (p *Project) ModuleID() string {
	return p.GroupID + ":" + p.ArtifactID
}

// String returns group:artifact:version.
func (p *Project) String() string {
	return p.GroupID + ":" + p.ArtifactID + ":" + p.Version
}
