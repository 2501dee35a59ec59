// Package artifact models resolved artifact references and reconciles
// references that lack a backing file against the project's resolved set.
package artifact

import "fmt"

// Artifact is a resolved artifact reference as delivered by a dependency
// graph provider.
type Artifact struct {
	GroupID    string `json:"groupId" yaml:"group_id"`
	ArtifactID string `json:"artifactId" yaml:"artifact_id"`
	Version    string `json:"version" yaml:"version"`

	// BaseVersion is the symbolic version of a timestamped snapshot build
	// (e.g. 1.0-SNAPSHOT for 1.0-20151123.141732-1). Optional.
	BaseVersion string `json:"baseVersion,omitempty" yaml:"base_version,omitempty"`

	// Classifier distinguishes nil (absent) from "" (empty). Resolution
	// layers disagree on which one they emit for "no classifier".
	Classifier *string `json:"classifier,omitempty" yaml:"classifier,omitempty"`

	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`

	// File is the local path of the artifact's content, if resolved.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// HasClassifier reports whether the artifact carries a non-empty classifier.
func (a *Artifact) HasClassifier() bool {
	return a.Classifier != nil && *a.Classifier != ""
}

// ClassifierOrEmpty returns the classifier, mapping nil to "".
func (a *Artifact) ClassifierOrEmpty() string {
	if a.Classifier == nil {
		return ""
	}
	return *a.Classifier
}

// HasFile reports whether the artifact has a backing file path.
func (a *Artifact) HasFile() bool {
	return a.File != ""
}

// Coordinates returns group:artifact:type:classifier:version.
func (a *Artifact) Coordinates() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", a.GroupID, a.ArtifactID, a.Type, a.ClassifierOrEmpty(), a.Version)
}

// String returns group:artifact:version.
func (a *Artifact) String() string {
	return a.GroupID + ":" + a.ArtifactID + ":" + a.Version
}

// ClassifierPtr returns a pointer to c, for building artifacts in code.
func ClassifierPtr(c string) *string {
	return &c
}
