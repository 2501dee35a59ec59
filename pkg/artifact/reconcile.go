package artifact

// FindBacking returns the candidate that represents the same physical
// artifact as target, or nil.
//
// A candidate matches when it is the same reference as target, or when
// group, artifact id, version and type are equal and the classifiers are
// equal after mapping nil to "". The first match wins.
func FindBacking(target *Artifact, candidates []*Artifact) *Artifact {
	if target == nil {
		return nil
	}
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if c == target {
			return c
		}
		if sameArtifact(c, target) {
			return c
		}
	}
	return nil
}

func sameArtifact(a, b *Artifact) bool {
	return a.GroupID == b.GroupID &&
		a.ArtifactID == b.ArtifactID &&
		a.Version == b.Version &&
		a.Type == b.Type &&
		a.ClassifierOrEmpty() == b.ClassifierOrEmpty()
}
