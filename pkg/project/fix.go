package project

import (
	"fmt"
	"strings"
)

// coordinateFixes corrects projects whose published descriptor carries wrong
// coordinates. Keys and values are group:artifact:type:classifier:version.
var coordinateFixes = map[string]string{
	// the pom on maven central says groupId "milyn"
	"milyn:flute:jar::1.3": "org.milyn:flute:jar::1.3",
}

// Fix rewrites p's coordinates in place if they are known to be wrong and
// reports whether anything changed.
func Fix(p *Project) bool {
	if p == nil {
		return false
	}
	packaging := p.Packaging
	if packaging == "" {
		packaging = "jar"
	}
	key := fmt.Sprintf("%s:%s:%s:%s:%s", p.GroupID, p.ArtifactID, packaging, "", p.Version)

	fixed, ok := coordinateFixes[key]
	if !ok {
		return false
	}
	parts := strings.Split(fixed, ":")
	if len(parts) != 5 {
		return false
	}
	p.GroupID = parts[0]
	p.ArtifactID = parts[1]
	p.Packaging = parts[2]
	p.Version = parts[4]
	return true
}
