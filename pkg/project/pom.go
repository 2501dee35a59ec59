package project

import (
	"encoding/xml"
	"os"
	"regexp"
	"strings"

	"github.com/exploopio/depaudit/pkg/errors"
)

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomLicense struct {
	Name string `xml:"name"`
	URL  string `xml:"url"`
}

type pomSCM struct {
	URL string `xml:"url"`
}

// pomProperty is one child of <properties>, e.g. <revision>1.4</revision>.
type pomProperty struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type pomProperties struct {
	Entries []pomProperty `xml:",any"`
}

type pomProject struct {
	Parent      *pomParent   `xml:"parent"`
	GroupID     string       `xml:"groupId"`
	ArtifactID  string       `xml:"artifactId"`
	Version     string       `xml:"version"`
	Packaging   string       `xml:"packaging"`
	Name        string       `xml:"name"`
	Description string       `xml:"description"`
	URL         string       `xml:"url"`
	SCM         *pomSCM      `xml:"scm"`
	Licenses    []pomLicense `xml:"licenses>license"`

	Properties *pomProperties `xml:"properties"`
}

// propertyRef matches a ${name} placeholder.
var propertyRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// maxInterpolationDepth bounds nested placeholders (a property whose value
// is itself a placeholder).
const maxInterpolationDepth = 8

// LoadPOM reads a pom.xml file. Group id and version are inherited from the
// parent declaration when the project omits them; packaging defaults to jar.
// ${...} placeholders naming a <properties> entry or a project.* / pom.* /
// project.parent.* coordinate are replaced; unknown ones are left as is.
func LoadPOM(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.KindNotFound, "project.LoadPOM", err)
	}
	defer f.Close()

	var pom pomProject
	if err := xml.NewDecoder(f).Decode(&pom); err != nil {
		return nil, errors.E(errors.KindInvalidInput, "project.LoadPOM", "parse "+path, err)
	}

	p := &Project{
		GroupID:     strings.TrimSpace(pom.GroupID),
		ArtifactID:  strings.TrimSpace(pom.ArtifactID),
		Version:     strings.TrimSpace(pom.Version),
		Packaging:   strings.TrimSpace(pom.Packaging),
		Name:        strings.TrimSpace(pom.Name),
		Description: strings.TrimSpace(pom.Description),
		URL:         strings.TrimSpace(pom.URL),
	}
	if pom.SCM != nil {
		p.SCMURL = strings.TrimSpace(pom.SCM.URL)
	}
	if pom.Parent != nil {
		if p.GroupID == "" {
			p.GroupID = strings.TrimSpace(pom.Parent.GroupID)
		}
		if p.Version == "" {
			p.Version = strings.TrimSpace(pom.Parent.Version)
		}
	}
	if p.Packaging == "" {
		p.Packaging = "jar"
	}
	for _, l := range pom.Licenses {
		p.Licenses = append(p.Licenses, License{
			Name: strings.TrimSpace(l.Name),
			URL:  strings.TrimSpace(l.URL),
		})
	}

	props := pomPropertyMap(&pom, p)
	for _, field := range []*string{&p.GroupID, &p.ArtifactID, &p.Version, &p.Name, &p.Description, &p.URL, &p.SCMURL} {
		*field = interpolate(*field, props)
	}
	for i := range p.Licenses {
		p.Licenses[i].Name = interpolate(p.Licenses[i].Name, props)
		p.Licenses[i].URL = interpolate(p.Licenses[i].URL, props)
	}

	if p.ArtifactID == "" {
		return nil, errors.E(errors.KindInvalidInput, "project.LoadPOM", path+": missing artifactId")
	}
	return p, nil
}

// pomPropertyMap collects the values placeholders may refer to. Explicit
// properties win over the built-in project coordinates.
func pomPropertyMap(pom *pomProject, p *Project) map[string]string {
	props := map[string]string{
		"project.groupId":    p.GroupID,
		"project.artifactId": p.ArtifactID,
		"project.version":    p.Version,
		"project.name":       p.Name,
		"project.url":        p.URL,
		"pom.groupId":        p.GroupID,
		"pom.artifactId":     p.ArtifactID,
		"pom.version":        p.Version,
	}
	if pom.Parent != nil {
		props["project.parent.groupId"] = strings.TrimSpace(pom.Parent.GroupID)
		props["project.parent.artifactId"] = strings.TrimSpace(pom.Parent.ArtifactID)
		props["project.parent.version"] = strings.TrimSpace(pom.Parent.Version)
		props["parent.version"] = props["project.parent.version"]
	}
	if pom.Properties != nil {
		for _, prop := range pom.Properties.Entries {
			props[prop.XMLName.Local] = strings.TrimSpace(prop.Value)
		}
	}
	return props
}

// interpolate replaces known ${name} placeholders in s, following nested
// references up to maxInterpolationDepth.
func interpolate(s string, props map[string]string) string {
	for i := 0; i < maxInterpolationDepth && strings.Contains(s, "${"); i++ {
		next := propertyRef.ReplaceAllStringFunc(s, func(ref string) string {
			if v, ok := props[ref[2:len(ref)-1]]; ok {
				return v
			}
			return ref
		})
		if next == s {
			break
		}
		s = next
	}
	return s
}
