package licenses

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/exploopio/depaudit/pkg/errors"
	"github.com/exploopio/depaudit/pkg/project"
)

// Document is the on-disk form read by FileResolver and by the catalog
// import: the resolved components with their declared licenses.
type Document struct {
	Components []*project.Project `json:"components" yaml:"components"`
}

// FileResolver reads resolved licenses from a JSON or YAML document (by
// extension). Components without licenses resolve to UnknownLicense.
type FileResolver struct {
	path string
}

// NewFileResolver returns a resolver reading path.
func NewFileResolver(path string) *FileResolver {
	return &FileResolver{path: path}
}

// Resolve implements Resolver.
func (r *FileResolver) Resolve(ctx context.Context, _ *project.Project) (*Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := ReadDocument(r.path)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Entries: make([]Entry, 0, len(doc.Components))}
	for _, p := range doc.Components {
		if p == nil {
			continue
		}
		res.Entries = append(res.Entries, NewEntry(p))
	}
	return res, nil
}

// ReadDocument parses the license document at path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(errors.KindNotFound, "licenses.ReadDocument", err)
	}
	var doc Document
	if isYAML(path) {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, "licenses.ReadDocument", "parse "+path, err)
	}
	return &doc, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
