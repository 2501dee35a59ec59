package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/exploopio/depaudit/pkg/artifact"
	"github.com/exploopio/depaudit/pkg/core"
	"github.com/exploopio/depaudit/pkg/errors"
	"github.com/exploopio/depaudit/pkg/project"
)

// FileProvider reads a dependency graph exported by the build tool.
//
// The document is JSON, or YAML (with group_id style keys) when the file
// ends in .yaml or .yml:
//
//	{
//	  "root": {"groupId": "g", "artifactId": "a", "version": "1.0",
//	           "children": [{"groupId": "g2", ..., "file": "lib/a2.jar"}]},
//	  "artifacts": [{"groupId": "g2", ..., "file": "lib/a2.jar"}]
//	}
//
// Relative file paths are resolved against the document's directory. When
// "artifacts" is absent, every tree node with a file forms the resolved set.
type FileProvider struct {
	path   string
	logger core.Logger
}

// FileOption configures a FileProvider.
type FileOption func(*FileProvider)

// WithLogger sets the logger.
func WithLogger(l core.Logger) FileOption {
	return func(p *FileProvider) { p.logger = l }
}

// NewFileProvider returns a provider reading the graph document at path.
func NewFileProvider(path string, opts ...FileOption) *FileProvider {
	p := &FileProvider{path: path}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = core.OrNop(p.logger)
	return p
}

type fileNode struct {
	artifact.Artifact `yaml:",inline"`
	Children          []*fileNode `json:"children,omitempty" yaml:"children,omitempty"`
}

type fileDocument struct {
	Root      *fileNode            `json:"root" yaml:"root"`
	Artifacts []*artifact.Artifact `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// BuildGraph implements Provider.
func (p *FileProvider) BuildGraph(ctx context.Context, proj *project.Project, scope string) (*Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, errors.E(errors.KindNotFound, "graph.BuildGraph", err)
	}

	var doc fileDocument
	switch strings.ToLower(filepath.Ext(p.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, "graph.BuildGraph", "parse "+p.path, err)
	}
	if doc.Root == nil {
		return nil, errors.E(errors.KindInvalidInput, "graph.BuildGraph", p.path+": missing root node")
	}

	base := filepath.Dir(p.path)
	g := &Graph{Root: convert(doc.Root, base)}
	if len(doc.Artifacts) > 0 {
		for _, a := range doc.Artifacts {
			if a == nil {
				continue
			}
			resolveFile(a, base)
			g.Artifacts = append(g.Artifacts, a)
		}
	} else {
		g.Artifacts = collectArtifacts(g.Root)
	}

	if proj != nil && g.Root.Artifact != nil {
		root := g.Root.Artifact
		if root.GroupID != proj.GroupID || root.ArtifactID != proj.ArtifactID {
			p.logger.Warn("graph root %s does not match project %s", root, proj)
		}
	}

	p.logger.Debug("read dependency graph %s: %d nodes, %d resolved artifacts", p.path, g.Root.Count(), len(g.Artifacts))
	return FilterGraph(g, scope)
}

func convert(n *fileNode, base string) *Node {
	a := n.Artifact
	resolveFile(&a, base)
	out := &Node{Artifact: &a}
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		out.Children = append(out.Children, convert(c, base))
	}
	return out
}

func resolveFile(a *artifact.Artifact, base string) {
	if a.File != "" && !filepath.IsAbs(a.File) {
		a.File = filepath.Join(base, a.File)
	}
}

func collectArtifacts(root *Node) []*artifact.Artifact {
	var out []*artifact.Artifact
	seen := make(map[string]bool)
	root.Walk(func(depth int, n *Node) {
		if depth == 0 || n.Artifact == nil || !n.Artifact.HasFile() {
			return
		}
		c := n.Artifact.Coordinates()
		if seen[c] {
			return
		}
		seen[c] = true
		out = append(out, n.Artifact)
	})
	return out
}
