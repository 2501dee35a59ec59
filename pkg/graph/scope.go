package graph

import (
	"fmt"
	"strings"

	"github.com/exploopio/depaudit/pkg/errors"
)

// Dependency scopes.
const (
	ScopeCompile  = "compile"
	ScopeProvided = "provided"
	ScopeRuntime  = "runtime"
	ScopeSystem   = "system"
	ScopeTest     = "test"
	ScopeImport   = "import"

	ScopeCompileRuntime = "compile+runtime"
	ScopeRuntimeSystem  = "runtime+system"
)

// ScopeFilter decides which dependency scopes are included in a scan.
// A scope filter of "runtime" includes compile and runtime dependencies,
// the same way a build tool resolves a runtime classpath.
type ScopeFilter struct {
	name     string
	included map[string]bool
}

// NewScopeFilter returns the filter for scope. An empty scope includes
// everything; an unknown scope is an error.
func NewScopeFilter(scope string) (*ScopeFilter, error) {
	scope = strings.TrimSpace(scope)
	var inc []string
	switch scope {
	case "":
		return &ScopeFilter{}, nil
	case ScopeCompile:
		inc = []string{ScopeCompile, ScopeProvided, ScopeSystem}
	case ScopeRuntime:
		inc = []string{ScopeCompile, ScopeRuntime}
	case ScopeCompileRuntime:
		inc = []string{ScopeCompile, ScopeProvided, ScopeSystem, ScopeRuntime}
	case ScopeRuntimeSystem:
		inc = []string{ScopeCompile, ScopeRuntime, ScopeSystem}
	case ScopeTest:
		inc = []string{ScopeCompile, ScopeProvided, ScopeSystem, ScopeRuntime, ScopeTest}
	default:
		return nil, errors.E(errors.KindInvalidInput, "graph.NewScopeFilter", fmt.Sprintf("unknown scope %q", scope))
	}

	f := &ScopeFilter{name: scope, included: make(map[string]bool, len(inc))}
	for _, s := range inc {
		f.included[s] = true
	}
	return f, nil
}

// Name returns the configured scope, "" for no filtering.
func (f *ScopeFilter) Name() string { return f.name }

// Includes reports whether a dependency with the given scope is kept. A
// missing scope counts as compile.
func (f *ScopeFilter) Includes(scope string) bool {
	if f == nil || f.included == nil {
		return true
	}
	if scope == "" {
		scope = ScopeCompile
	}
	return f.included[scope]
}

// Apply returns a copy of the tree rooted at root without the excluded
// nodes and their subtrees. The root itself is always kept.
func (f *ScopeFilter) Apply(root *Node) *Node {
	if root == nil {
		return nil
	}
	out := &Node{Artifact: root.Artifact}
	for _, c := range root.Children {
		if c == nil || c.Artifact == nil || !f.Includes(c.Artifact.Scope) {
			continue
		}
		out.Children = append(out.Children, f.Apply(c))
	}
	return out
}

// FilterGraph applies the scope filter named scope to g's tree. The resolved
// artifact set is left as is.
func FilterGraph(g *Graph, scope string) (*Graph, error) {
	if g == nil || g.Root == nil {
		return nil, errors.E(errors.KindInvalidInput, "graph.FilterGraph", "graph has no root")
	}
	f, err := NewScopeFilter(scope)
	if err != nil {
		return nil, err
	}
	return &Graph{Root: f.Apply(g.Root), Artifacts: g.Artifacts}, nil
}
