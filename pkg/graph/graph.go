// Package graph defines the resolved dependency graph consumed by the
// mapper and the providers that produce it.
package graph

import (
	"context"

	"github.com/exploopio/depaudit/pkg/artifact"
	"github.com/exploopio/depaudit/pkg/project"
)

// Node is one resolved artifact in the dependency tree. The same artifact
// may appear under several parents.
type Node struct {
	Artifact *artifact.Artifact
	Children []*Node
}

// Walk visits n and its descendants depth-first, parents first.
func (n *Node) Walk(fn func(depth int, node *Node)) {
	n.walk(0, fn)
}

func (n *Node) walk(depth int, fn func(int, *Node)) {
	fn(depth, n)
	for _, c := range n.Children {
		if c != nil {
			c.walk(depth+1, fn)
		}
	}
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	c := 0
	n.Walk(func(int, *Node) { c++ })
	return c
}

// Graph is the result of resolving a project: the dependency tree rooted at
// the project itself, plus the fully resolved artifact set used to find
// backing files for nodes that have none.
type Graph struct {
	Root      *Node
	Artifacts []*artifact.Artifact
}

// Provider builds the dependency graph of a project. An empty scope means
// no filtering.
type Provider interface {
	BuildGraph(ctx context.Context, p *project.Project, scope string) (*Graph, error)
}

// Static is a Provider that returns a fixed graph, filtered by scope.
type Static struct {
	Graph *Graph
}

// BuildGraph implements Provider.
func (s Static) BuildGraph(ctx context.Context, _ *project.Project, scope string) (*Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return FilterGraph(s.Graph, scope)
}

var (
	_ Provider = Static{}
	_ Provider = (*FileProvider)(nil)
)
