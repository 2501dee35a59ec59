// Package mapper turns a resolved dependency graph into the component report
// tree sent to the evaluation service.
//
// Every graph node is matched against a lookup Table by its identity, with a
// second attempt on its base version identity. Matched nodes become report
// components carrying name, key, version, licenses, privacy flag and content
// checksum; unmatched nodes are dropped with their subtree. Per-node
// problems never abort the pass: they are recorded as Diagnostics.
package mapper

import (
	"github.com/exploopio/depaudit/pkg/artifact"
	"github.com/exploopio/depaudit/pkg/checksum"
	"github.com/exploopio/depaudit/pkg/core"
	"github.com/exploopio/depaudit/pkg/graph"
	"github.com/exploopio/depaudit/pkg/identity"
	"github.com/exploopio/depaudit/pkg/licenses"
	"github.com/exploopio/depaudit/pkg/metrics"
	"github.com/exploopio/depaudit/pkg/privacy"
	"github.com/exploopio/depaudit/pkg/project"
	"github.com/exploopio/depaudit/pkg/report"
)

// Result is the outcome of mapping one node. Either Node is set, or
// Diagnostic explains why the node was dropped. A nil node, or one without
// an artifact, has nothing to map and yields the zero Result.
type Result struct {
	Node       *report.Dependency
	Diagnostic *Diagnostic
}

// Mapped reports whether the node produced a report component.
func (r Result) Mapped() bool {
	return r.Node != nil
}

// Stats counts what happened during mapping.
type Stats struct {
	Mapped          int
	Unmatched       int
	FallbackMatches int
	Checksums       int
	NoBackingFile   int
	ChecksumErrors  int
	Collapsed       int
}

// Mapper maps graph nodes to report components. A Mapper is not safe for
// concurrent use; Diagnostics and Stats accumulate across Map calls.
type Mapper struct {
	logger    core.Logger
	metrics   metrics.Collector
	privacy   *privacy.Classifier
	artifacts []*artifact.Artifact
	hasher    checksum.Hasher
	dedupe    bool

	diagnostics []Diagnostic
	stats       Stats
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger for diagnostics.
func WithLogger(l core.Logger) Option {
	return func(m *Mapper) { m.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(m *Mapper) { m.metrics = c }
}

// WithPrivacy sets the classifier deciding the private flag.
func WithPrivacy(c *privacy.Classifier) Option {
	return func(m *Mapper) { m.privacy = c }
}

// WithArtifacts sets the project's resolved artifacts, searched for a
// backing file when a node has none.
func WithArtifacts(artifacts []*artifact.Artifact) Option {
	return func(m *Mapper) { m.artifacts = artifacts }
}

// WithChecksummer sets the file hasher (default: checksum.FileHasher).
func WithChecksummer(h checksum.Hasher) Option {
	return func(m *Mapper) { m.hasher = h }
}

// WithDedupeChildren collapses a child whose report key and versions equal
// those of an earlier sibling. By default every graph path yields its own
// component, so a dependency reached twice under one parent appears twice.
func WithDedupeChildren(enabled bool) Option {
	return func(m *Mapper) { m.dedupe = enabled }
}

// New creates a Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = core.OrNop(m.logger)
	m.metrics = metrics.OrNop(m.metrics)
	if m.hasher == nil {
		m.hasher = checksum.FileHasher{}
	}
	return m
}

// Map maps node and, recursively, its children. A node whose identity is
// not in table, even by base version, yields an unmapped Result and its
// children are not visited.
func (m *Mapper) Map(node *graph.Node, table *Table) Result {
	if node == nil || node.Artifact == nil {
		return Result{}
	}
	a := node.Artifact

	id := identity.FromArtifact(a)
	entry, ok := table.Lookup(id)
	if !ok {
		fallback := identity.FallbackFromArtifact(a)
		entry, ok = table.Lookup(fallback)
		if !ok {
			d := m.record(Diagnostic{Kind: Unmatched, ID: id, Fallback: fallback, Coordinates: a.Coordinates()})
			m.stats.Unmatched++
			m.metrics.CounterInc(metrics.ComponentsUnmatched.Name)
			m.logger.Error("%s", d)
			return Result{Diagnostic: d}
		}
		m.stats.FallbackMatches++
		m.logger.Debug("matched %s by base version %s", id, fallback)
	}

	p := entry.Project
	b := report.NewBuilder().
		SetName(p.DisplayName()).
		SetDescription(p.Description).
		SetKey(report.Key(p.GroupID, p.ArtifactID)).
		AddVersion(p.Version).
		SetHomepageURL(p.URL).
		SetRepoURL(p.SCMURL)

	if m.privacy.IsPrivate(p.GroupID, p.ArtifactID) {
		b.SetPrivate(true)
	}

	if sum, ok := m.checksum(a, id); ok {
		b.SetChecksum(checksum.Tag + sum)
	}

	if !licenses.IsUnknown(entry.Licenses) {
		for _, name := range entry.Licenses {
			b.AddLicenseURL(name, licenseURL(p, name))
		}
	}

	for _, child := range node.Children {
		r := m.Map(child, table)
		if !r.Mapped() {
			continue
		}
		if m.dedupe && b.HasDependency(r.Node) {
			m.stats.Collapsed++
			m.logger.Debug("collapsed repeated dependency %s under %s", r.Node.Key(), id)
			continue
		}
		b.AddDependency(r.Node)
	}

	m.stats.Mapped++
	m.metrics.CounterInc(metrics.ComponentsMapped.Name)
	return Result{Node: b.Build()}
}

// checksum hashes the node's file, or the file of the equivalent resolved
// artifact. Failures are recorded and reported as !ok.
func (m *Mapper) checksum(a *artifact.Artifact, id identity.ID) (string, bool) {
	file := a.File
	if file == "" {
		if backing := artifact.FindBacking(a, m.artifacts); backing != nil {
			file = backing.File
		}
	}
	if file == "" {
		d := m.record(Diagnostic{Kind: NoBackingFile, ID: id, Coordinates: a.Coordinates()})
		m.stats.NoBackingFile++
		m.metrics.CounterInc(metrics.ChecksumFailures.Name, "reason", NoBackingFile.String())
		m.logger.Warn("%s", d)
		return "", false
	}

	sum, err := m.hasher.File(file)
	if err != nil {
		d := m.record(Diagnostic{Kind: ChecksumUnavailable, ID: id, Coordinates: a.Coordinates(), File: file, Err: err})
		m.stats.ChecksumErrors++
		reason := "not_found"
		if checksum.IsAlgorithmUnavailable(err) {
			reason = "algorithm_unavailable"
		}
		m.metrics.CounterInc(metrics.ChecksumFailures.Name, "reason", reason)
		m.logger.Warn("%s", d)
		return "", false
	}
	m.stats.Checksums++
	return sum, true
}

func (m *Mapper) record(d Diagnostic) *Diagnostic {
	m.diagnostics = append(m.diagnostics, d)
	return &d
}

// Diagnostics returns everything recorded so far, in order.
func (m *Mapper) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), m.diagnostics...)
}

// Stats returns the counters accumulated so far.
func (m *Mapper) Stats() Stats {
	return m.stats
}

// licenseURL returns the URL p declares for the license name, if any.
func licenseURL(p *project.Project, name string) string {
	for _, l := range p.Licenses {
		if l.Name == name {
			return l.URL
		}
	}
	return ""
}
