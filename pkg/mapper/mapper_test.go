package mapper

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exploopio/depaudit/pkg/artifact"
	"github.com/exploopio/depaudit/pkg/checksum"
	"github.com/exploopio/depaudit/pkg/graph"
	"github.com/exploopio/depaudit/pkg/identity"
	"github.com/exploopio/depaudit/pkg/licenses"
	"github.com/exploopio/depaudit/pkg/metrics"
	"github.com/exploopio/depaudit/pkg/privacy"
	"github.com/exploopio/depaudit/pkg/project"
)

// =============================================================================
// Fixtures
// =============================================================================

func newProject(g, a, v string, lics ...string) *project.Project {
	p := &project.Project{GroupID: g, ArtifactID: a, Version: v, Name: a + " name", URL: "https://" + a + ".example"}
	for _, l := range lics {
		p.Licenses = append(p.Licenses, project.License{Name: l})
	}
	return p
}

func newNode(g, a, v, file string, children ...*graph.Node) *graph.Node {
	return &graph.Node{
		Artifact: &artifact.Artifact{GroupID: g, ArtifactID: a, Version: v, Type: "jar", File: file},
		Children: children,
	}
}

func entry(p *project.Project, lics ...string) licenses.Entry {
	return licenses.Entry{Project: p, Licenses: lics}
}

func jarFile(t *testing.T, content string) (path, sha string) {
	t.Helper()
	path = filepath.Join(t.TempDir(), "lib.jar")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	sum := sha1.Sum([]byte(content))
	return path, hex.EncodeToString(sum[:])
}

// scenario: root P (g:a:1.0) with one child C (g2:a2:2.0) backed by a file.
type scenario struct {
	root     *project.Project
	child    *project.Project
	graph    *graph.Node
	childSHA string
}

func newScenario(t *testing.T) scenario {
	t.Helper()
	path, sha := jarFile(t, "content of a2")
	root := newProject("g", "a", "1.0", "EPL-1.0")
	child := newProject("g2", "a2", "2.0")
	return scenario{
		root:     root,
		child:    child,
		graph:    newNode("g", "a", "1.0", "", newNode("g2", "a2", "2.0", path)),
		childSHA: sha,
	}
}

// =============================================================================
// End-to-end scenarios
// =============================================================================

func TestMap_RootWithLicensedChild(t *testing.T) {
	s := newScenario(t)
	table := NewTable(s.root, s.root.LicenseNames(), []licenses.Entry{entry(s.child, "Apache-2.0")})

	m := New()
	res := m.Map(s.graph, table)
	require.True(t, res.Mapped())

	root := res.Node
	assert.Equal(t, "mvn:g:a", root.Key())
	assert.Equal(t, []string{"1.0"}, root.Versions())
	assert.Equal(t, []string{"EPL-1.0"}, root.LicenseNames())

	children := root.Dependencies()
	require.Len(t, children, 1)
	c := children[0]
	assert.Equal(t, "mvn:g2:a2", c.Key())
	assert.Equal(t, "a2 name", c.Name())
	assert.Equal(t, "https://a2.example", c.HomepageURL())
	assert.Equal(t, []string{"2.0"}, c.Versions())
	assert.Equal(t, []string{"Apache-2.0"}, c.LicenseNames())
	assert.Equal(t, "sha-1:"+s.childSHA, c.Checksum())
	assert.Empty(t, c.Dependencies())

	// root has no file and nothing to reconcile against
	assert.False(t, root.HasChecksum())
	require.Len(t, m.Diagnostics(), 1)
	assert.Equal(t, NoBackingFile, m.Diagnostics()[0].Kind)
}

func TestMap_SentinelLicenseIsDropped(t *testing.T) {
	s := newScenario(t)
	table := NewTable(s.root, nil, []licenses.Entry{entry(s.child, licenses.UnknownLicense)})

	res := New().Map(s.graph, table)
	require.True(t, res.Mapped())
	children := res.Node.Dependencies()
	require.Len(t, children, 1)
	assert.Empty(t, children[0].Licenses())
	assert.Empty(t, res.Node.Licenses(), "root declares none")
}

func TestMap_SingleLicense(t *testing.T) {
	s := newScenario(t)
	table := NewTable(s.root, nil, []licenses.Entry{entry(s.child, "MIT")})

	res := New().Map(s.graph, table)
	c := res.Node.Dependencies()[0]
	assert.Len(t, c.Licenses(), 1)
}

func TestMap_UnmatchedChildIsDropped(t *testing.T) {
	s := newScenario(t)
	table := NewTable(s.root, nil, nil)

	mc := metrics.NewInMemoryCollector()
	m := New(WithMetrics(mc))
	res := m.Map(s.graph, table)

	require.True(t, res.Mapped())
	assert.Empty(t, res.Node.Dependencies())

	var unmatched []Diagnostic
	for _, d := range m.Diagnostics() {
		if d.Kind == Unmatched {
			unmatched = append(unmatched, d)
		}
	}
	require.Len(t, unmatched, 1)
	assert.Equal(t, "g2:a2:2.0", unmatched[0].ID.String())
	assert.Equal(t, 1.0, mc.GetCounter(metrics.ComponentsUnmatched.Name))
	assert.Equal(t, 1.0, mc.GetCounter(metrics.ComponentsMapped.Name))
}

func TestMap_UnmatchedSubtreeNotVisited(t *testing.T) {
	grandchild := newProject("g3", "a3", "3.0")
	root := newProject("g", "a", "1.0")
	g := newNode("g", "a", "1.0", "",
		newNode("g2", "a2", "2.0", "", newNode("g3", "a3", "3.0", "")))

	// the grandchild is known, its parent is not
	table := NewTable(root, nil, []licenses.Entry{entry(grandchild, "MIT")})

	m := New()
	res := m.Map(g, table)

	require.True(t, res.Mapped())
	assert.Empty(t, res.Node.Dependencies())
	assert.Equal(t, 1, m.Stats().Mapped)
	assert.Equal(t, 1, m.Stats().Unmatched)
	for _, d := range m.Diagnostics() {
		assert.NotEqual(t, "g3:a3:3.0", d.ID.String(), "grandchild must not be visited")
	}
}

func TestMap_UnmatchedRoot(t *testing.T) {
	res := New().Map(newNode("x", "y", "1", ""), NewTable(nil, nil, nil))
	assert.False(t, res.Mapped())
	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, Unmatched, res.Diagnostic.Kind)
}

func TestMap_NilNode(t *testing.T) {
	m := New()
	table := NewTable(nil, nil, nil)

	for _, node := range []*graph.Node{nil, {}} {
		res := m.Map(node, table)
		assert.Equal(t, Result{}, res)
		assert.False(t, res.Mapped())
	}
	assert.Empty(t, m.Diagnostics())
	assert.Equal(t, Stats{}, m.Stats())
}

// =============================================================================
// Identity fallback
// =============================================================================

func TestMap_SnapshotFallback(t *testing.T) {
	root := newProject("g", "a", "1.0")
	snap := newProject("g2", "lib", "1.0-SNAPSHOT", "MIT")
	g := newNode("g", "a", "1.0", "", newNode("g2", "lib", "1.0-20151123.141732-1", ""))

	m := New()
	res := m.Map(g, NewTable(root, nil, []licenses.Entry{entry(snap, "MIT")}))

	children := res.Node.Dependencies()
	require.Len(t, children, 1)
	assert.Equal(t, []string{"1.0-SNAPSHOT"}, children[0].Versions(), "version comes from the matched project")
	assert.Equal(t, 1, m.Stats().FallbackMatches)
}

func TestMap_ExactMatchPreferredOverFallback(t *testing.T) {
	root := newProject("g", "a", "1.0")
	exact := newProject("g2", "lib", "1.0-20151123.141732-1", "Apache-2.0")
	snap := newProject("g2", "lib", "1.0-SNAPSHOT", "MIT")
	g := newNode("g", "a", "1.0", "", newNode("g2", "lib", "1.0-20151123.141732-1", ""))

	m := New()
	res := m.Map(g, NewTable(root, nil, []licenses.Entry{entry(snap, "MIT"), entry(exact, "Apache-2.0")}))

	c := res.Node.Dependencies()[0]
	assert.Equal(t, []string{"Apache-2.0"}, c.LicenseNames())
	assert.Equal(t, 0, m.Stats().FallbackMatches)
}

// =============================================================================
// Checksums
// =============================================================================

func TestMap_ChecksumFromReconciledArtifact(t *testing.T) {
	path, sha := jarFile(t, "resolved elsewhere")
	root := newProject("g", "a", "1.0")
	child := newProject("g2", "a2", "2.0")

	// graph node has no file and a nil classifier; the resolved one has ""
	g := newNode("g", "a", "1.0", "", newNode("g2", "a2", "2.0", ""))
	resolved := []*artifact.Artifact{{
		GroupID: "g2", ArtifactID: "a2", Version: "2.0", Type: "jar",
		Classifier: artifact.ClassifierPtr(""), File: path,
	}}

	m := New(WithArtifacts(resolved))
	res := m.Map(g, NewTable(root, nil, []licenses.Entry{entry(child)}))

	c := res.Node.Dependencies()[0]
	assert.Equal(t, "sha-1:"+sha, c.Checksum())
	assert.Equal(t, 1, m.Stats().Checksums)
}

func TestMap_UnreadableFileDowngraded(t *testing.T) {
	root := newProject("g", "a", "1.0")
	child := newProject("g2", "a2", "2.0", "MIT")
	missing := filepath.Join(t.TempDir(), "gone.jar")
	g := newNode("g", "a", "1.0", "", newNode("g2", "a2", "2.0", missing))

	mc := metrics.NewInMemoryCollector()
	m := New(WithMetrics(mc))
	res := m.Map(g, NewTable(root, nil, []licenses.Entry{entry(child, "MIT")}))

	c := res.Node.Dependencies()[0]
	assert.False(t, c.HasChecksum())
	assert.Equal(t, []string{"MIT"}, c.LicenseNames(), "rest of the node is still populated")

	var found *Diagnostic
	for _, d := range m.Diagnostics() {
		if d.Kind == ChecksumUnavailable {
			d := d
			found = &d
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, missing, found.File)
	assert.True(t, checksum.IsNotFound(found.Err))
	assert.Equal(t, 1.0, mc.GetCounter(metrics.ChecksumFailures.Name, "reason", "not_found"))
	assert.Equal(t, 1.0, mc.GetCounter(metrics.ChecksumFailures.Name, "reason", "no_backing_file"))
}

type countingHasher struct {
	calls map[string]int
}

func (h *countingHasher) File(path string) (string, error) {
	h.calls[path]++
	return "feed", nil
}

func TestMap_UsesConfiguredHasher(t *testing.T) {
	path, _ := jarFile(t, "x")
	root := newProject("g", "a", "1.0")
	child := newProject("g2", "a2", "2.0")
	g := newNode("g", "a", "1.0", "", newNode("g2", "a2", "2.0", path), newNode("g2", "a2", "2.0", path))

	h := &countingHasher{calls: map[string]int{}}
	res := New(WithChecksummer(h)).Map(g, NewTable(root, nil, []licenses.Entry{entry(child)}))

	for _, c := range res.Node.Dependencies() {
		assert.Equal(t, "sha-1:feed", c.Checksum())
	}
	assert.Equal(t, 2, h.calls[path])
}

// =============================================================================
// Privacy, duplicates, table precedence
// =============================================================================

func TestMap_PrivateFlag(t *testing.T) {
	root := newProject("org.acme", "app", "1.0")
	own := newProject("org.acme", "util", "1.0")
	foo := newProject("org.other", "foo", "1.0")
	bar := newProject("org.other", "bar", "1.0")
	g := newNode("org.acme", "app", "1.0", "",
		newNode("org.acme", "util", "1.0", ""),
		newNode("org.other", "foo", "1.0", ""),
		newNode("org.other", "bar", "1.0", ""),
	)
	table := NewTable(root, nil, []licenses.Entry{entry(own), entry(foo), entry(bar)})

	res := New(WithPrivacy(privacy.New("org.acme;org.other:foo"))).Map(g, table)

	assert.True(t, res.Node.Private())
	deps := res.Node.Dependencies()
	require.Len(t, deps, 3)
	assert.True(t, deps[0].Private())
	assert.True(t, deps[1].Private())
	assert.False(t, deps[2].Private())
}

func TestMap_DuplicateChildren(t *testing.T) {
	root := newProject("g", "a", "1.0")
	child := newProject("g2", "a2", "2.0")
	g := func() *graph.Node {
		return newNode("g", "a", "1.0", "", newNode("g2", "a2", "2.0", ""), newNode("g2", "a2", "2.0", ""))
	}
	table := NewTable(root, nil, []licenses.Entry{entry(child)})

	t.Run("distinct per path by default", func(t *testing.T) {
		res := New().Map(g(), table)
		deps := res.Node.Dependencies()
		require.Len(t, deps, 2)
		assert.NotSame(t, deps[0], deps[1])
	})

	t.Run("collapsed when enabled", func(t *testing.T) {
		m := New(WithDedupeChildren(true))
		res := m.Map(g(), table)
		assert.Len(t, res.Node.Dependencies(), 1)
		assert.Equal(t, 1, m.Stats().Collapsed)
	})
}

func TestMap_DiamondKeepsOrder(t *testing.T) {
	root := newProject("g", "a", "1.0")
	b := newProject("g", "b", "1")
	c := newProject("g", "c", "1")
	d := newProject("g", "d", "1")
	g := newNode("g", "a", "1.0", "",
		newNode("g", "b", "1", "", newNode("g", "d", "1", "")),
		newNode("g", "c", "1", "", newNode("g", "d", "1", "")),
	)

	res := New().Map(g, NewTable(root, nil, []licenses.Entry{entry(b), entry(c), entry(d)}))

	var keys []string
	for _, dep := range res.Node.Dependencies() {
		keys = append(keys, dep.Key())
		for _, gc := range dep.Dependencies() {
			keys = append(keys, gc.Key())
		}
	}
	assert.Equal(t, []string{"mvn:g:b", "mvn:g:d", "mvn:g:c", "mvn:g:d"}, keys)
}

func TestNewTable_RootWins(t *testing.T) {
	root := newProject("g", "a", "1.0", "EPL-1.0")
	impostor := newProject("g", "a", "1.0", "GPL-3.0")
	first := newProject("g2", "a2", "2.0")
	second := newProject("g2", "a2", "2.0")

	table := NewTable(root, root.LicenseNames(), []licenses.Entry{
		entry(impostor, "GPL-3.0"),
		entry(first, "MIT"),
		entry(second, "BSD"),
		{},
	})

	assert.Equal(t, 2, table.Len())
	assert.True(t, table.Root().Equal(identity.New("g", "a", "1.0")))

	e, ok := table.Lookup(identity.New("g", "a", "1.0"))
	require.True(t, ok)
	assert.Same(t, root, e.Project)
	assert.Equal(t, []string{"EPL-1.0"}, e.Licenses)

	e, ok = table.Lookup(identity.New("g2", "a2", "2.0"))
	require.True(t, ok)
	assert.Same(t, first, e.Project)
}

func TestNewTable_InheritedSegments(t *testing.T) {
	p := &project.Project{ArtifactID: "a"}
	table := NewTable(nil, nil, []licenses.Entry{entry(p, "MIT")})

	_, ok := table.Lookup(identity.New("", "a", ""))
	assert.True(t, ok)
	_, ok = table.Lookup(identity.New("[inherited]", "a", "[inherited]"))
	assert.True(t, ok)
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{Kind: Unmatched, ID: identity.New("g", "a", "1.0-20151123.141732-1"), Fallback: identity.New("g", "a", "1.0-SNAPSHOT")}
	assert.Contains(t, d.String(), "g:a:1.0-20151123.141732-1")
	assert.Contains(t, d.String(), "g:a:1.0-SNAPSHOT")
	assert.Equal(t, "unmatched", Unmatched.String())
	assert.Equal(t, "no_backing_file", NoBackingFile.String())
	assert.Equal(t, "checksum_unavailable", ChecksumUnavailable.String())
}
