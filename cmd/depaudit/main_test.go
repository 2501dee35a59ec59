package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exploopio/depaudit/pkg/errors"
)

const testPOM = `<?xml version="1.0"?>
<project>
  <groupId>com.acme</groupId>
  <artifactId>billing</artifactId>
  <version>1.0</version>
  <name>Billing</name>
  <licenses><license><name>MIT</name></license></licenses>
</project>`

const testGraph = `{
  "root": {
    "groupId": "com.acme", "artifactId": "billing", "version": "1.0",
    "children": [
      {"groupId": "org.slf4j", "artifactId": "slf4j-api", "version": "2.0.9", "scope": "compile", "file": "slf4j-api.jar"},
      {"groupId": "junit", "artifactId": "junit", "version": "4.13", "scope": "test"}
    ]
  }
}`

const testLicenses = `components:
  - group_id: org.slf4j
    artifact_id: slf4j-api
    version: 2.0.9
    name: SLF4J API Module
    licenses:
      - name: MIT
        url: https://opensource.org/licenses/MIT
`

// workspace writes a project with a graph and a license file and returns
// its directory.
func workspace(t *testing.T) string {
	t.Helper()
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITLAB_CI", "")
	clearEnv(t)

	dir := t.TempDir()
	for name, content := range map[string]string{
		"pom.xml":               testPOM,
		"dependency-graph.json": testGraph,
		"licenses.yaml":         testLicenses,
		"slf4j-api.jar":         "abc",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "depaudit version "))
}

func TestScanCommand(t *testing.T) {
	dir := workspace(t)

	var body map[string]any
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-ApiKey")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	metricsFile := filepath.Join(dir, "metrics", "depaudit.prom")
	_, err := execute(t, "scan",
		"--pom", filepath.Join(dir, "pom.xml"),
		"--graph", filepath.Join(dir, "dependency-graph.json"),
		"--licenses", filepath.Join(dir, "licenses.yaml"),
		"--base-url", server.URL,
		"--user-name", "ci@acme.example",
		"--api-key", "k1",
		"--branch", "main",
		"--metrics-file", metricsFile,
	)
	require.NoError(t, err)

	assert.Equal(t, "k1", apiKey)
	assert.Equal(t, "Billing", body["project"])
	assert.Equal(t, "main", body["branch"])
	deps := body["dependencies"].([]any)
	require.Len(t, deps, 1)
	root := deps[0].(map[string]any)
	children := root["dependencies"].([]any)
	require.Len(t, children, 1, "junit is test scope")
	slf4j := children[0].(map[string]any)
	assert.Equal(t, "mvn:org.slf4j:slf4j-api", slf4j["key"])
	assert.Equal(t, "sha-1:a9993e364706816aba3e25717850c26c9cd0d89d", slf4j["checksum"])

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "depaudit_transfers_total")
}

func TestScanCommand_MissingCredentials(t *testing.T) {
	dir := workspace(t)

	_, err := execute(t, "scan",
		"--pom", filepath.Join(dir, "pom.xml"),
		"--licenses", filepath.Join(dir, "licenses.yaml"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "userName")
	assert.Contains(t, err.Error(), "com.acme:billing:1.0")
}

func TestScanCommand_NoLicenseSource(t *testing.T) {
	dir := workspace(t)

	_, err := execute(t, "scan", "--skip-transfer", "--pom", filepath.Join(dir, "pom.xml"))
	assert.Equal(t, errors.KindInvalidInput, errors.GetKind(err))
}

func TestCatalogImportThenScan(t *testing.T) {
	dir := workspace(t)
	catalog := filepath.Join(dir, "catalog", "licenses.db")

	_, err := execute(t, "catalog", "import", "--license-catalog", catalog, filepath.Join(dir, "licenses.yaml"))
	require.NoError(t, err)

	output := filepath.Join(dir, "report.json")
	_, err = execute(t, "scan", "--skip-transfer",
		"--pom", filepath.Join(dir, "pom.xml"),
		"--graph", filepath.Join(dir, "dependency-graph.json"),
		"--license-catalog", catalog,
		"--output", output,
	)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mvn:org.slf4j:slf4j-api"`)
	assert.Contains(t, string(data), `"https://opensource.org/licenses/MIT"`)
}

func TestCheckCommand_PolicyBreak(t *testing.T) {
	dir := workspace(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/scans/check" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data": [{"component": {"name": "slf4j-api", "version": "2.0.9"},
			"vulnerabilities": [{"name": "CVE-0000-1", "description": "test", "violation": true}]}]}`))
	}))
	defer server.Close()

	_, err := execute(t, "check",
		"--pom", filepath.Join(dir, "pom.xml"),
		"--graph", filepath.Join(dir, "dependency-graph.json"),
		"--licenses", filepath.Join(dir, "licenses.yaml"),
		"--base-url", server.URL,
		"--user-name", "ci",
		"--api-key", "k",
	)
	require.Error(t, err)
	assert.True(t, errors.IsPolicy(err))
	assert.Equal(t, 2, exitCode(err))
}

func TestSkip(t *testing.T) {
	_, err := execute(t, "scan", "--skip", "--pom", "does-not-exist.xml")
	assert.NoError(t, err)
}
