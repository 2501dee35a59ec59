package gitenv

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/exploopio/depaudit/pkg/core"
)

// Detect auto-detects the CI environment and returns the appropriate GitEnv.
// Returns nil if no CI environment is detected.
func Detect(logger core.Logger) GitEnv {
	logger = core.OrNop(logger)

	github, err := NewGitHub(logger)
	if err == nil && github.IsActive() {
		return github
	}

	gitlab, err := NewGitLab(logger)
	if err != nil {
		logger.Warn("gitlab: %v", err)
	} else if gitlab.IsActive() {
		return gitlab
	}

	logger.Debug("No CI environment detected, running in manual mode")
	return nil
}

// DetectFromDirectory detects git information from a local directory when
// no CI environment is present. It never returns nil.
func DetectFromDirectory(dir string, logger core.Logger) GitEnv {
	logger = core.OrNop(logger)
	if env := Detect(logger); env != nil {
		return env
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		absPath = dir
	}
	gitDir := findGitDir(absPath)
	if gitDir == "" {
		logger.Debug("No .git directory above %s", absPath)
		return NewManualEnv("", "", "")
	}

	repoURL := readGitRemoteURL(filepath.Join(gitDir, "config"))
	head := readHead(gitDir)
	branch := branchFromHead(head)
	commitSha := readGitCommitSha(gitDir, head)
	tag := readGitTag(gitDir, commitSha)

	if repoURL != "" {
		logger.Debug("Detected repo: %s", repoURL)
	}
	if branch != "" {
		logger.Debug("Detected branch: %s", branch)
	}
	if tag != "" {
		logger.Debug("Detected tag: %s", tag)
	}

	return NewManualEnv(normalizeGitURL(repoURL), branch, commitSha).WithTag(tag)
}

// findGitDir walks up from dir to the first directory holding .git.
func findGitDir(dir string) string {
	for {
		candidate := filepath.Join(dir, ".git")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// readGitRemoteURL reads the origin remote URL from a git config file.
func readGitRemoteURL(configPath string) string {
	file, err := os.Open(configPath)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	inRemoteOrigin := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "[remote \"origin\"]" {
			inRemoteOrigin = true
			continue
		}

		if inRemoteOrigin {
			if strings.HasPrefix(line, "[") {
				break
			}
			if key, value, ok := strings.Cut(line, "="); ok && strings.TrimSpace(key) == "url" {
				return strings.TrimSpace(value)
			}
		}
	}

	return ""
}

func readHead(gitDir string) string {
	content, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

// branchFromHead returns the branch HEAD points to; a detached HEAD has none.
func branchFromHead(head string) string {
	branch, ok := strings.CutPrefix(head, "ref: refs/heads/")
	if !ok {
		return ""
	}
	return branch
}

// readGitCommitSha resolves HEAD to a commit, consulting packed-refs when the
// loose ref is missing.
func readGitCommitSha(gitDir, head string) string {
	if !strings.HasPrefix(head, "ref: ") {
		return head
	}
	ref := strings.TrimPrefix(head, "ref: ")
	if content, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref))); err == nil {
		return strings.TrimSpace(string(content))
	}
	return packedRefs(gitDir)[ref]
}

// readGitTag returns the name of a tag pointing at sha, if any.
func readGitTag(gitDir, sha string) string {
	if sha == "" {
		return ""
	}
	tagsDir := filepath.Join(gitDir, "refs", "tags")
	entries, _ := os.ReadDir(tagsDir)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(tagsDir, e.Name()))
		if err == nil && strings.TrimSpace(string(content)) == sha {
			return e.Name()
		}
	}
	var tags []string
	for name, s := range packedRefs(gitDir) {
		if s == sha && strings.HasPrefix(name, "refs/tags/") {
			tags = append(tags, strings.TrimPrefix(name, "refs/tags/"))
		}
	}
	if len(tags) == 0 {
		return ""
	}
	sort.Strings(tags)
	return tags[0]
}

// packedRefs maps ref name to sha from .git/packed-refs.
func packedRefs(gitDir string) map[string]string {
	refs := make(map[string]string)
	file, err := os.Open(filepath.Join(gitDir, "packed-refs"))
	if err != nil {
		return refs
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		if sha, name, ok := strings.Cut(line, " "); ok {
			refs[name] = sha
		}
	}
	return refs
}

// normalizeGitURL normalizes a git URL to host/owner/repo.
func normalizeGitURL(url string) string {
	if url == "" {
		return ""
	}

	// git@github.com:org/repo.git -> github.com/org/repo
	if strings.HasPrefix(url, "git@") {
		url = strings.TrimPrefix(url, "git@")
		url = strings.Replace(url, ":", "/", 1)
	}

	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	return url
}
