// Package check evaluates the evaluation service's verdict on a scan and
// decides whether it breaks the build.
package check

import (
	"fmt"
	"strings"

	"github.com/exploopio/depaudit/pkg/core"
	"github.com/exploopio/depaudit/pkg/errors"
)

// =============================================================================
// Check results, as returned by the evaluation service
// =============================================================================

// Results is the body of a successful check response.
type Results struct {
	Warnings []Warning `json:"warnings"`
	Data     []Result  `json:"data"`
}

// Warning reports a component the service could not fully identify.
type Warning struct {
	Component         string `json:"component"`
	Version           string `json:"version"`
	ComponentNotFound bool   `json:"componentNotFound"`
	VersionNotFound   bool   `json:"versionNotFound"`
	LicenseNotFound   bool   `json:"licenseNotFound"`
}

// Result is the verdict for one component.
type Result struct {
	Component       Component       `json:"component"`
	Changed         Violations      `json:"changed"`
	NotChanged      Violations      `json:"not_changed"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// Component names a checked component.
type Component struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (c Component) String() string {
	return c.Name + " " + c.Version
}

// Violations lists legal findings, for a modified or unmodified component.
type Violations struct {
	Violations []Violation `json:"violations"`
}

// Violation is a legal finding.
type Violation struct {
	Violation bool   `json:"violation"`
	Warning   bool   `json:"warning"`
	Message   string `json:"message"`
}

// Vulnerability is a security finding.
type Vulnerability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Violation   bool   `json:"violation"`
	Warning     bool   `json:"warning"`
}

// =============================================================================
// Policy
// =============================================================================

// Policy decides which findings break the build.
type Policy struct {
	AllowBreakBuild              bool `yaml:"allow_break_build" json:"allow_break_build"`
	BreakOnLegalIssues           bool `yaml:"break_on_legal_issues" json:"break_on_legal_issues"`
	BreakOnVulnerabilities       bool `yaml:"break_on_vulnerabilities" json:"break_on_vulnerabilities"`
	BreakOnViolationsOnly        bool `yaml:"break_on_violations_only" json:"break_on_violations_only"`
	BreakOnViolationsAndWarnings bool `yaml:"break_on_violations_and_warnings" json:"break_on_violations_and_warnings"`

	// AssumeComponentsModified evaluates the legal findings for modified
	// components instead of unmodified ones.
	AssumeComponentsModified bool `yaml:"assume_components_modified" json:"assume_components_modified"`
}

// DefaultPolicy breaks on legal and security violations, not on warnings.
func DefaultPolicy() Policy {
	return Policy{
		AllowBreakBuild:        true,
		BreakOnLegalIssues:     true,
		BreakOnVulnerabilities: true,
		BreakOnViolationsOnly:  true,
	}
}

// =============================================================================
// Evaluation
// =============================================================================

// FindingKind is the category of a finding.
type FindingKind string

const (
	FindingLegal         FindingKind = "legal"
	FindingVulnerability FindingKind = "vulnerability"
)

// Finding is one violation or warning that took part in the decision.
type Finding struct {
	Kind      FindingKind
	Violation bool
	Component string
	Message   string
}

// Summary counts what Evaluate saw.
type Summary struct {
	ComponentWarnings int

	LegalViolations int
	LegalWarnings   int
	VulnViolations  int
	VulnWarnings    int

	Findings []Finding

	// Broken is set when the policy failed the build.
	Broken bool
	Reason string
}

// Evaluate logs the service's warnings and, if the policy allows breaking
// the build, the legal and security findings. It returns a KindPolicy error
// when the findings break the build.
func Evaluate(results *Results, policy Policy, logger core.Logger) (Summary, error) {
	logger = core.OrNop(logger)
	var s Summary
	if results == nil {
		return s, nil
	}

	for _, w := range results.Warnings {
		msg := fmt.Sprintf("Component %q", strings.TrimSpace(w.Component+" "+w.Version))
		if w.ComponentNotFound {
			logger.Warn("%s component not found", msg)
			s.ComponentWarnings++
		}
		if w.VersionNotFound {
			logger.Warn("%s version not found", msg)
			s.ComponentWarnings++
		}
		if w.LicenseNotFound {
			logger.Warn("%s license not found", msg)
			s.ComponentWarnings++
		}
	}

	if !policy.AllowBreakBuild {
		return s, nil
	}

	if policy.BreakOnLegalIssues {
		for _, r := range results.Data {
			legal := r.NotChanged.Violations
			if policy.AssumeComponentsModified {
				legal = r.Changed.Violations
			}
			for _, v := range legal {
				f := Finding{Kind: FindingLegal, Violation: v.Violation, Component: r.Component.String(), Message: v.Message}
				switch {
				case v.Violation:
					logger.Error("%s: %s", f.Component, f.Message)
					s.LegalViolations++
				case v.Warning:
					logger.Warn("%s: %s", f.Component, f.Message)
					s.LegalWarnings++
				default:
					continue
				}
				s.Findings = append(s.Findings, f)
			}
		}
		if breaks(policy, s.LegalViolations, s.LegalWarnings) {
			return s.broken("found legal violations")
		}
	}

	if policy.BreakOnVulnerabilities {
		for _, r := range results.Data {
			for _, v := range r.Vulnerabilities {
				f := Finding{
					Kind:      FindingVulnerability,
					Violation: v.Violation,
					Component: r.Component.String(),
					Message:   fmt.Sprintf("[%s] %s", v.Name, v.Description),
				}
				switch {
				case v.Violation:
					logger.Error("%s: %s", f.Component, f.Message)
					s.VulnViolations++
				case v.Warning:
					logger.Warn("%s: %s", f.Component, f.Message)
					s.VulnWarnings++
				default:
					continue
				}
				s.Findings = append(s.Findings, f)
			}
		}
		if breaks(policy, s.VulnViolations, s.VulnWarnings) {
			return s.broken("found vulnerabilities")
		}
	}

	return s, nil
}

func breaks(p Policy, violations, warnings int) bool {
	if p.BreakOnViolationsAndWarnings && (violations > 0 || warnings > 0) {
		return true
	}
	return p.BreakOnViolationsOnly && violations > 0
}

func (s Summary) broken(reason string) (Summary, error) {
	s.Broken = true
	s.Reason = reason
	return s, errors.E(errors.KindPolicy, "check.Evaluate", reason)
}

// Markdown renders the summary as a merge request comment.
func (s Summary) Markdown(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", title)
	if s.Broken {
		fmt.Fprintf(&b, "**Build broken: %s.**\n\n", s.Reason)
	}
	b.WriteString("| | Violations | Warnings |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| Legal | %d | %d |\n", s.LegalViolations, s.LegalWarnings)
	fmt.Fprintf(&b, "| Vulnerabilities | %d | %d |\n", s.VulnViolations, s.VulnWarnings)
	if s.ComponentWarnings > 0 {
		fmt.Fprintf(&b, "\n%d component(s) could not be fully identified.\n", s.ComponentWarnings)
	}
	if len(s.Findings) > 0 {
		b.WriteString("\n<details><summary>Findings</summary>\n\n")
		for _, f := range s.Findings {
			level := "warning"
			if f.Violation {
				level = "violation"
			}
			fmt.Fprintf(&b, "- %s %s, **%s**: %s\n", f.Kind, level, f.Component, f.Message)
		}
		b.WriteString("\n</details>\n")
	}
	return b.String()
}
