// Package runner drives one scan end to end: build the dependency graph,
// resolve licenses, map the graph into the component report, then transfer
// the report to the evaluation service or ask the service to check it.
package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exploopio/depaudit/pkg/check"
	"github.com/exploopio/depaudit/pkg/checksum"
	"github.com/exploopio/depaudit/pkg/client"
	"github.com/exploopio/depaudit/pkg/core"
	"github.com/exploopio/depaudit/pkg/errors"
	"github.com/exploopio/depaudit/pkg/gitenv"
	"github.com/exploopio/depaudit/pkg/graph"
	"github.com/exploopio/depaudit/pkg/licenses"
	"github.com/exploopio/depaudit/pkg/mapper"
	"github.com/exploopio/depaudit/pkg/metrics"
	"github.com/exploopio/depaudit/pkg/privacy"
	"github.com/exploopio/depaudit/pkg/project"
	"github.com/exploopio/depaudit/pkg/report"
)

// DefaultCommentTitle heads the check summary posted to a PR/MR.
const DefaultCommentTitle = "depaudit license check"

// Transport sends reports to the evaluation service. *client.Client
// implements it.
type Transport interface {
	TransferScan(ctx context.Context, scan *report.Scan) (*client.Response, error)
	CheckScan(ctx context.Context, scan *report.Scan) (*check.Results, *client.Response, error)
}

// Config configures a Runner.
type Config struct {
	// Project is the scanned project. Required.
	Project *project.Project

	// Provider builds the dependency graph. Required.
	Provider graph.Provider

	// Resolver resolves the licenses of every dependency. Required.
	Resolver licenses.Resolver

	// Transport is required unless SkipTransfer is set.
	Transport Transport

	// GitEnv supplies branch and tag when they are not configured.
	GitEnv gitenv.GitEnv

	Logger  core.Logger
	Metrics metrics.Collector

	// Hasher computes artifact checksums. Defaults to a cached file hasher.
	Hasher checksum.Hasher

	// Skip disables the run entirely.
	Skip bool

	// SkipTransfer builds the report without sending it.
	SkipTransfer bool

	// Scope filters the graph; empty means no filtering.
	Scope string

	// PrivateComponents is a ';'-separated list of group or group:artifact
	// patterns. Defaults to the project group.
	PrivateComponents string

	// Envelope identity. Defaults: project display name, project name,
	// group:artifact.
	ProjectName string
	ModuleName  string
	ModuleID    string
	Branch      string
	Tag         string

	// OutputPath, if set, receives the payload as indented JSON.
	OutputPath string

	DedupeChildren bool

	// Check settings
	Policy       check.Policy
	Comment      bool
	CommentTitle string
}

// Outcome is what a run produced.
type Outcome struct {
	Scan        *report.Scan
	Diagnostics []mapper.Diagnostic
	Stats       mapper.Stats

	// Response is the service's answer, nil when nothing was sent.
	Response *client.Response

	// Summary is set by Check.
	Summary *check.Summary
}

// Runner runs scans.
type Runner struct {
	cfg     Config
	logger  core.Logger
	metrics metrics.Collector
	hasher  checksum.Hasher
}

// New validates cfg and creates a Runner.
func New(cfg *Config) (*Runner, error) {
	const op = "runner.New"

	if cfg == nil || cfg.Project == nil {
		return nil, errors.E(errors.KindInvalidInput, op, "project is required")
	}
	if cfg.Provider == nil {
		return nil, errors.E(errors.KindInvalidInput, op, "graph provider is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.E(errors.KindInvalidInput, op, "license resolver is required")
	}
	if cfg.Transport == nil && !cfg.SkipTransfer {
		return nil, errors.E(errors.KindInvalidInput, op, "transport is required unless transfer is skipped")
	}

	r := &Runner{
		cfg:     *cfg,
		logger:  core.OrNop(cfg.Logger),
		metrics: metrics.OrNop(cfg.Metrics),
		hasher:  cfg.Hasher,
	}
	if r.hasher == nil {
		cache, err := checksum.NewCache(checksum.DefaultCacheSize, nil)
		if err != nil {
			return nil, errors.E(errors.KindInternal, op, "create checksum cache", err)
		}
		r.hasher = cache
	}
	if r.cfg.CommentTitle == "" {
		r.cfg.CommentTitle = DefaultCommentTitle
	}
	return r, nil
}

// =============================================================================
// Report building
// =============================================================================

// Build maps the project's dependency graph into a scan envelope and writes
// it to OutputPath when configured. Nothing is sent.
func (r *Runner) Build(ctx context.Context) (*Outcome, error) {
	const op = "runner.Build"
	p := r.cfg.Project

	g, err := r.cfg.Provider.BuildGraph(ctx, p, r.cfg.Scope)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if g == nil || g.Root == nil {
		return nil, errors.E(errors.KindInvalidInput, op, "graph provider returned no root")
	}

	resolution, err := r.cfg.Resolver.Resolve(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	for _, e := range resolution.Entries {
		if e.Project != nil && project.Fix(e.Project) {
			r.logger.Debug("Corrected coordinates: %s", e.Project)
		}
	}
	r.logLicenseStats(resolution)

	table := mapper.NewTable(p, licenses.Normalize(p.LicenseNames()), resolution.Entries)

	patterns := r.cfg.PrivateComponents
	if patterns == "" {
		patterns = p.GroupID
	}
	classifier := privacy.New(patterns)
	r.logger.Debug("Private components: %s", strings.Join(classifier.Patterns(), ", "))
	m := mapper.New(
		mapper.WithLogger(r.logger),
		mapper.WithMetrics(r.metrics),
		mapper.WithPrivacy(classifier),
		mapper.WithArtifacts(g.Artifacts),
		mapper.WithChecksummer(r.hasher),
		mapper.WithDedupeChildren(r.cfg.DedupeChildren),
	)

	res := m.Map(g.Root, table)
	if !res.Mapped() {
		msg := "root component could not be mapped"
		if res.Diagnostic != nil {
			msg += ": " + res.Diagnostic.String()
		}
		return nil, errors.E(errors.KindNotFound, op, msg)
	}

	scan := report.NewScan(r.projectName(), r.moduleName(), r.moduleID(), res.Node).
		WithBranch(r.branch()).
		WithTag(r.tag())

	stats := m.Stats()
	r.logger.Info("Mapped %d components (%d unmatched, %d without checksum)",
		stats.Mapped, stats.Unmatched, stats.NoBackingFile+stats.ChecksumErrors)

	if r.cfg.OutputPath != "" {
		if err := writeJSON(r.cfg.OutputPath, scan); err != nil {
			return nil, errors.Wrap(err, op)
		}
		r.logger.Info("Report written to %s", r.cfg.OutputPath)
	}

	return &Outcome{
		Scan:        scan,
		Diagnostics: m.Diagnostics(),
		Stats:       stats,
	}, nil
}

// logLicenseStats prints how many dependencies use each license, and with
// debug logging every dependency with its licenses.
func (r *Runner) logLicenseStats(res *licenses.Resolution) {
	r.logger.Info("Licenses found:")
	for _, group := range res.ByLicense() {
		r.logger.Info("%-75s %d", group.License, len(group.Projects))
	}

	if l, ok := r.logger.(interface{ Enabled(core.LogLevel) bool }); ok && !l.Enabled(core.LogLevelDebug) {
		return
	}
	for _, e := range res.Entries {
		if e.Project == nil {
			continue
		}
		r.logger.Debug("%s: %s", e.Project, strings.Join(e.Licenses, ", "))
	}
}

func (r *Runner) projectName() string {
	if r.cfg.ProjectName != "" {
		return r.cfg.ProjectName
	}
	return r.cfg.Project.DisplayName()
}

func (r *Runner) moduleName() string {
	if r.cfg.ModuleName != "" {
		return r.cfg.ModuleName
	}
	return r.projectName()
}

func (r *Runner) moduleID() string {
	if r.cfg.ModuleID != "" {
		return r.cfg.ModuleID
	}
	return r.cfg.Project.ModuleID()
}

func (r *Runner) branch() string {
	if r.cfg.Branch != "" || r.cfg.GitEnv == nil {
		return r.cfg.Branch
	}
	return r.cfg.GitEnv.CommitBranch()
}

func (r *Runner) tag() string {
	if r.cfg.Tag != "" || r.cfg.GitEnv == nil {
		return r.cfg.Tag
	}
	return r.cfg.GitEnv.CommitTag()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.E(errors.KindInternal, "runner.writeJSON", "marshal report", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.E(errors.KindInvalidInput, "runner.writeJSON", "create output directory", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.E(errors.KindInvalidInput, "runner.writeJSON", "write report", err)
	}
	return nil
}

// =============================================================================
// Scan and check
// =============================================================================

// Scan builds the report and transfers it. Anything but 201 Created from
// the service is an error. A skipped run returns a nil Outcome.
func (r *Runner) Scan(ctx context.Context) (*Outcome, error) {
	const op = "runner.Scan"

	if r.cfg.Skip {
		r.logger.Info("Skipping execution")
		return nil, nil
	}
	timer := metrics.NewTimer(r.metrics, metrics.ScanDuration.Name)
	defer timer.ObserveDuration()

	out, err := r.Build(ctx)
	if err != nil {
		return nil, err
	}
	if r.cfg.SkipTransfer {
		r.logger.Info("Transfer skipped, %d components not sent", out.Scan.ComponentCount())
		return out, nil
	}

	resp, err := r.transfer(ctx, out.Scan)
	out.Response = resp
	if err != nil {
		return out, errors.Wrap(err, op)
	}
	return out, nil
}

func (r *Runner) transfer(ctx context.Context, scan *report.Scan) (*client.Response, error) {
	const op = "runner.transfer"

	timer := metrics.NewTimer(r.metrics, metrics.TransferDuration.Name)
	resp, err := r.cfg.Transport.TransferScan(ctx, scan)
	timer.ObserveDuration()
	if err != nil {
		r.metrics.CounterInc(metrics.TransfersTotal.Name, "status", "error")
		r.logger.Error("Transfer failed: %v", err)
		return nil, err
	}

	r.metrics.CounterInc(metrics.TransfersTotal.Name, "status", strconv.Itoa(resp.StatusCode))
	if err := resp.Expect(http.StatusCreated); err != nil {
		r.logger.Error("Failed : HTTP error code : %d", resp.StatusCode)
		r.explainRejection(err)
		return resp, errors.E(errors.KindFromStatus(resp.StatusCode), op, "service rejected the report", err)
	}

	r.metrics.GaugeSet(metrics.ComponentsReported.Name, float64(scan.ComponentCount()))
	r.logger.Info("Transferred %d components for %s", scan.ComponentCount(), scan.ModuleID)
	r.logger.Debug("Response: %s", resp.Body)
	return resp, nil
}

// explainRejection logs what a non-success status most likely means.
func (r *Runner) explainRejection(err error) {
	switch {
	case client.IsAuthenticationError(err):
		r.logger.Error("The service refused the credentials, check the user name and API key")
	case client.IsServerError(err):
		r.logger.Error("The service failed to process the report: %v", err)
	case client.IsClientError(err):
		r.logger.Error("The service rejected the report: %v", err)
	}
}

// Check builds the report, submits it for a policy check and evaluates the
// answer. With Comment set and a PR/MR open, the summary is posted there
// before a policy break is returned.
func (r *Runner) Check(ctx context.Context) (*Outcome, error) {
	const op = "runner.Check"

	if r.cfg.Skip {
		r.logger.Info("Skipping execution")
		return nil, nil
	}
	if r.cfg.Transport == nil {
		return nil, errors.E(errors.KindInvalidInput, op, "transport is required for a check")
	}
	timer := metrics.NewTimer(r.metrics, metrics.ScanDuration.Name)
	defer timer.ObserveDuration()

	out, err := r.Build(ctx)
	if err != nil {
		return nil, err
	}

	results, resp, err := r.cfg.Transport.CheckScan(ctx, out.Scan)
	out.Response = resp
	if err != nil {
		return out, errors.Wrap(err, op)
	}
	if err := resp.Expect(http.StatusOK); err != nil {
		r.logger.Error("Failed : HTTP error code : %d", resp.StatusCode)
		r.explainRejection(err)
		return out, errors.E(errors.KindFromStatus(resp.StatusCode), op, "check request failed", err)
	}

	summary, evalErr := check.Evaluate(results, r.cfg.Policy, r.logger)
	out.Summary = &summary

	if r.cfg.Comment {
		r.comment(ctx, summary)
	}
	if evalErr != nil {
		return out, errors.Wrap(evalErr, op)
	}
	return out, nil
}

// comment posts the summary to the open PR/MR. Failures are logged only.
func (r *Runner) comment(ctx context.Context, summary check.Summary) {
	env := r.cfg.GitEnv
	if env == nil || env.MergeRequestID() == "" {
		r.logger.Debug("No open PR/MR, summary not posted")
		return
	}
	err := env.CreateMRComment(ctx, gitenv.MRCommentOption{Body: summary.Markdown(r.cfg.CommentTitle)})
	if err != nil {
		r.logger.Warn("Could not post check summary: %v", err)
	}
}
