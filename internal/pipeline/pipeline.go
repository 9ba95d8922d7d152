// Package pipeline runs a backtest end to end and writes its report files.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"

	"pdufa-lab/internal/backtest"
	"pdufa-lab/internal/decision"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/logging"
	"pdufa-lab/internal/reporting"
	"pdufa-lab/internal/storage"
)

// GeneratorVersion is recorded in every manifest.
const GeneratorVersion = "1.0.0"

// Output files, written under <output dir>/<run id>/.
const (
	ReportFile   = "REPORT.md"
	EventsFile   = "events.csv"
	DecisionFile = "DECISION_GATE_REPORT.md"
	ManifestFile = "manifest.json"
)

// Manifest records what produced a report directory.
type Manifest struct {
	RunID            string    `json:"run_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	GeneratorVersion string    `json:"generator_version"`
	DataVersion      string    `json:"data_version"` // short hash of scored events
	CommitHash       string    `json:"commit_hash"`
	DataSource       string    `json:"data_source,omitempty"`
	Decision         string    `json:"decision,omitempty"`
	Files            []string  `json:"files"`
}

// Result is the output of one pipeline pass.
type Result struct {
	Backtest *backtest.Report // nil when rendering a stored run
	Report   *reporting.Report
	Manifest Manifest
	Dir      string
}

// Pipeline runs backtests and renders their reports to disk.
type Pipeline struct {
	runner     *backtest.Runner
	reportGen  *reporting.Generator
	outputDir  string
	clock      func() time.Time
	dataSource string
	commitHash func() string
	logger     *log.Logger
}

// New creates a pipeline. runner may be nil when only Render is used.
func New(runner *backtest.Runner, gen *reporting.Generator, outputDir string) *Pipeline {
	return &Pipeline{
		runner:     runner,
		reportGen:  gen,
		outputDir:  outputDir,
		clock:      func() time.Time { return time.Now().UTC() },
		commitHash: gitCommitHash,
		logger:     logging.Nop(),
	}
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	p.reportGen = p.reportGen.WithClock(clock)
	return p
}

// WithDataSource describes where events came from, for the manifest.
func (p *Pipeline) WithDataSource(source string) *Pipeline {
	p.dataSource = source
	return p
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(l *log.Logger) *Pipeline {
	if l != nil {
		p.logger = l
	}
	return p
}

// Run backtests events and writes the report.
func (p *Pipeline) Run(ctx context.Context, events []domain.EventRecord) (*Result, error) {
	if p.runner == nil {
		return nil, fmt.Errorf("pipeline: no backtest runner")
	}
	bt, err := p.runner.Run(ctx, events)
	if err != nil {
		return nil, err
	}
	res, err := p.write(p.reportGen.FromBacktest(bt))
	if err != nil {
		return nil, err
	}
	res.Backtest = bt
	return res, nil
}

// RunStored backtests every event in store and writes the report.
func (p *Pipeline) RunStored(ctx context.Context, store storage.EventStore) (*Result, error) {
	events, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	recs := make([]domain.EventRecord, len(events))
	for i, e := range events {
		recs[i] = *e
	}
	return p.Run(ctx, recs)
}

// Render writes the report of a stored run. An empty runID selects the latest.
func (p *Pipeline) Render(ctx context.Context, runID string) (*Result, error) {
	report, err := p.reportGen.Generate(ctx, runID)
	if err != nil {
		return nil, err
	}
	return p.write(report)
}

func (p *Pipeline) write(report *reporting.Report) (*Result, error) {
	dir := filepath.Join(p.outputDir, report.Run.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	manifest := Manifest{
		RunID:            report.Run.RunID,
		GeneratedAt:      p.clock(),
		GeneratorVersion: GeneratorVersion,
		DataVersion:      DataVersion(report.Events),
		CommitHash:       p.commitHash(),
		DataSource:       p.dataSource,
	}

	files := map[string]string{ReportFile: reporting.RenderMarkdown(report)}

	eventsCSV, err := reporting.RenderCSV(report.Events)
	if err != nil {
		return nil, err
	}
	files[EventsFile] = eventsCSV

	if report.Gate != nil {
		manifest.Decision = string(report.Gate.Decision)
		files[DecisionFile] = decision.RenderMarkdown(report.Gate)
	}

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return nil, err
		}
		manifest.Files = append(manifest.Files, name)
	}
	manifest.Files = append(manifest.Files, ManifestFile)
	sort.Strings(manifest.Files)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("run_id", manifest.RunID).
		Str("dir", dir).
		Str("decision", manifest.Decision).
		Str("data_version", manifest.DataVersion).
		Msg("report written")

	return &Result{Report: report, Manifest: manifest, Dir: dir}, nil
}

// DataVersion hashes the scored events so two reports over the same data
// and model share a version.
func DataVersion(rows []reporting.EventRow) string {
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, fmt.Sprintf("%s|%s|%.6f", r.EventID, r.Actual, r.Probability))
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// gitCommitHash returns the current commit or "unknown" outside a repository.
func gitCommitHash() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "unknown"
	}
	return strings.TrimSpace(out.String())
}
