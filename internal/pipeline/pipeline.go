package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/screenlens/screenlens/internal/analyzer"
	"github.com/screenlens/screenlens/internal/extractor"
	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/internal/parser"
	"github.com/screenlens/screenlens/internal/rules"
	"github.com/screenlens/screenlens/internal/store"
	"github.com/screenlens/screenlens/pkg/runerr"
)

// Options parameterizes one run.
type Options struct {
	InputPath        string
	OutDir           string
	RunID            string
	SourceVersion    string
	ExtractorCommand string
}

// Orchestrator owns the run-level contract: extract, parse, analyze,
// persist, finalize, with fail-soft aggregation of per-object failures.
type Orchestrator struct {
	store   *store.Store
	rules   *rules.Config
	workers int
	logger  *slog.Logger
}

// New builds an orchestrator. The rule config is captured by value here;
// runtime rule changes require a new orchestrator.
func New(s *store.Store, cfg *rules.Config, workers int, logger *slog.Logger) *Orchestrator {
	if cfg == nil {
		cfg = rules.Default()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	captured := *cfg
	return &Orchestrator{store: s, rules: &captured, workers: workers, logger: logger}
}

// Run executes one end-to-end analysis. The returned outcome carries the
// aggregated failures and the process exit code; err is non-nil only for
// fatal conditions (input errors, persistence violations, cancellation).
func (o *Orchestrator) Run(ctx context.Context, ext extractor.Extractor, opts Options) (*Outcome, error) {
	started := time.Now().UTC()

	runID := opts.RunID
	if runID == "" {
		runID = NewRunID()
	} else if strings.ContainsAny(runID, " \t\r\n") {
		return fatalOutcome(runID, started), runerr.Newf(runerr.CodeInput, "invalid run id %q", opts.RunID)
	}

	o.logger.Info("run started",
		slog.String("run_id", runID),
		slog.String("input", opts.InputPath),
		slog.String("extractor", ext.Name()))

	run := ir.Run{
		RunID:         runID,
		StartedAt:     started,
		Status:        ir.RunRunning,
		SourceVersion: opts.SourceVersion,
	}
	if err := o.store.InsertRun(ctx, run); err != nil {
		return fatalOutcome(runID, started), runerr.Wrap(runerr.CodeInput, "run id not allocatable", err)
	}

	outcome, err := o.execute(ctx, ext, opts, runID)
	outcome.Elapsed = time.Since(started)

	if ferr := o.store.FinalizeRun(ctx, runID, outcome.Status, time.Now().UTC()); ferr != nil {
		o.logger.Error("run finalize failed",
			slog.String("run_id", runID), slog.String("error", ferr.Error()))
		if err == nil {
			err = ferr
			outcome.Status = ir.RunFailed
			outcome.ExitCode = runerr.ExitFatal
		}
	}

	o.logger.Info("run finished",
		slog.String("run_id", runID),
		slog.String("status", string(outcome.Status)),
		slog.Int("objects", outcome.Objects),
		slog.Int("relations", outcome.Relations),
		slog.Int("failures", len(outcome.Failures)),
		slog.Duration("elapsed", outcome.Elapsed))

	return outcome, err
}

func (o *Orchestrator) execute(ctx context.Context, ext extractor.Extractor, opts Options, runID string) (*Outcome, error) {
	outcome := &Outcome{RunID: runID, Status: ir.RunFailed, ExitCode: runerr.ExitFatal, Failures: []Failure{}}

	manifest, err := ext.Extract(ctx, opts.InputPath, opts.OutDir, extractor.Options{Command: opts.ExtractorCommand})
	if err != nil {
		return outcome, err
	}
	for _, f := range manifest.Failures {
		outcome.Failures = append(outcome.Failures, Failure{Stage: "extract", Path: f.Path, Reason: f.Reason})
	}
	if opts.SourceVersion == "" && manifest.SourceVersion != "" {
		// informational only; the run row was already written
		o.logger.Info("manifest source version", slog.String("version", manifest.SourceVersion))
	}

	files, dataWindows, parseFailures, err := o.parseAll(ctx, manifest)
	if err != nil {
		return outcome, err
	}
	outcome.Failures = append(outcome.Failures, parseFailures...)

	// Fatal only when files were present and none survived parsing.
	live := 0
	for _, pf := range files {
		if !pf.Abandoned {
			live++
		}
	}
	if len(manifest.Objects) > 0 && live == 0 && len(dataWindows) == 0 {
		return outcome, runerr.New(runerr.CodeParse, "every file of the manifest failed to parse")
	}

	result := analyzer.New(o.rules, o.logger).Analyze(files, dataWindows)
	for _, diag := range result.Unresolved {
		o.logger.Debug("unresolved callee",
			slog.String("object", diag.Object),
			slog.String("callee", diag.Callee),
			slog.String("kind", string(diag.Kind)))
	}

	if err := ctx.Err(); err != nil {
		return outcome, runerr.Wrap(runerr.CodeCanceled, "run canceled before persistence", err)
	}

	persisted, err := o.store.ApplyAnalysis(ctx, runID, result.Analysis)
	if err != nil {
		return outcome, err
	}

	outcome.Objects = persisted.Objects
	outcome.Events = persisted.Events
	outcome.Functions = persisted.Functions
	outcome.Relations = persisted.Relations
	outcome.Sql = persisted.SqlStatements
	outcome.DataWindows = persisted.DataWindows

	if len(outcome.Failures) > 0 {
		outcome.Status = ir.RunPartial
	} else {
		outcome.Status = ir.RunOK
	}
	outcome.ExitCode = exitCodeFor(outcome.Status)
	return outcome, nil
}

// parseAll runs the per-file parsers across a bounded worker pool. The
// collectors are the only shared mutable state; both are append-only under
// one mutex. Cancellation is observed at file boundaries.
func (o *Orchestrator) parseAll(ctx context.Context, manifest *extractor.Manifest) ([]*parser.ParsedFile, []*parser.ParsedDataWindow, []Failure, error) {
	var (
		mu          sync.Mutex
		files       []*parser.ParsedFile
		dataWindows []*parser.ParsedDataWindow
		failures    []Failure
	)

	jobs := make(chan extractor.ManifestObject)
	var wg sync.WaitGroup

	maxErrors := o.rules.MaxErrorsPerFile()

	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for obj := range jobs {
				if ctx.Err() != nil {
					continue
				}
				pf, dw, fails := o.parseOne(obj, maxErrors)
				mu.Lock()
				if pf != nil {
					files = append(files, pf)
				}
				if dw != nil {
					dataWindows = append(dataWindows, dw)
				}
				failures = append(failures, fails...)
				mu.Unlock()
			}
		}()
	}

	for _, obj := range manifest.Objects {
		jobs <- obj
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, nil, runerr.Wrap(runerr.CodeCanceled, "run canceled during parsing", err)
	}
	return files, dataWindows, failures, nil
}

// parseOne reads and parses a single manifest object. A parse failure of
// one file never aborts another.
func (o *Orchestrator) parseOne(obj extractor.ManifestObject, maxErrors int) (*parser.ParsedFile, *parser.ParsedDataWindow, []Failure) {
	content, err := os.ReadFile(obj.ExtractedPath)
	if err != nil {
		return nil, nil, []Failure{{Stage: "parse", Path: obj.SourcePath, Reason: fmt.Sprintf("extracted file not readable: %v", err)}}
	}

	input := parser.FileInput{
		Path:    obj.ExtractedPath,
		Content: content,
		Type:    obj.Type,
		Name:    obj.Name,
		Module:  obj.Module,
	}

	kind := obj.Type
	if !ir.ValidObjectType(kind) || kind == "" {
		kind = parser.DetectKind(obj.ExtractedPath, content)
	}

	if parser.IsDescriptor(kind) {
		dw := parser.ParseDescriptor(input)
		var fails []Failure
		for _, issue := range dw.Issues {
			fails = append(fails, Failure{Stage: "parse", Path: obj.SourcePath, Reason: issue.Message})
		}
		return nil, dw, fails
	}

	pf := parser.ParseSource(input, maxErrors)
	var fails []Failure
	if pf.Abandoned {
		fails = append(fails, Failure{
			Stage: "parse",
			Path:  obj.SourcePath,
			Reason: fmt.Sprintf("abandoned after %d parse errors", len(pf.Issues)),
		})
		o.logger.Warn("file abandoned",
			slog.String("path", obj.SourcePath),
			slog.Int("errors", len(pf.Issues)))
		return pf, nil, fails
	}
	for _, issue := range pf.Issues {
		fails = append(fails, Failure{
			Stage:  "parse",
			Path:   obj.SourcePath,
			Reason: fmt.Sprintf("line %d: %s", issue.Line, issue.Message),
		})
	}
	return pf, nil, fails
}

func fatalOutcome(runID string, started time.Time) *Outcome {
	return &Outcome{
		RunID:    runID,
		Status:   ir.RunFailed,
		ExitCode: runerr.ExitFatal,
		Failures: []Failure{},
		Elapsed:  time.Since(started),
	}
}

// NewRunID allocates a sortable run identifier.
func NewRunID() string {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("run_%s_%s", stamp, uuid.NewString()[:8])
}
