package run

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goldpipe/pkg/core/content"
	"goldpipe/pkg/core/fingerprint"
	"goldpipe/pkg/core/llm"
	"goldpipe/pkg/core/preset"
	"goldpipe/pkg/core/sink"
	"goldpipe/pkg/core/stage"
	"goldpipe/pkg/core/template"
)

// fpLocks serializes in-process work per fingerprint. Two workers reaching
// the same fingerprint concurrently must resolve to one execution and one
// cache read.
type fpLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *fpLocks) lock(fp string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[fp]
	if !ok {
		m = &sync.Mutex{}
		l.locks[fp] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m
}

// Orchestrator drives runs: it resolves instruction templates, fingerprints
// every stage invocation, consults the result cache, executes misses under
// the retry policy, and assembles per-document and run-level state.
type Orchestrator struct {
	store  content.Store
	llms   *llm.Manager
	cache  ResultCache
	repo   Repo
	sink   sink.Sink
	logger *zap.Logger
	locks  fpLocks
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(store content.Store, llms *llm.Manager, cache ResultCache, repo Repo, out sink.Sink, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		llms:   llms,
		cache:  cache,
		repo:   repo,
		sink:   out,
		logger: logger,
		locks:  fpLocks{locks: map[string]*sync.Mutex{}},
	}
}

// instructions holds the per-run resolved instruction texts. Resolution
// happens once per run, before any document is dispatched, so every stage of
// the run sees identical instruction bytes.
type instructions struct {
	generation string
	singleEval string
	pairwise   string
	criteria   string
	combine    string
}

// ExecuteRun runs the full pipeline for one preset over the given documents.
// The returned run always carries a terminal status; the error is non-nil
// only for configuration-level failures detected before any stage executed.
func (o *Orchestrator) ExecuteRun(ctx context.Context, p *preset.Preset, docs []stage.Document) (*Run, error) {
	r := &Run{
		ID:        uuid.New().String(),
		PresetID:  p.ID,
		Status:    StatusPending,
		Documents: map[string]*DocumentState{},
		CreatedAt: time.Now().UTC(),
	}
	if err := o.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	fail := func(err error) (*Run, error) {
		o.logger.Error("run failed before execution", zap.String("run_id", r.ID), zap.Error(err))
		r.Error = err.Error()
		o.finish(ctx, r, StatusFailed)
		return r, err
	}

	if err := p.Validate(ctx, o.store); err != nil {
		return fail(err)
	}
	if len(docs) == 0 {
		return fail(fmt.Errorf("preset '%s': no input documents", p.ID))
	}

	ins, err := o.resolveInstructions(ctx, p)
	if err != nil {
		return fail(err)
	}

	r.Status = StatusRunning
	if err := o.repo.Update(ctx, r); err != nil {
		o.logger.Warn("failed to persist running status", zap.String("run_id", r.ID), zap.Error(err))
	}
	o.logger.Info("run started",
		zap.String("run_id", r.ID),
		zap.String("preset", p.ID),
		zap.Int("documents", len(docs)),
		zap.Int("candidates", len(p.Candidates)),
		zap.Int("concurrency", p.Options.Concurrency))

	limit := p.Options.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			ds := o.processDocument(gctx, p, ins, doc)
			mu.Lock()
			r.Documents[doc.ID] = ds
			mu.Unlock()
			// Document failures are isolated; only context cancellation
			// aborts siblings.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		r.Error = err.Error()
		o.finish(ctx, r, StatusFailed)
		return r, err
	}

	o.finish(ctx, r, deriveStatus(r))
	o.logger.Info("run finished",
		zap.String("run_id", r.ID),
		zap.String("status", string(r.Status)))
	return r, nil
}

func (o *Orchestrator) finish(ctx context.Context, r *Run, status Status) {
	now := time.Now().UTC()
	r.Status = status
	r.FinishedAt = &now
	if err := o.repo.Update(ctx, r); err != nil {
		o.logger.Error("failed to persist run state", zap.String("run_id", r.ID), zap.Error(err))
	}
}

// deriveStatus maps document outcomes to the run's terminal status. A run
// with any failed document but at least one success is partial; degraded
// documents also demote a run from completed.
func deriveStatus(r *Run) Status {
	failed, succeeded, degraded := 0, 0, 0
	for _, ds := range r.Documents {
		switch {
		case ds.Failed:
			failed++
		case ds.Degraded:
			degraded++
			succeeded++
		default:
			succeeded++
		}
	}
	switch {
	case failed == 0 && degraded == 0:
		return StatusCompleted
	case succeeded == 0:
		return StatusFailed
	default:
		return StatusPartiallyCompleted
	}
}

func (o *Orchestrator) resolveInstructions(ctx context.Context, p *preset.Preset) (*instructions, error) {
	resolver := template.NewResolver(o.store, template.Options{Strict: p.Options.Strict})

	resolve := func(id string) (string, error) {
		if id == "" {
			return "", nil
		}
		res, err := resolver.ResolveID(ctx, id, p.Runtime)
		if err != nil {
			return "", err
		}
		for _, w := range res.Warnings {
			o.logger.Warn("template warning", zap.String("content_id", id), zap.String("warning", w))
		}
		return res.Text, nil
	}

	ins := &instructions{}
	var err error
	if ins.generation, err = resolve(p.Content.Generation); err != nil {
		return nil, err
	}
	if ins.singleEval, err = resolve(p.Content.SingleEval); err != nil {
		return nil, err
	}
	if ins.pairwise, err = resolve(p.Content.PairwiseEval); err != nil {
		return nil, err
	}
	if ins.criteria, err = resolve(p.Content.Criteria); err != nil {
		return nil, err
	}
	if ins.combine, err = resolve(p.Content.Combine); err != nil {
		return nil, err
	}
	return ins, nil
}

// processDocument runs the stage sequence for one document. Generation and
// combine failures fail the document; evaluation failures degrade it and the
// pipeline continues without the missing score or verdict.
func (o *Orchestrator) processDocument(ctx context.Context, p *preset.Preset, ins *instructions, doc stage.Document) *DocumentState {
	ds := &DocumentState{DocumentID: doc.ID}
	log := o.logger.With(zap.String("document", doc.ID))

	failDoc := func(phase string, err error) *DocumentState {
		log.Error("document pipeline failed", zap.String("phase", phase), zap.Error(err))
		ds.Failed = true
		ds.Error = fmt.Sprintf("%s: %v", phase, err)
		return ds
	}

	// Generate one candidate per configuration. All candidates must succeed
	// for the combine stage to see the full set.
	outputs := make([]stage.GeneratedOutput, 0, len(p.Candidates))
	for i, cfg := range p.Candidates {
		fp := fingerprint.Stage(string(stage.KindGenerate), ins.generation, doc.Text, cfg)
		ds.Fingerprints = append(ds.Fingerprints, fp)

		provider, err := o.provider(stage.KindGenerate, cfg)
		if err != nil {
			return failDoc("generate", err)
		}
		sr, err := o.runStage(ctx, p, fp, stage.KindGenerate, doc.ID, stage.NewGenerator(provider), stage.Inputs{
			Instructions: ins.generation,
			Document:     doc,
			Config:       cfg,
		})
		if err != nil {
			return failDoc("generate", err)
		}
		if !sr.Success {
			return failDoc("generate", fmt.Errorf("candidate %d: %s", i+1, sr.ErrorDetail))
		}
		outputs = append(outputs, stage.GeneratedOutput{Fingerprint: fp, Text: sr.Output})
	}

	if p.HasSingleEval() {
		o.evaluateSingles(ctx, p, ins, doc, ds, outputs, log)
	}
	if p.HasPairwiseEval() {
		o.evaluatePairs(ctx, p, ins, doc, ds, outputs, log)
	}

	gold, err := o.combine(ctx, p, ins, doc, ds, outputs)
	if err != nil {
		return failDoc("combine", err)
	}
	ds.GoldOutput = gold

	if err := o.sink.Write(ctx, p.Output, doc.ID, gold); err != nil {
		return failDoc("deliver", err)
	}
	log.Info("document completed", zap.Bool("degraded", ds.Degraded))
	return ds
}

// evaluateSingles scores each candidate output. A failed evaluation leaves
// that candidate unscored and marks the document degraded.
func (o *Orchestrator) evaluateSingles(ctx context.Context, p *preset.Preset, ins *instructions,
	doc stage.Document, ds *DocumentState, outputs []stage.GeneratedOutput, log *zap.Logger) {

	provider, err := o.provider(stage.KindEvaluateSingle, p.EvalConfig)
	if err != nil {
		ds.Degraded = true
		log.Warn("single evaluation skipped", zap.Error(err))
		return
	}
	exec := stage.NewSingleEvaluator(provider)

	for i := range outputs {
		fp := fingerprint.StageMulti(string(stage.KindEvaluateSingle), ins.singleEval,
			[]string{ins.criteria, outputs[i].Text}, p.EvalConfig)
		ds.Fingerprints = append(ds.Fingerprints, fp)

		sr, err := o.runStage(ctx, p, fp, stage.KindEvaluateSingle, doc.ID, exec, stage.Inputs{
			Instructions: ins.singleEval,
			Criteria:     ins.criteria,
			Scale:        p.Scale,
			Output:       outputs[i].Text,
			Config:       p.EvalConfig,
		})
		if err != nil || !sr.Success {
			ds.Degraded = true
			detail := ""
			if err != nil {
				detail = err.Error()
			} else {
				detail = sr.ErrorDetail
			}
			log.Warn("single evaluation failed, continuing without score",
				zap.Int("candidate", i+1), zap.String("detail", detail))
			continue
		}
		outputs[i].Score = sr.Score
	}
}

// evaluatePairs runs pairwise comparisons over every unordered candidate
// pair. Failures degrade the document; verdicts are advisory and do not
// gate the combine stage.
func (o *Orchestrator) evaluatePairs(ctx context.Context, p *preset.Preset, ins *instructions,
	doc stage.Document, ds *DocumentState, outputs []stage.GeneratedOutput, log *zap.Logger) {

	if len(outputs) < 2 {
		return
	}
	provider, err := o.provider(stage.KindEvaluatePairwise, p.EvalConfig)
	if err != nil {
		ds.Degraded = true
		log.Warn("pairwise evaluation skipped", zap.Error(err))
		return
	}
	exec := stage.NewPairwiseEvaluator(provider)

	for i := 0; i < len(outputs); i++ {
		for j := i + 1; j < len(outputs); j++ {
			a, b := outputs[i].Text, outputs[j].Text
			if p.Options.PairwiseOrderIndependent && b < a {
				a, b = b, a
			}
			fp := fingerprint.StageMulti(string(stage.KindEvaluatePairwise), ins.pairwise,
				[]string{ins.criteria, a, b}, p.EvalConfig)
			ds.Fingerprints = append(ds.Fingerprints, fp)

			sr, err := o.runStage(ctx, p, fp, stage.KindEvaluatePairwise, doc.ID, exec, stage.Inputs{
				Instructions: ins.pairwise,
				Criteria:     ins.criteria,
				OutputA:      a,
				OutputB:      b,
				Config:       p.EvalConfig,
			})
			if err != nil || !sr.Success {
				ds.Degraded = true
				log.Warn("pairwise evaluation failed, continuing without verdict",
					zap.Int("a", i+1), zap.Int("b", j+1))
				continue
			}
		}
	}
}

func (o *Orchestrator) combine(ctx context.Context, p *preset.Preset, ins *instructions,
	doc stage.Document, ds *DocumentState, outputs []stage.GeneratedOutput) (string, error) {

	parts := make([]string, 0, len(outputs))
	for _, out := range outputs {
		part := out.Text
		if out.Score != nil {
			if out.Score.Category != "" {
				part = fmt.Sprintf("[score: %s]\n%s", out.Score.Category, out.Text)
			} else {
				part = fmt.Sprintf("[score: %.2f]\n%s", out.Score.Value, out.Text)
			}
		}
		parts = append(parts, part)
	}
	fp := fingerprint.StageMulti(string(stage.KindCombine), ins.combine, parts, p.CombineConfig)
	ds.Fingerprints = append(ds.Fingerprints, fp)

	provider, err := o.provider(stage.KindCombine, p.CombineConfig)
	if err != nil {
		return "", err
	}
	sr, err := o.runStage(ctx, p, fp, stage.KindCombine, doc.ID, stage.NewCombiner(provider), stage.Inputs{
		Instructions: ins.combine,
		Outputs:      outputs,
		Config:       p.CombineConfig,
	})
	if err != nil {
		return "", err
	}
	if !sr.Success {
		return "", fmt.Errorf("%s", sr.ErrorDetail)
	}
	return sr.Output, nil
}

// runStage resolves one fingerprinted stage invocation: cache hit, cached
// failure, or fresh execution under the retry policy. The fingerprint lock
// guarantees at most one in-process execution per key; the cache's
// insert-if-absent commit guards cross-process races.
func (o *Orchestrator) runStage(ctx context.Context, p *preset.Preset, fp string, kind stage.Kind,
	docID string, exec stage.Executor, in stage.Inputs) (*StageResult, error) {

	lock := o.locks.lock(fp)
	defer lock.Unlock()

	cached, err := o.cache.Get(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("cache lookup for %s failed: %w", kind, err)
	}
	retryingFailure := false
	if cached != nil {
		if cached.Success || !p.Options.RetryFailed {
			o.logger.Debug("stage cache hit",
				zap.String("fingerprint", fp),
				zap.String("kind", string(kind)),
				zap.Bool("success", cached.Success))
			return cached, nil
		}
		retryingFailure = true
	}

	policy := retryPolicy{
		MaxRetries: p.Options.MaxRetries,
		Timeout:    time.Duration(p.Options.TimeoutSeconds) * time.Second,
	}
	var result *stage.Result
	execErr := withRetry(ctx, o.logger, policy, func(callCtx context.Context) error {
		var err error
		result, err = exec.Produce(callCtx, in)
		return err
	})

	sr := &StageResult{
		Fingerprint: fp,
		Kind:        kind,
		DocumentID:  docID,
		CreatedAt:   time.Now().UTC(),
	}
	if execErr != nil {
		if ctx.Err() != nil {
			// Cancellation is not a stage outcome; leave the cache untouched.
			return nil, ctx.Err()
		}
		sr.ErrorDetail = execErr.Error()
	} else {
		sr.Success = true
		sr.Output = result.Output
		sr.Score = result.Score
		sr.Pairwise = result.Pairwise
	}

	commit := o.cache.Put
	if retryingFailure {
		commit = o.cache.Replace
	}
	if err := commit(ctx, sr); err != nil {
		return nil, fmt.Errorf("failed to persist %s result: %w", kind, err)
	}
	return sr, nil
}

func (o *Orchestrator) provider(kind stage.Kind, cfg fingerprint.Config) (llm.Provider, error) {
	if cfg.Provider != "" {
		return o.llms.ProviderByName(cfg.Provider)
	}
	return o.llms.ProviderFor(string(kind))
}

// GetRunStatus returns the persisted run record.
func (o *Orchestrator) GetRunStatus(ctx context.Context, runID string) (*Run, error) {
	return o.repo.Get(ctx, runID)
}

// GetStageResult returns the cached result for a fingerprint, or nil when
// none exists.
func (o *Orchestrator) GetStageResult(ctx context.Context, fp string) (*StageResult, error) {
	return o.cache.Get(ctx, fp)
}

// SortedFingerprints returns a document's fingerprints in stable order, for
// reporting.
func SortedFingerprints(ds *DocumentState) []string {
	fps := append([]string(nil), ds.Fingerprints...)
	sort.Strings(fps)
	return fps
}
