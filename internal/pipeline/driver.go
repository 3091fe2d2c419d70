// Package pipeline runs a batch of pages through extraction, matching and clustering.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/async"
	"github.com/joseph-ayodele/docmatch/internal/catalog"
	"github.com/joseph-ayodele/docmatch/internal/cluster"
	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/entity"
	"github.com/joseph-ayodele/docmatch/internal/extract"
	"github.com/joseph-ayodele/docmatch/internal/match"
	"github.com/joseph-ayodele/docmatch/internal/ocr"
	"github.com/joseph-ayodele/docmatch/internal/repository"
	"github.com/joseph-ayodele/docmatch/internal/visual"
)

// Options tune the worker pool and the clusterer.
type Options struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration

	ClusterThreshold float64
	Weights          cluster.Weights
	Limits           cluster.Limits
	Visual           bool // load page images for header/footer, histogram and structure signals

	// Batches with at least this many pages evaluate page pairs in parallel.
	ParallelClusterPages int
}

// DefaultOptions mirrors common.DefaultConfig.
func DefaultOptions() Options {
	return Options{
		Workers:              4,
		QueueSize:            256,
		ClusterThreshold:     5,
		Weights:              cluster.DefaultWeights(),
		Limits:               cluster.DefaultLimits(),
		ParallelClusterPages: 64,
	}
}

// OptionsFromConfig maps the application configuration.
func OptionsFromConfig(cfg *common.Config) Options {
	o := DefaultOptions()
	o.Workers = cfg.Pipeline.Workers
	o.QueueSize = cfg.Pipeline.QueueSize
	o.TaskTimeout = cfg.Pipeline.TaskTimeout
	o.ClusterThreshold = cfg.Clustering.Threshold
	w := cfg.Clustering.Weights
	o.Weights = cluster.Weights{
		Identity: w.Identity, Codes: w.Codes, Header: w.Header,
		Footer: w.Footer, Histogram: w.Histogram, Structure: w.Structure,
	}
	o.Limits = cluster.Limits{
		HashDistance: cfg.Clustering.HashDistance,
		Histogram:    cfg.Clustering.HistogramCorrelation,
		SSIM:         cfg.Clustering.SSIM,
	}
	o.Visual = cfg.Clustering.Visual
	return o
}

// Driver owns everything a run reads: the catalog, the pattern library and the matcher.
// All of it is shared read-only between workers, so one Driver serves concurrent runs.
type Driver struct {
	catalog   *catalog.Catalog
	extractor *extract.Extractor
	matcher   *match.Matcher
	source    *ocr.Extractor // nil when pages are supplied by the caller
	opts      Options
	logger    *slog.Logger
}

// New wires a Driver. source may be nil when only Run is used.
func New(cat *catalog.Catalog, ex *extract.Extractor, m *match.Matcher, source *ocr.Extractor, opts Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if ex == nil {
		ex = extract.New(nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Driver{catalog: cat, extractor: ex, matcher: m, source: source, opts: opts, logger: logger}
}

// NewFromConfig loads the catalog and builds the matcher and page source from cfg.
// A catalog that cannot be loaded is fatal.
func NewFromConfig(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ex := extract.New(nil)

	cc := cfg.Catalog
	src := catalog.Source{
		Format: cc.Format,
		Path:   cc.Path,
		Sheet:  cc.Sheet,
		Table:  cc.Table,
		DB: repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		},
	}
	schema := catalog.Schema{
		IdentifierField: cc.IdentifierField,
		KeyField:        cc.KeyField,
		YearField:       cc.YearField,
		DateField:       cc.DateField,
		StreetField:     cc.StreetField,
		CountryField:    cc.CountryField,
	}
	cat, err := catalog.Open(ctx, src, schema, ex, logger)
	if err != nil {
		return nil, err
	}

	m, err := match.New(match.FromConfig(cfg.Matching), logger)
	if err != nil {
		return nil, err
	}
	source := ocr.NewExtractor(ocr.FromConfig(cfg.OCR, cfg.Clustering.RenderDPI), nil, logger)
	return New(cat, ex, m, source, OptionsFromConfig(cfg), logger), nil
}

// Catalog returns the reference catalog the driver matches against.
func (d *Driver) Catalog() *catalog.Catalog {
	return d.catalog
}

// WithMinScore returns a Driver sharing everything but the matcher's minimum score.
func (d *Driver) WithMinScore(minScore float64) (*Driver, error) {
	cfg := d.matcher.Config()
	cfg.MinScore = minScore
	m, err := match.New(cfg, d.logger)
	if err != nil {
		return nil, err
	}
	cp := *d
	cp.matcher = m
	return &cp, nil
}

// RunFile reads the pages of path (a PDF, image, image directory, .txt or .json page dump)
// and runs them. With visual signals enabled PDF pages are rendered to a temporary directory.
func (d *Driver) RunFile(ctx context.Context, path string) (*entity.BatchResult, error) {
	if d.source == nil {
		return nil, fmt.Errorf("%w: driver has no page source", common.ErrInvalidInput)
	}
	pages, err := d.source.Pages(ctx, path)
	if err != nil {
		return nil, common.WrapError(err, "read pages")
	}

	if d.opts.Visual && constants.MapExtToFormat(filepath.Ext(path)) == constants.PDF {
		dir, err := os.MkdirTemp("", "docmatch-render-*")
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.RemoveAll(dir) }()
		images, err := d.source.Render(ctx, path, dir)
		if err != nil {
			// visual signals are optional; text signals still cluster the batch
			d.logger.Warn("pipeline.render.failed", "path", path, "error", err)
		} else {
			ocr.AttachImages(pages, images)
		}
	}

	res, err := d.Run(ctx, pages)
	if err != nil {
		return nil, err
	}
	res.Source = path
	return res, nil
}

// pageState is what one worker produced for one page.
type pageState struct {
	result  entity.PageResult
	signals cluster.Signals
	record  *catalog.Record
}

// Run resolves every page, clusters the batch and assembles the result. Pages are
// processed in index order whatever order they arrive in. Per-page failures are
// reported as FAILED pages; only invalid input or a cancelled ctx fail the run.
func (d *Driver) Run(ctx context.Context, pages []entity.RawPage) (*entity.BatchResult, error) {
	start := time.Now()
	ordered, err := orderPages(pages)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = common.WithRunID(ctx, runID)
	logger := d.logger.With("run_id", runID)
	logger.Info("pipeline.run.start", "pages", len(ordered), "records", d.catalog.Len())

	states := make([]pageState, len(ordered))
	handle := func(ctx context.Context, job async.Job) error {
		st, err := d.processPage(ctx, ordered[job.Position], logger)
		if err != nil {
			return err
		}
		states[job.Position] = st
		return nil
	}
	q := async.NewWorkerQueue(ctx, handle, logger,
		async.WithWorkers(d.opts.Workers),
		async.WithQueueSize(d.opts.QueueSize),
		async.WithTaskTimeout(d.opts.TaskTimeout),
		async.WithErrorHandler(func(job async.Job, err error) {
			states[job.Position] = failedPage(job.Page, err)
		}),
	)
	for pos, p := range ordered {
		if err := q.Enqueue(ctx, async.Job{RunID: runID, Position: pos, Page: p.Index}); err != nil {
			break
		}
	}
	// workers observe ctx themselves; waiting here keeps states free of late writers
	q.Shutdown(context.Background())
	if err := ctx.Err(); err != nil {
		logger.Warn("pipeline.run.cancelled", "error", err)
		return nil, err
	}

	res := &entity.BatchResult{
		RunID:     runID,
		StartedAt: start.UTC(),
		Pages:     make([]entity.PageResult, len(states)),
	}
	sigs := make([]cluster.Signals, len(states))
	identities := make([]string, len(states))
	for i, st := range states {
		res.Pages[i] = st.result
		sigs[i] = st.signals
		identities[i] = st.result.IdentityKey
	}

	groups, err := d.cluster(ctx, ordered, sigs)
	if err != nil {
		return nil, err
	}
	res.Documents = d.documents(groups, res.Pages)
	res.Starts = documentStarts(identities, states)
	res.Summary = summarize(res.Pages)
	res.ElapsedMS = time.Since(start).Milliseconds()

	logger.Info("pipeline.run.ok",
		"pages", res.Summary.Pages,
		"matched", res.Summary.Matched,
		"unresolved", res.Summary.Unresolved,
		"failed", res.Summary.Failed,
		"documents", len(res.Documents),
		"elapsed_ms", res.ElapsedMS,
	)
	return res, nil
}

func (d *Driver) processPage(ctx context.Context, raw entity.RawPage, logger *slog.Logger) (pageState, error) {
	page := match.NewPage(raw.Index, raw.Text, d.extractor)
	res := d.matcher.Match(page, d.catalog.Records)
	if err := ctx.Err(); err != nil {
		return pageState{}, err
	}

	st := pageState{
		result:  pageResult(raw.Index, res),
		signals: cluster.Signals{Codes: page.Features.Identifiers.Sorted()},
		record:  res.Record,
	}
	if res.Resolved() {
		st.signals.Identity = res.Record.IdentityKey
		logger.Debug("pipeline.match.ok", "page", raw.Index, "identity_key", res.Record.IdentityKey, "score", res.Score)
	} else {
		logger.Debug("pipeline.match.unresolved", "page", raw.Index, "best_score", res.Score)
	}

	if d.opts.Visual && raw.ImagePath != "" {
		fp, err := visual.LoadFingerprint(raw.ImagePath)
		if err != nil {
			logger.Warn("pipeline.visual.failed", "page", raw.Index, "path", raw.ImagePath, "error", err)
		} else {
			st.signals.Visual = fp
		}
	}
	return st, nil
}

func (d *Driver) cluster(ctx context.Context, pages []entity.RawPage, sigs []cluster.Signals) ([]cluster.Group, error) {
	start := time.Now()
	indices := make([]int, len(pages))
	for i, p := range pages {
		indices[i] = p.Index
	}
	sim := cluster.Composite(sigs, d.opts.Weights, d.opts.Limits)

	var (
		groups []cluster.Group
		err    error
	)
	if d.opts.ParallelClusterPages > 0 && len(indices) >= d.opts.ParallelClusterPages {
		groups, err = cluster.ClusterParallel(ctx, indices, sim, d.opts.ClusterThreshold, d.opts.Workers)
	} else {
		groups = cluster.Cluster(indices, sim, d.opts.ClusterThreshold)
	}
	if err != nil {
		return nil, err
	}
	d.logger.Debug("cluster.done", "pages", len(indices), "groups", len(groups),
		"elapsed_ms", time.Since(start).Milliseconds())
	return groups, nil
}

// orderPages validates indices and returns a copy sorted by index.
func orderPages(pages []entity.RawPage) ([]entity.RawPage, error) {
	out := make([]entity.RawPage, len(pages))
	copy(out, pages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	for i, p := range out {
		if p.Index < 1 {
			return nil, common.NewAppError("INVALID_PAGE", fmt.Sprintf("page index %d is not 1-based", p.Index), common.ErrInvalidInput)
		}
		if i > 0 && out[i-1].Index == p.Index {
			return nil, common.NewAppError("INVALID_PAGE", fmt.Sprintf("page index %d appears twice", p.Index), common.ErrInvalidInput)
		}
	}
	return out, nil
}
