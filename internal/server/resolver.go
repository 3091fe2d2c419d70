package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/entity"
	"github.com/joseph-ayodele/docmatch/internal/pipeline"
	"github.com/joseph-ayodele/docmatch/internal/repository"
)

// ResolverService implements ResolverServer on top of a pipeline Driver. Runs are
// stored when a run repository is configured.
type ResolverService struct {
	driver *pipeline.Driver
	runs   repository.RunRepository
	logger *slog.Logger
}

func NewResolverService(driver *pipeline.Driver, runs repository.RunRepository, logger *slog.Logger) *ResolverService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolverService{driver: driver, runs: runs, logger: logger}
}

type resolveRequest struct {
	Pages    []entity.RawPage `json:"pages"`
	Path     string           `json:"path"`
	MinScore *float64         `json:"min_score"`
}

// Resolve runs the pages carried in the request: {pages: [{index, text}], min_score?}.
func (s *ResolverService) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, logger := s.scope(ctx)
	in, err := decode(req)
	if err != nil {
		logger.Error("resolve request unreadable", "error", err)
		return nil, common.InvalidArgumentErrorf("request: %v", err)
	}
	if len(in.Pages) == 0 {
		logger.Error("resolve request has no pages")
		return nil, common.InvalidArgumentError("pages are required")
	}
	d, err := s.driverFor(in.MinScore)
	if err != nil {
		return nil, common.ToStatus(err)
	}

	logger.Info("starting resolve", "pages", len(in.Pages))
	res, err := d.Run(ctx, in.Pages)
	if err != nil {
		logger.Error("resolve failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return s.finish(ctx, logger, res)
}

// ResolveFile runs a batch file readable by the daemon: {path, min_score?}.
func (s *ResolverService) ResolveFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, logger := s.scope(ctx)
	in, err := decode(req)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("request: %v", err)
	}
	path := strings.TrimSpace(in.Path)
	if path == "" {
		logger.Error("resolve file request missing path")
		return nil, common.InvalidArgumentError("path is required")
	}
	d, err := s.driverFor(in.MinScore)
	if err != nil {
		return nil, common.ToStatus(err)
	}

	logger.Info("starting file resolve", "path", path)
	res, err := d.RunFile(ctx, path)
	if err != nil {
		logger.Error("file resolve failed", "path", path, "error", err)
		if errors.Is(err, common.ErrUnsupportedFormat) {
			return nil, common.InvalidArgumentError(err.Error())
		}
		return nil, common.ToStatus(err)
	}
	return s.finish(ctx, logger, res)
}

// ListRuns returns the stored run summaries: {runs: [...]}.
func (s *ResolverService) ListRuns(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, common.FailedPreconditionError("run store is not configured")
	}
	runs, err := s.runs.ListRuns(ctx)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		return nil, common.ToStatus(err)
	}
	out := make([]any, 0, len(runs))
	for _, r := range runs {
		out = append(out, map[string]any{
			"run_id":     r.ID,
			"source":     r.Source,
			"started_at": r.StartedAt.UTC().Format(time.RFC3339),
			"pages":      r.Summary.Pages,
			"matched":    r.Summary.Matched,
			"unresolved": r.Summary.Unresolved,
			"failed":     r.Summary.Failed,
			"match_rate": r.Summary.MatchRate,
		})
	}
	resp, err := structpb.NewStruct(map[string]any{"runs": out})
	if err != nil {
		return nil, common.InternalErrorf("encode runs: %v", err)
	}
	return resp, nil
}

func (s *ResolverService) scope(ctx context.Context) (context.Context, *slog.Logger) {
	id := uuid.NewString()
	logger := s.logger.With("request_id", id)
	ctx = common.WithRequestID(ctx, id)
	return common.WithLogger(ctx, logger), logger
}

func (s *ResolverService) driverFor(minScore *float64) (*pipeline.Driver, error) {
	if minScore == nil {
		return s.driver, nil
	}
	return s.driver.WithMinScore(*minScore)
}

// finish stores the run, if configured, and encodes it.
func (s *ResolverService) finish(ctx context.Context, logger *slog.Logger, res *entity.BatchResult) (*structpb.Struct, error) {
	if err := s.store(ctx, res); err != nil {
		// the batch result is still useful to the caller
		logger.Warn("run not stored", "run_id", res.RunID, "error", err)
	}
	out, err := encode(res)
	if err != nil {
		return nil, common.InternalErrorf("encode result: %v", err)
	}
	logger.Info("resolve completed", "run_id", res.RunID, "matched", res.Summary.Matched, "pages", res.Summary.Pages)
	return out, nil
}

func (s *ResolverService) store(ctx context.Context, res *entity.BatchResult) error {
	if s.runs == nil {
		return nil
	}
	return s.runs.SaveRun(ctx, res)
}

func decode(req *structpb.Struct) (resolveRequest, error) {
	var in resolveRequest
	if req == nil {
		return in, nil
	}
	b, err := json.Marshal(req.AsMap())
	if err != nil {
		return in, err
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return in, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return in, nil
}

func encode(res *entity.BatchResult) (*structpb.Struct, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
