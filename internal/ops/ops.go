// Package ops implements the operations shared by the CLI, MCP and web
// surfaces. Each operation takes an Env and a typed input and returns a
// typed output or a *errors.ReqError.
package ops

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/ai"
	"github.com/hpungsan/reqlens/internal/allocate"
	"github.com/hpungsan/reqlens/internal/cache"
	"github.com/hpungsan/reqlens/internal/config"
	"github.com/hpungsan/reqlens/internal/db"
	"github.com/hpungsan/reqlens/internal/document"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/extract"
	"github.com/hpungsan/reqlens/internal/metrics"
	"github.com/hpungsan/reqlens/internal/parser"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// Env holds the long-lived dependencies of every operation.
type Env struct {
	DB        *sql.DB
	Config    *config.Config
	Extractor *extract.Extractor
	AI        *ai.Client
	Engine    *allocate.Engine
	Logger    *zap.Logger
}

// NewEnv wires the extraction pipeline, AI client and allocation engine
// from cfg. A nil logger or metrics disables them.
func NewEnv(database *sql.DB, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Env, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := ai.NewClient(ai.Options{
		Provider:          cfg.AI.Provider,
		Model:             cfg.AI.Model,
		BaseURL:           cfg.AI.BaseURL,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
		Logger:            logger,
		Metrics:           m,
	})
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	seg := requirement.NewSegmenter()
	if cfg.Tuning.ParagraphFlushChars > 0 {
		seg.FlushChars = cfg.Tuning.ParagraphFlushChars
	}
	engine := allocate.NewEngine()
	if cfg.Tuning.OverlapHigh > 0 {
		engine.OverlapHigh = cfg.Tuning.OverlapHigh
	}
	if cfg.Tuning.OverlapMedium > 0 {
		engine.OverlapMedium = cfg.Tuning.OverlapMedium
	}

	return &Env{
		DB:     database,
		Config: cfg,
		Extractor: extract.New(extract.Options{
			Parser:    parser.NewCommand(cfg.ParserCommand, logger),
			Store:     db.NewCacheStore(database),
			Segmenter: seg,
			Persisted: func(ctx context.Context) ([]string, error) {
				return db.PersistedTexts(ctx, database)
			},
			Logger:  logger,
			Metrics: m,
		}),
		AI:     client,
		Engine: engine,
		Logger: logger,
	}, nil
}

// workingSet loads the document at path together with its current
// candidates: the cached list when the document is unchanged, a fresh
// extraction otherwise.
func workingSet(ctx context.Context, env *Env, path string) (*document.Document, *extract.Result, error) {
	doc, err := document.Load(path)
	if err != nil {
		return nil, nil, err
	}
	res, err := env.Extractor.Extract(ctx, doc, false)
	if err != nil {
		return nil, nil, err
	}
	if res.Discarded {
		return nil, nil, errors.NewConflict("a newer extraction of " + doc.Name + " is running; retry")
	}
	return doc, res, nil
}

// save writes the mutated candidate list back under the same signature.
func save(ctx context.Context, env *Env, res *extract.Result) error {
	return cache.Put(ctx, env.Extractor.Store(), res.DocumentID, res.Signature, res.Candidates,
		res.ParserMode, res.ParserError, res.ExternalAvailable)
}

// findCandidate returns the index of id in cands or a NOT_FOUND error.
func findCandidate(cands []requirement.Candidate, id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1, errors.NewInvalidRequest("candidate id is required")
	}
	idx := requirement.FindCandidate(cands, id)
	if idx < 0 {
		return -1, errors.NewNotFound("candidate", id)
	}
	return idx, nil
}

// loadSubsystems reads the catalog named by override, falling back to the
// configured subsystems file. It returns the path it read.
func loadSubsystems(env *Env, override string) ([]allocate.Subsystem, string, error) {
	path := strings.TrimSpace(override)
	if path == "" {
		path = env.Config.SubsystemsFile
	}
	subs, err := allocate.LoadCatalog(path)
	if err != nil {
		return nil, path, errors.NewInvalidRequest(err.Error())
	}
	return subs, path, nil
}
