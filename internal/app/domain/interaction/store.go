package interaction

import (
	"context"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/domain/llm"
	"github.com/dinefind/dinefind/internal/app/models"
)

// maxInflight bounds concurrent async inserts so a slow database cannot pile
// up goroutines behind the request path.
const maxInflight = 64

const insertTimeout = 3 * time.Second

// DB is the write surface the store needs. Satisfied by pgxpool.Pool and by
// pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SearchRecord is the audit row written for one completed search request.
type SearchRecord struct {
	RequestID     uuid.UUID
	UserID        string
	SessionID     string
	Query         string
	Route         string
	Outcome       string
	FailureReason models.FailureReason
	ResultCount   int
	TotalMs       int64
}

// Store persists model-call and search audit records off the request path.
// A nil database disables it; every method is then a no-op.
type Store struct {
	db      DB
	logger  *zap.Logger
	builder sq.StatementBuilderType

	wg  sync.WaitGroup
	sem chan struct{}
}

var _ llm.Recorder = (*Store)(nil)

func NewStore(db DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		sem:     make(chan struct{}, maxInflight),
	}
}

// RecordAsync writes one model interaction without blocking the caller.
// Callers pass a detached context so request cancellation cannot drop rows.
func (s *Store) RecordAsync(ctx context.Context, rec llm.InteractionRecord) {
	s.async(ctx, "llm_interaction", func(ctx context.Context) error {
		query, args, err := s.builder.
			Insert("llm_interactions").
			Columns("stage", "model", "prompt_version", "prompt_hash", "schema_hash",
				"latency_ms", "status", "error_kind").
			Values(rec.Stage, rec.Model, rec.PromptVersion, rec.PromptHash, rec.SchemaHash,
				rec.LatencyMs, rec.Status, rec.ErrorKind).
			ToSql()
		if err != nil {
			return err
		}
		_, err = s.db.Exec(ctx, query, args...)
		return err
	})
}

// RecordSearchAsync writes one search audit row without blocking the caller.
func (s *Store) RecordSearchAsync(ctx context.Context, rec SearchRecord) {
	s.async(ctx, "search_interaction", func(ctx context.Context) error {
		query, args, err := s.builder.
			Insert("search_interactions").
			Columns("request_id", "user_id", "session_id", "query", "route",
				"outcome", "failure_reason", "result_count", "total_ms").
			Values(rec.RequestID, rec.UserID, rec.SessionID, rec.Query, rec.Route,
				rec.Outcome, string(rec.FailureReason), rec.ResultCount, rec.TotalMs).
			ToSql()
		if err != nil {
			return err
		}
		_, err = s.db.Exec(ctx, query, args...)
		return err
	})
}

func (s *Store) async(ctx context.Context, kind string, insert func(context.Context) error) {
	if s == nil || s.db == nil {
		return
	}
	select {
	case s.sem <- struct{}{}:
	default:
		s.logger.Warn("Interaction insert dropped, too many inflight", zap.String("kind", kind))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
		defer cancel()
		if err := insert(ctx); err != nil {
			s.logger.Warn("Interaction insert failed",
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
	}()
}

// Flush blocks until every inflight insert has finished. Used on shutdown
// and in tests.
func (s *Store) Flush() {
	if s == nil {
		return
	}
	s.wg.Wait()
}
