package history

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/sqlc-dev/pqtype"
)

//go:embed schema.sql
var schema string

const (
	table            = "draw_results"
	colDrawNumber    = "draw_number"
	colWinningNumber = "winning_number"
	colColor         = "color"
	colTransactionID = "transaction_id"
	colOrigin        = "origin"
	colCompletedAt   = "completed_at"
	colMetadata      = "metadata"
)

// Repository stores completed draws.
type Repository interface {
	Record(ctx context.Context, result models.DrawResult, metadata json.RawMessage) error
	Recent(ctx context.Context, limit int) ([]models.DrawResult, error)
}

type PostgresRepository struct {
	dbc *pgxpool.Pool
}

func NewPostgresRepository(dbc *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{dbc: dbc}
}

// EnsureSchema creates the draw_results table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.dbc.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create draw history schema: %w", err)
	}
	return nil
}

// Record inserts result. A draw already recorded by another terminal is
// left as is.
func (r *PostgresRepository) Record(ctx context.Context, result models.DrawResult, metadata json.RawMessage) error {
	sqlStr, args, err := insertQuery(result, metadata)
	if err != nil {
		return fmt.Errorf("failed to build draw insert: %w", err)
	}
	if _, err := r.dbc.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to record draw %d: %w", result.DrawNumber, err)
	}
	return nil
}

// Recent returns the latest draws, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]models.DrawResult, error) {
	sqlStr, args, err := recentQuery(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build draw query: %w", err)
	}

	rows, err := r.dbc.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query draw history: %w", err)
	}
	defer rows.Close()

	var out []models.DrawResult
	for rows.Next() {
		var (
			res   models.DrawResult
			color string
		)
		if err := rows.Scan(&res.DrawNumber, &res.WinningNumber, &color, &res.TransactionID, &res.Origin, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draw result: %w", err)
		}
		res.Color = models.Color(color)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read draw history: %w", err)
	}
	return out, nil
}

func insertQuery(result models.DrawResult, metadata json.RawMessage) (string, []any, error) {
	meta := pqtype.NullRawMessage{RawMessage: metadata, Valid: len(metadata) > 0}
	return sq.Insert(table).
		Columns(colDrawNumber, colWinningNumber, colColor, colTransactionID, colOrigin, colCompletedAt, colMetadata).
		Values(result.DrawNumber, result.WinningNumber, string(result.Color), result.TransactionID, result.Origin, result.CompletedAt, meta).
		Suffix("ON CONFLICT (" + colDrawNumber + ") DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

func recentQuery(limit int) (string, []any, error) {
	return sq.Select(colDrawNumber, colWinningNumber, colColor, colTransactionID, colOrigin, colCompletedAt).
		From(table).
		OrderBy(colDrawNumber + " DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// MemoryRepository keeps the most recent draws in memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	capacity int
	results  map[int]models.DrawResult
}

func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryRepository{capacity: capacity, results: make(map[int]models.DrawResult)}
}

func (m *MemoryRepository) Record(_ context.Context, result models.DrawResult, _ json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[result.DrawNumber]; ok {
		return nil
	}
	m.results[result.DrawNumber] = result
	if len(m.results) > m.capacity {
		oldest := result.DrawNumber
		for n := range m.results {
			oldest = min(oldest, n)
		}
		delete(m.results, oldest)
	}
	return nil
}

func (m *MemoryRepository) Recent(_ context.Context, limit int) ([]models.DrawResult, error) {
	m.mu.RLock()
	out := make([]models.DrawResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DrawNumber > out[j].DrawNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// completedAt falls back to now for payloads that carry no completion time.
func completedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
