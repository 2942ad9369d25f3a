package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type SummaryRepository struct {
	db  *DB
	now func() time.Time
}

func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db, now: time.Now}
}

var _ SummaryRepositoryInterface = (*SummaryRepository)(nil)

func (r *SummaryRepository) InsertSummary(ctx context.Context, s *Summary) error {
	id := uuid.NewString()
	now := r.now().UTC().Truncate(time.Millisecond)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO summaries (
			id, all_select, all_content, all_source, all_category, name_crypto,
			summary, source, sentiment, trending_score, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, s.AllSelect, s.AllContent, s.AllSource, nullString(s.AllCategory), nullString(s.NameCrypto),
		s.Summary, s.Source, s.Sentiment, s.TrendingScore, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (r *SummaryRepository) ListSummaries(ctx context.Context, page Page) ([]Summary, int, error) {
	page = page.Normalize()

	total, err := count(ctx, r.db, sq.Select("COUNT(*)").From("summaries"))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count summaries: %w", err)
	}

	query, args, err := sq.Select(
		"id", "all_select", "all_content", "all_source", "all_category", "name_crypto",
		"summary", "source", "sentiment", "trending_score", "created_at", "updated_at",
	).From("summaries").
		OrderBy("created_at DESC", "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build summary query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var (
			s                    Summary
			category, crypto     sql.NullString
			createdAt, updatedAt string
		)
		err := rows.Scan(&s.ID, &s.AllSelect, &s.AllContent, &s.AllSource, &category, &crypto,
			&s.Summary, &s.Source, &s.Sentiment, &s.TrendingScore, &createdAt, &updatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan summary row: %w", err)
		}
		s.AllCategory = category.String
		s.NameCrypto = crypto.String
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, fmt.Errorf("invalid created_at: %w", err)
		}
		if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, 0, fmt.Errorf("invalid updated_at: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return summaries, total, nil
}
