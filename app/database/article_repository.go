package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var articleColumns = []string{
	"id", "title", "url", "content", "description", "source", "pub_date",
	"category", "name_category", "creator", "created_at", "updated_at",
}

var articleSortColumns = map[string]string{
	"created_at": "created_at",
	"pub_date":   "pub_date",
	"title":      "title",
	"source":     "source",
}

// ArticleRepository handles database operations for ingested articles
type ArticleRepository struct {
	db  *DB
	now func() time.Time
}

func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db, now: time.Now}
}

var _ ArticleRepositoryInterface = (*ArticleRepository)(nil)

// InsertArticle stores a new article. It reports false without error when an
// article with the same URL already exists.
func (r *ArticleRepository) InsertArticle(ctx context.Context, a NewArticle) (bool, error) {
	now := formatTime(r.now())

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO articles (
			id, title, url, content, description, source, pub_date,
			category, name_category, creator, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING
	`, uuid.NewString(), a.Title, a.URL, a.Content, a.Description, a.Source, nullTime(a.PubDate),
		nullString(a.Category), nullString(a.NameCategory), nullString(a.Creator), now, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *ArticleRepository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM articles WHERE url = ? LIMIT 1", url).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article url: %w", err)
	}
	return true, nil
}

func (r *ArticleRepository) GetArticle(ctx context.Context, id string) (*Article, error) {
	query, args, err := sq.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// ListArticles returns one page of articles matching the filter and the
// total number of matches.
func (r *ArticleRepository) ListArticles(ctx context.Context, f ArticleFilter) ([]Article, int, error) {
	page := f.Page.Normalize()

	total, err := count(ctx, r.db, applyArticleFilter(sq.Select("COUNT(*)").From("articles"), f))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	sortBy, ok := articleSortColumns[f.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}

	query, args, err := applyArticleFilter(sq.Select(articleColumns...).From("articles"), f).
		OrderBy(sortBy+" "+order, "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build article query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, total, nil
}

// ListTags returns every distinct ticker tag, sorted.
func (r *ArticleRepository) ListTags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT name_category FROM articles
		WHERE name_category IS NOT NULL AND name_category != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	tags := []string{}
	for rows.Next() {
		var joined string
		if err := rows.Scan(&joined); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		for _, tag := range strings.Split(joined, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" && !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}

	sort.Strings(tags)
	return tags, nil
}

func (r *ArticleRepository) GetArticleCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return n, nil
}

func applyArticleFilter(b sq.SelectBuilder, f ArticleFilter) sq.SelectBuilder {
	if f.Source != "" {
		b = b.Where(sq.Eq{"source": f.Source})
	}
	b = applyTagFilter(b, "name_category", f.Tag)
	if f.From != nil {
		b = b.Where(sq.GtOrEq{"pub_date": formatTime(*f.From)})
	}
	if f.To != nil {
		b = b.Where(sq.LtOrEq{"pub_date": formatTime(*f.To)})
	}
	return b
}

// applyTagFilter matches whole tags inside a comma-joined column.
func applyTagFilter(b sq.SelectBuilder, column, tag string) sq.SelectBuilder {
	switch {
	case tag == "":
		return b
	case strings.EqualFold(tag, TagUntagged):
		return b.Where(sq.Or{sq.Eq{column: nil}, sq.Eq{column: ""}})
	default:
		return b.Where(sq.Expr("(',' || "+column+" || ',') LIKE ?", "%,"+tag+",%"))
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a                              Article
		pubDate                        sql.NullString
		category, nameCategory, author sql.NullString
		createdAt, updatedAt           string
	)

	err := row.Scan(&a.ID, &a.Title, &a.URL, &a.Content, &a.Description, &a.Source, &pubDate,
		&category, &nameCategory, &author, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if a.PubDate, err = parseNullTime(pubDate); err != nil {
		return nil, fmt.Errorf("invalid pub_date: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}
	a.Category = category.String
	a.NameCategory = nameCategory.String
	a.Creator = author.String

	return &a, nil
}

func count(ctx context.Context, db *DB, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
