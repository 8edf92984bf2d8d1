package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	apperrors "github.com/Adithya-Monish-Kumar-K/article-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/postgres"
)

// PostgresProvider reads the corpus from the articles and categories tables
// owned by the content management service:
//
//	articles(id, title, summary, content, slug, publisher_name, category_id,
//	         published_at, views, status)
//	categories(id, name)
//
// Every column except id and status may be NULL. A row that still fails to
// scan is logged and skipped.
type PostgresProvider struct {
	db     *postgres.Client
	psql   sq.StatementBuilderType
	logger *slog.Logger
}

var (
	_ Provider       = (*PostgresProvider)(nil)
	_ SnapshotReader = (*PostgresProvider)(nil)
)

func NewPostgresProvider(db *postgres.Client) *PostgresProvider {
	return &PostgresProvider{
		db:     db,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: slog.Default().With("component", "corpus-postgres"),
	}
}

func (p *PostgresProvider) articlesQuery() (string, []any, error) {
	return p.psql.
		Select(
			"id::text", "COALESCE(title, '')", "COALESCE(summary, '')", "COALESCE(content, '')", "COALESCE(slug, '')",
			"publisher_name", "COALESCE(category_id::text, '')", "published_at", "COALESCE(views, 0)", "status",
		).
		From("articles").
		Where(sq.Eq{"status": string(StatusPublished)}).
		OrderBy("published_at DESC NULLS LAST", "id").
		ToSql()
}

func (p *PostgresProvider) categoriesQuery() (string, []any, error) {
	return p.psql.Select("id::text", "COALESCE(name, '')").From("categories").OrderBy("id").ToSql()
}

func (p *PostgresProvider) PublishedArticles(ctx context.Context) ([]Article, error) {
	snap, err := p.read(ctx, false)
	return snap.Articles, err
}

func (p *PostgresProvider) Categories(ctx context.Context) ([]Category, error) {
	snap, err := p.read(ctx, true)
	return snap.Categories, err
}

// Snapshot loads articles and categories inside one read-only transaction so
// category names always match the articles they label.
func (p *PostgresProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	return p.read(ctx, true)
}

func (p *PostgresProvider) read(ctx context.Context, withCategories bool) (Snapshot, error) {
	var snap Snapshot
	err := p.db.InReadOnlyTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.Articles, err = p.loadArticles(ctx, tx); err != nil {
			return err
		}
		if withCategories {
			snap.Categories, err = p.loadCategories(ctx, tx)
		}
		return err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", apperrors.ErrCorpusUnavailable, err)
	}
	p.logger.Debug("corpus loaded", "articles", len(snap.Articles), "categories", len(snap.Categories))
	return snap, nil
}

func (p *PostgresProvider) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// rowScanner is the part of *sql.Rows the row decoders need.
type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresProvider) loadArticles(ctx context.Context, tx *sql.Tx) ([]Article, error) {
	query, args, err := p.articlesQuery()
	if err != nil {
		return nil, fmt.Errorf("building articles query: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	articles := make([]Article, 0)
	skipped := 0
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			skipped++
			p.logger.Warn("skipping unreadable article row", "article_id", a.ID, "error", err)
			continue
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	if skipped > 0 {
		p.logger.Warn("articles skipped", "count", skipped)
	}
	return articles, nil
}

// scanArticle decodes one row of articlesQuery. A NULL published_at leaves
// PublishedAt zero, which earns no recency bonus. On error the returned
// Article carries whatever id was read, for logging.
func scanArticle(row rowScanner) (Article, error) {
	var (
		a         Article
		id        sql.NullString
		publisher sql.NullString
		published sql.NullTime
		status    sql.NullString
	)
	if err := row.Scan(
		&id, &a.Title, &a.Summary, &a.Content, &a.Slug,
		&publisher, &a.CategoryID, &published, &a.Views, &status,
	); err != nil {
		return Article{ID: id.String}, fmt.Errorf("scanning article: %w", err)
	}
	a.ID = id.String
	a.Publisher = publisher.String
	if published.Valid {
		a.PublishedAt = published.Time
	}
	a.Status = Status(status.String)
	return a, nil
}

func (p *PostgresProvider) loadCategories(ctx context.Context, tx *sql.Tx) ([]Category, error) {
	query, args, err := p.categoriesQuery()
	if err != nil {
		return nil, fmt.Errorf("building categories query: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			p.logger.Warn("skipping unreadable category row", "error", err)
			continue
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}
	return categories, nil
}
