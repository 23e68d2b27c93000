package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/catalog"
	"github.com/kailas-cloud/aivis/internal/domain/result"
)

// Repo stores domains, keywords, phrases and query results in Postgres.
type Repo struct {
	pool Pool
}

// New creates a repository over pool.
func New(pool Pool) *Repo {
	return &Repo{pool: pool}
}

// Ping checks the database connection.
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetDomainContext loads a domain. A missing row is domain.ErrDomainNotFound.
func (r *Repo) GetDomainContext(ctx context.Context, domainID int64) (domain.DomainContext, error) {
	dc := domain.DomainContext{ID: domainID}
	err := r.pool.QueryRow(ctx,
		"SELECT url, context FROM domains WHERE id = $1", domainID,
	).Scan(&dc.URL, &dc.Context)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DomainContext{}, domain.ErrDomainNotFound
		}
		return domain.DomainContext{}, fmt.Errorf("select domain %d: %w", domainID, err)
	}
	return dc, nil
}

// FindKeyword looks a keyword up by version when the scope has one, else by domain.
func (r *Repo) FindKeyword(ctx context.Context, term string, scope catalog.Scope) (catalog.Keyword, error) {
	q := "SELECT id, domain_id FROM keywords WHERE domain_id = $1 AND term = $2 ORDER BY id LIMIT 1"
	arg := scope.DomainID
	if scope.ByVersion() {
		q = "SELECT id, domain_id FROM keywords WHERE version_id = $1 AND term = $2 ORDER BY id LIMIT 1"
		arg = *scope.VersionID
	}

	kw := catalog.Keyword{Term: term, VersionID: scope.VersionID}
	if err := r.pool.QueryRow(ctx, q, arg, term).Scan(&kw.ID, &kw.DomainID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Keyword{}, domain.ErrNotFound
		}
		return catalog.Keyword{}, fmt.Errorf("select keyword %q: %w", term, err)
	}
	return kw, nil
}

// FindOrCreatePhrase returns the phrase under keywordID, inserting it when absent.
func (r *Repo) FindOrCreatePhrase(ctx context.Context, text string, keywordID int64) (catalog.Phrase, error) {
	ph := catalog.Phrase{Text: text, KeywordID: keywordID}
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO phrases (keyword_id, text) VALUES ($1, $2)
		ON CONFLICT (keyword_id, text) DO UPDATE SET text = EXCLUDED.text
		RETURNING id`, keywordID, text,
	).Scan(&ph.ID)
	if err != nil {
		return catalog.Phrase{}, fmt.Errorf("upsert phrase: %w", err)
	}
	return ph, nil
}

// SaveResult inserts one query result and returns its ID.
func (r *Repo) SaveResult(ctx context.Context, phraseID int64, res result.Result) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ai_query_results
			(phrase_id, model, response, latency_seconds, cost,
			 presence, relevance, accuracy, sentiment, overall, score_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		phraseID, string(res.Model), res.Response, res.LatencySeconds, res.Cost,
		res.Scores.Presence, res.Scores.Relevance, res.Scores.Accuracy,
		res.Scores.Sentiment, res.Scores.Overall, string(res.ScoreSource),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert result: %w", err)
	}
	return id, nil
}

// UpsertDomain creates or updates a domain by URL and returns its ID.
func (r *Repo) UpsertDomain(ctx context.Context, url, description string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO domains (url, context) VALUES ($1, $2)
		ON CONFLICT (url) DO UPDATE SET context = EXCLUDED.context
		RETURNING id`, url, description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert domain: %w", err)
	}
	return id, nil
}

// CreateKeyword adds a keyword to a domain, optionally pinned to a version.
func (r *Repo) CreateKeyword(ctx context.Context, kw catalog.Keyword) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		"INSERT INTO keywords (domain_id, version_id, term) VALUES ($1, $2, $3) RETURNING id",
		kw.DomainID, kw.VersionID, kw.Term,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert keyword %q: %w", kw.Term, err)
	}
	return id, nil
}
