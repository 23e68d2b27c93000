package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/catalog"
	"github.com/kailas-cloud/aivis/internal/domain/result"
)

// Repo stores domains, keywords, phrases and query results in an SQLite file.
type Repo struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" keeps it in memory.
func Open(ctx context.Context, path string) (*Repo, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &Repo{db: db}, nil
}

// Close releases the database handle.
func (r *Repo) Close() error { return r.db.Close() }

// Ping checks the database handle.
func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

const schema = `
CREATE TABLE IF NOT EXISTS domains (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL UNIQUE,
	context    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS keywords (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	domain_id  INTEGER NOT NULL REFERENCES domains(id) ON DELETE CASCADE,
	version_id INTEGER,
	term       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS keywords_domain_term_idx ON keywords (domain_id, term);
CREATE INDEX IF NOT EXISTS keywords_version_term_idx ON keywords (version_id, term);
CREATE TABLE IF NOT EXISTS phrases (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	keyword_id INTEGER NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (keyword_id, text)
);
CREATE TABLE IF NOT EXISTS ai_query_results (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	phrase_id       INTEGER NOT NULL REFERENCES phrases(id) ON DELETE CASCADE,
	model           TEXT NOT NULL,
	response        TEXT NOT NULL,
	latency_seconds REAL NOT NULL,
	cost            REAL NOT NULL DEFAULT 0,
	presence        INTEGER NOT NULL,
	relevance       INTEGER NOT NULL,
	accuracy        INTEGER NOT NULL,
	sentiment       INTEGER NOT NULL,
	overall         INTEGER NOT NULL,
	score_source    TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS ai_query_results_phrase_idx ON ai_query_results (phrase_id);
`

// Migrate creates the schema. It is idempotent.
func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// GetDomainContext loads a domain. A missing row is domain.ErrDomainNotFound.
func (r *Repo) GetDomainContext(ctx context.Context, domainID int64) (domain.DomainContext, error) {
	dc := domain.DomainContext{ID: domainID}
	err := r.db.QueryRowContext(ctx,
		"SELECT url, context FROM domains WHERE id = ?", domainID,
	).Scan(&dc.URL, &dc.Context)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DomainContext{}, domain.ErrDomainNotFound
	}
	if err != nil {
		return domain.DomainContext{}, fmt.Errorf("select domain %d: %w", domainID, err)
	}
	return dc, nil
}

// FindKeyword looks a keyword up by version when the scope has one, else by domain.
func (r *Repo) FindKeyword(ctx context.Context, term string, scope catalog.Scope) (catalog.Keyword, error) {
	column, arg := "domain_id", scope.DomainID
	if scope.ByVersion() {
		column, arg = "version_id", *scope.VersionID
	}

	var (
		kw      = catalog.Keyword{Term: term}
		version sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, domain_id, version_id FROM keywords WHERE "+column+" = ? AND term = ? ORDER BY id LIMIT 1",
		arg, term,
	).Scan(&kw.ID, &kw.DomainID, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Keyword{}, domain.ErrNotFound
	}
	if err != nil {
		return catalog.Keyword{}, fmt.Errorf("select keyword %q: %w", term, err)
	}
	if version.Valid {
		kw.VersionID = &version.Int64
	}
	return kw, nil
}

// FindOrCreatePhrase returns the phrase under keywordID, inserting it when absent.
func (r *Repo) FindOrCreatePhrase(ctx context.Context, text string, keywordID int64) (catalog.Phrase, error) {
	ph := catalog.Phrase{Text: text, KeywordID: keywordID}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO phrases (keyword_id, text) VALUES (?, ?)
		ON CONFLICT (keyword_id, text) DO UPDATE SET text = excluded.text
		RETURNING id`, keywordID, text,
	).Scan(&ph.ID)
	if err != nil {
		return catalog.Phrase{}, fmt.Errorf("upsert phrase: %w", err)
	}
	return ph, nil
}

// SaveResult inserts one query result and returns its ID.
func (r *Repo) SaveResult(ctx context.Context, phraseID int64, res result.Result) (int64, error) {
	out, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_query_results
			(phrase_id, model, response, latency_seconds, cost,
			 presence, relevance, accuracy, sentiment, overall, score_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		phraseID, string(res.Model), res.Response, res.LatencySeconds, res.Cost,
		res.Scores.Presence, res.Scores.Relevance, res.Scores.Accuracy,
		res.Scores.Sentiment, res.Scores.Overall, string(res.ScoreSource),
	)
	if err != nil {
		return 0, fmt.Errorf("insert result: %w", err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert result: %w", err)
	}
	return id, nil
}

// UpsertDomain creates or updates a domain by URL and returns its ID.
func (r *Repo) UpsertDomain(ctx context.Context, url, description string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO domains (url, context) VALUES (?, ?)
		ON CONFLICT (url) DO UPDATE SET context = excluded.context
		RETURNING id`, url, description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert domain: %w", err)
	}
	return id, nil
}

// CreateKeyword adds a keyword to a domain, optionally pinned to a version.
func (r *Repo) CreateKeyword(ctx context.Context, kw catalog.Keyword) (int64, error) {
	var version sql.NullInt64
	if kw.VersionID != nil {
		version = sql.NullInt64{Int64: *kw.VersionID, Valid: true}
	}
	out, err := r.db.ExecContext(ctx,
		"INSERT INTO keywords (domain_id, version_id, term) VALUES (?, ?, ?)",
		kw.DomainID, version, kw.Term,
	)
	if err != nil {
		return 0, fmt.Errorf("insert keyword %q: %w", kw.Term, err)
	}
	return out.LastInsertId()
}

// ResultCount returns how many results are stored for a phrase.
func (r *Repo) ResultCount(ctx context.Context, phraseID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ai_query_results WHERE phrase_id = ?", phraseID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}
