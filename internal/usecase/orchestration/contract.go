package orchestration

import (
	"context"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/catalog"
	"github.com/kailas-cloud/aivis/internal/domain/result"
	"github.com/kailas-cloud/aivis/internal/domain/score"
	"github.com/kailas-cloud/aivis/internal/usecase/scoring"
)

// DomainReader loads what is known about the target domain.
// Returns domain.ErrDomainNotFound when it does not exist.
type DomainReader interface {
	GetDomainContext(ctx context.Context, domainID int64) (domain.DomainContext, error)
}

// KeywordFinder resolves a keyword term. Returns domain.ErrNotFound when absent.
type KeywordFinder interface {
	FindKeyword(ctx context.Context, term string, scope catalog.Scope) (catalog.Keyword, error)
}

// PhraseStore returns the phrase under a keyword, creating it if needed.
type PhraseStore interface {
	FindOrCreatePhrase(ctx context.Context, text string, keywordID int64) (catalog.Phrase, error)
}

// ResultSaver stores one query result and returns its ID.
type ResultSaver interface {
	SaveResult(ctx context.Context, phraseID int64, r result.Result) (int64, error)
}

// Repository is the full persistence surface a run needs.
type Repository interface {
	DomainReader
	KeywordFinder
	PhraseStore
	ResultSaver
}

// Querier asks one model about a phrase under a deadline it enforces itself.
type Querier interface {
	Query(ctx context.Context, model domain.ModelName, phrase, domainContext string) (domain.QueryOutput, error)
	Models() []domain.ModelName
}

// Scorer grades a response; it always yields a full set.
type Scorer interface {
	Score(ctx context.Context, in scoring.Input) (score.Set, score.Source)
}
