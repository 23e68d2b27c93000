package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/catalog"
	"github.com/kailas-cloud/aivis/internal/domain/query"
	"github.com/kailas-cloud/aivis/internal/domain/result"
	"github.com/kailas-cloud/aivis/internal/domain/score"
	"github.com/kailas-cloud/aivis/internal/usecase/orchestration"
)

var _ orchestration.Repository = (*Repo)(nil)

func openRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func TestMigrate_Idempotent(t *testing.T) {
	r := openRepo(t)
	require.NoError(t, r.Migrate(context.Background()))
	require.NoError(t, r.Ping(context.Background()))
}

func TestGetDomainContext(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()

	id, err := r.UpsertDomain(ctx, "https://acme.io", "Running shoes")
	require.NoError(t, err)

	dc, err := r.GetDomainContext(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.io", dc.URL)
	assert.Equal(t, "Running shoes", dc.Context)

	again, err := r.UpsertDomain(ctx, "https://acme.io", "Trail shoes")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = r.GetDomainContext(ctx, id+100)
	assert.ErrorIs(t, err, domain.ErrDomainNotFound)
}

func TestFindKeyword_Scope(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()

	domainID, err := r.UpsertDomain(ctx, "https://acme.io", "")
	require.NoError(t, err)
	v := int64(3)
	plainID, err := r.CreateKeyword(ctx, catalog.Keyword{DomainID: domainID, Term: "shoes"})
	require.NoError(t, err)
	versionedID, err := r.CreateKeyword(ctx, catalog.Keyword{DomainID: domainID, VersionID: &v, Term: "boots"})
	require.NoError(t, err)

	kw, err := r.FindKeyword(ctx, "shoes", catalog.Scope{DomainID: domainID})
	require.NoError(t, err)
	assert.Equal(t, plainID, kw.ID)
	assert.Nil(t, kw.VersionID)

	kw, err = r.FindKeyword(ctx, "boots", catalog.Scope{DomainID: domainID, VersionID: &v})
	require.NoError(t, err)
	assert.Equal(t, versionedID, kw.ID)
	require.NotNil(t, kw.VersionID)
	assert.Equal(t, v, *kw.VersionID)

	// A version scope does not fall back to the domain.
	_, err = r.FindKeyword(ctx, "shoes", catalog.Scope{DomainID: domainID, VersionID: &v})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindOrCreatePhrase_ReusesRow(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()

	domainID, err := r.UpsertDomain(ctx, "https://acme.io", "")
	require.NoError(t, err)
	kwID, err := r.CreateKeyword(ctx, catalog.Keyword{DomainID: domainID, Term: "shoes"})
	require.NoError(t, err)

	first, err := r.FindOrCreatePhrase(ctx, "best shoes", kwID)
	require.NoError(t, err)
	second, err := r.FindOrCreatePhrase(ctx, "best shoes", kwID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := r.FindOrCreatePhrase(ctx, "cheap shoes", kwID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSaveResult(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()

	domainID, err := r.UpsertDomain(ctx, "https://acme.io", "")
	require.NoError(t, err)
	kwID, err := r.CreateKeyword(ctx, catalog.Keyword{DomainID: domainID, Term: "shoes"})
	require.NoError(t, err)
	ph, err := r.FindOrCreatePhrase(ctx, "best shoes", kwID)
	require.NoError(t, err)

	res := result.Result{
		Task: query.Task{
			Request: query.Request{Keyword: "shoes", Phrase: "best shoes", DomainID: domainID},
			Model:   domain.ModelGemini,
		},
		Response:    "Acme",
		Scores:      score.Set{Presence: 1, Relevance: 2, Accuracy: 3, Sentiment: 3, Overall: 2},
		ScoreSource: score.SourceFallback,
	}
	id1, err := r.SaveResult(ctx, ph.ID, res)
	require.NoError(t, err)
	id2, err := r.SaveResult(ctx, ph.ID, res)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	n, err := r.ResultCount(ctx, ph.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = r.SaveResult(ctx, ph.ID+999, res)
	assert.Error(t, err, "foreign keys are enforced")
}
