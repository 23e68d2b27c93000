package dedup

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/query"
)

func TestShouldProcess(t *testing.T) {
	tr := New()
	id := query.Task{Request: query.Request{Keyword: "k", Phrase: "p"}, Model: domain.ModelGemini}.Identity()

	if !tr.ShouldProcess(id) {
		t.Fatal("first sighting should be processed")
	}
	if !tr.ShouldProcess(id) {
		t.Fatal("ShouldProcess must not mark")
	}
	tr.MarkProcessed(id)
	if tr.ShouldProcess(id) {
		t.Error("marked identity should be skipped")
	}
}

func TestClaim_SameIdentityDifferentModel(t *testing.T) {
	tr := New()
	base := query.Request{Keyword: "k", Phrase: "p"}

	if !tr.Claim(query.Task{Request: base, Model: domain.ModelChatGPT}.Identity()) {
		t.Fatal("first claim should win")
	}
	if tr.Claim(query.Task{Request: base, Model: domain.ModelChatGPT}.Identity()) {
		t.Error("duplicate claim should lose")
	}
	if !tr.Claim(query.Task{Request: base, Model: domain.ModelClaude}.Identity()) {
		t.Error("a different model is a different identity")
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}
}

func TestClaim_Concurrent(t *testing.T) {
	tr := New()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Claim("p|chatgpt|k") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("wins = %d, want 1", wins.Load())
	}
}
