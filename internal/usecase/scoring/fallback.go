package scoring

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/kailas-cloud/aivis/internal/domain/score"
)

// Heuristic thresholds. Lengths are counted in characters.
const (
	minTokenLen        = 3
	substantialLen     = 150
	professionalMinLen = 80
	professionalMarker = "error"
)

// Fallback grades a response without a model. It is a pure function of its
// inputs; host may be empty when no domain is known.
//
// A short on-topic answer gets the same overall grade as a long off-topic one.
// That is intended.
func Fallback(phrase, response, host string) score.Set {
	fold := cases.Fold()
	resp := fold.String(response)
	respLen := utf8.RuneCountInString(response)

	hasQueryTerms := containsAnyToken(resp, strings.Fields(phrase), fold)
	hasSubstantialContent := respLen > substantialLen
	hasProfessionalTone := !strings.Contains(resp, professionalMarker) && respLen > professionalMinLen

	domainPresence := host != "" && containsAnyToken(resp, strings.Split(host, "."), fold)

	s := score.Set{Relevance: 1, Accuracy: 2, Sentiment: 2, Overall: 2}
	if domainPresence || hasQueryTerms {
		s.Presence = 1
	}
	if hasQueryTerms {
		s.Relevance = 2
		if hasSubstantialContent {
			s.Relevance = 3
		}
	}
	if hasProfessionalTone {
		s.Accuracy = 3
		s.Sentiment = 3
	}
	if hasQueryTerms && hasSubstantialContent {
		s.Overall = 3
	}
	return s
}

// containsAnyToken reports whether any token of at least minTokenLen characters
// occurs in folded, which must already be case-folded.
func containsAnyToken(folded string, tokens []string, fold cases.Caser) bool {
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minTokenLen {
			continue
		}
		if strings.Contains(folded, fold.String(tok)) {
			return true
		}
	}
	return false
}
