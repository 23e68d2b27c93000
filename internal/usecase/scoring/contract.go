package scoring

import (
	"context"

	"github.com/kailas-cloud/aivis/internal/domain"
)

// Judge asks a grading model to evaluate a response.
type Judge interface {
	Judge(ctx context.Context, system, prompt string) (domain.QueryOutput, error)
}
