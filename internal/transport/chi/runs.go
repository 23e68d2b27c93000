package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/event"
	"github.com/kailas-cloud/aivis/internal/domain/query"
	logpkg "github.com/kailas-cloud/aivis/internal/logger"
	"github.com/kailas-cloud/aivis/internal/metrics"
	"github.com/kailas-cloud/aivis/internal/usecase/orchestration"
)

const maxRunBodyBytes = 1 << 20

const runRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["keyword", "phrases"],
        "properties": {
          "keyword": {"type": "string", "minLength": 1},
          "phrases": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
        }
      }
    },
    "versionId": {"type": ["integer", "null"], "minimum": 1}
  }
}`

var runSchema = jsonschema.MustCompileString("run_request.json", runRequestSchema)

// runBody is the POST /runs payload.
type runBody struct {
	Items     []query.Item `json:"items"`
	VersionID *int64       `json:"versionId"`
}

// StartRun handles POST /api/v1/domains/{domainID}/runs.
//
// Admission comes first: a rejected run gets a plain JSON 429 and no stream.
// Everything after admission, input errors included, is reported on the stream.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	domainID, err := bindDomainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	if !s.admission.TryAdmit(domainID) {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		s.handleDomainError(w, &domain.RunLimitError{
			DomainID: domainID,
			Active:   s.admission.Active(domainID),
			Limit:    s.admission.Limit(),
		})
		return
	}
	defer s.admission.Release(domainID)

	logger := logpkg.FromContext(r.Context()).With(zap.Int64("domain_id", domainID))
	req, decodeErr := decodeRun(r.Body, domainID)

	sink := openStream(w)
	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	wg.Go(func() { sink.keepalive(ctx, s.keepalive) })
	defer func() {
		cancel()
		wg.Wait()
	}()

	if decodeErr != nil {
		logger.Info("Rejected run request", zap.Error(decodeErr))
		_ = sink.Emit(event.NewError(event.Failure{
			Message: decodeErr.Error(),
			Code:    orchestration.CodeInvalidRequest,
			Fatal:   true,
		}))
		return
	}

	summary, err := s.runs.Run(ctx, req, sink)
	switch {
	case err == nil:
		logger.Info("Run stream finished", zap.String("run_id", summary.RunID))
	case errors.Is(err, context.Canceled):
		logger.Info("Run stream closed by client", zap.Error(err))
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrTooManyTasks):
		logger.Info("Run request failed validation", zap.Error(err))
	default:
		logger.Warn("Run ended with error", zap.Error(err))
	}
}

// GetSlots handles GET /api/v1/domains/{domainID}/slots.
func (s *Server) GetSlots(w http.ResponseWriter, r *http.Request) {
	domainID, err := bindDomainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SlotsResponse{
		DomainID: domainID,
		Active:   s.admission.Active(domainID),
		Limit:    s.admission.Limit(),
	})
}

func bindDomainID(r *http.Request) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "domainID", gochi.URLParam(r, "domainID"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return 0, fmt.Errorf("invalid domainID: %w", err)
	}
	if id <= 0 {
		return 0, errors.New("invalid domainID: must be a positive integer")
	}
	return id, nil
}

// decodeRun reads, schema-checks and decodes a run body. Task-count limits are
// left to the orchestration service.
func decodeRun(body io.Reader, domainID int64) (orchestration.RunRequest, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxRunBodyBytes+1))
	if err != nil {
		return orchestration.RunRequest{}, fmt.Errorf("%w: read body: %w", domain.ErrInvalidRequest, err)
	}
	if len(raw) > maxRunBodyBytes {
		return orchestration.RunRequest{}, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidRequest, maxRunBodyBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return orchestration.RunRequest{}, fmt.Errorf("%w: body is not valid JSON", domain.ErrInvalidRequest)
	}
	if err := runSchema.Validate(doc); err != nil {
		return orchestration.RunRequest{}, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, schemaMessage(err))
	}

	var rb runBody
	if err := json.Unmarshal(raw, &rb); err != nil {
		return orchestration.RunRequest{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return orchestration.RunRequest{DomainID: domainID, VersionID: rb.VersionID, Items: rb.Items}, nil
}

// schemaMessage reduces a validation error to its first leaf, e.g. "/items: minimum 1 items required".
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
