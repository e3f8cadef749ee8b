package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kinstory/internal/biography"
	"github.com/ppiankov/kinstory/internal/citation"
	"github.com/ppiankov/kinstory/internal/llm"
	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/pipeline"
	"github.com/ppiankov/kinstory/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	genErr  error
	lastReq pipeline.Request
	live    model.SourceIDSet
}

func (f *fakeService) Generate(ctx context.Context, req pipeline.Request) (*pipeline.Bundle, error) {
	f.lastReq = req
	if f.genErr != nil {
		return nil, f.genErr
	}
	res := citation.Process("Born in Ohio [Event:e1:Birth].", f.live)
	return &pipeline.Bundle{
		RequestID:  "req-1",
		PersonID:   req.PersonID,
		ScopeID:    req.ScopeID,
		PersonName: "John Smith",
		Narrative:  res.Text,
		Citations:  res.Citations,
		Segments:   res.Segments,
		Sources:    []pipeline.Source{{Type: model.CitationEvent, ID: "e1", Title: "Birth", Date: "1820"}},
	}, nil
}

func (f *fakeService) Validate(ctx context.Context, text, personID, scopeID string) ([]citation.Validation, error) {
	if personID == "missing" {
		return nil, &pipeline.PhaseError{Phase: pipeline.PhaseResolution, Err: store.ErrPersonNotFound}
	}
	return citation.Validate(text, f.live), nil
}

func (f *fakeService) RepairStale(ctx context.Context, text, personID, scopeID string) (string, []citation.Repair, error) {
	out, repairs := citation.RepairStale(text, f.live)
	return out, repairs, nil
}

func newTestServer() (*fakeService, *gin.Engine) {
	live := model.NewSourceIDSet()
	live.Add(model.CitationEvent, "e1")
	svc := &fakeService{live: live}
	return svc, NewServer(svc, time.Second, nil).Router()
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	_, r := newTestServer()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestServer()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestGenerate_JSON(t *testing.T) {
	svc, r := newTestServer()
	w := post(r, "/v1/biographies", `{"person_id":"p1","scope_id":"tree-1","max_length":300,"submit":true}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, pipeline.Request{PersonID: "p1", ScopeID: "tree-1", MaxLength: 300, Submit: true}, svc.lastReq)

	var b pipeline.Bundle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "req-1", b.RequestID)
	require.Len(t, b.Citations, 1)
	assert.Equal(t, "e1", b.Citations[0].ID)
}

func TestGenerate_Markdown(t *testing.T) {
	_, r := newTestServer()
	w := post(r, "/v1/biographies?format=markdown", `{"person_id":"p1","scope_id":"tree-1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "Born in Ohio [^1].")
	assert.Contains(t, w.Body.String(), `[^1]: Event "Birth", 1820`)
}

func TestGenerate_BindingErrors(t *testing.T) {
	_, r := newTestServer()

	tests := []struct {
		name string
		body string
	}{
		{"missing scope", `{"person_id":"p1"}`},
		{"missing person", `{"scope_id":"tree-1"}`},
		{"length too small", `{"person_id":"p1","scope_id":"tree-1","max_length":5}`},
		{"not json", `person=p1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, "/v1/biographies", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &pipeline.PhaseError{Phase: pipeline.PhaseResolution, Err: store.ErrPersonNotFound}, http.StatusNotFound},
		{"insufficient", pipeline.ErrInsufficientMaterial, http.StatusUnprocessableEntity},
		{"invalid", fmt.Errorf("%w: bad", pipeline.ErrInvalidRequest), http.StatusBadRequest},
		{"empty generation", &pipeline.PhaseError{Phase: pipeline.PhaseGeneration, Err: biography.ErrEmptyGeneration}, http.StatusBadGateway},
		{"upstream", &pipeline.PhaseError{Phase: pipeline.PhaseGeneration, Err: &llm.StatusError{Provider: "openai", StatusCode: 503}}, http.StatusBadGateway},
		{"timeout", &pipeline.PhaseError{Phase: pipeline.PhaseGeneration, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"persistence", &pipeline.PhaseError{Phase: pipeline.PhasePersistence, Err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, r := newTestServer()
			svc.genErr = tt.err

			w := post(r, "/v1/biographies", `{"person_id":"p1","scope_id":"tree-1"}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestValidateCitations(t *testing.T) {
	_, r := newTestServer()
	w := post(r, "/v1/citations/validate", `{"text":"[Event:e1:Birth] and [Note:n9:Gone]","person_id":"p1","scope_id":"tree-1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, 1, resp.InvalidCount)
	require.Len(t, resp.Citations, 2)
	assert.True(t, resp.Citations[0].Valid)

	w = post(r, "/v1/citations/validate", `{"text":"x","person_id":"missing","scope_id":"tree-1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(r, "/v1/citations/validate", `{"person_id":"p1","scope_id":"tree-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRepairCitations(t *testing.T) {
	_, r := newTestServer()
	w := post(r, "/v1/citations/repair", `{"text":"[Event:e1:Birth] and [Note:n9:Gone]","person_id":"p1","scope_id":"tree-1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp RepairResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "[Event:e1:Birth] and Gone", resp.Text)
	require.Len(t, resp.Repairs, 1)
	assert.Equal(t, citation.KindStale, resp.Repairs[0].Kind)

	w = post(r, "/v1/citations/repair", `{"text":"clean","person_id":"p1","scope_id":"tree-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"repairs":[]`)
}
