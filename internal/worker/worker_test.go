package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfields/hybriddetect/internal/pdferr"
	"github.com/docfields/hybriddetect/internal/store"
)

// fakeStore is an in-memory store.Store for exercising the worker's status
// transitions without a real database connection.
type fakeStore struct {
	docs    map[uuid.UUID]*store.Document
	regions map[uuid.UUID][]store.FieldRegion
}

func newFakeStore(docs ...store.Document) *fakeStore {
	s := &fakeStore{docs: map[uuid.UUID]*store.Document{}, regions: map[uuid.UUID][]store.FieldRegion{}}
	for i := range docs {
		d := docs[i]
		s.docs[d.ID] = &d
	}
	return s
}

func (s *fakeStore) GetDocument(id uuid.UUID) (*store.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, errNotFound(id)
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (s *fakeStore) ClaimForProcessing(id uuid.UUID, force bool) (*store.Document, bool, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, false, errNotFound(id)
	}
	if !doc.Processable() && !force {
		return nil, false, nil
	}
	doc.Status = store.StatusProcessing
	copyDoc := *doc
	return &copyDoc, true, nil
}

func (s *fakeStore) ReplaceFieldRegions(documentID uuid.UUID, regions []store.FieldRegion) error {
	s.regions[documentID] = regions
	return nil
}

func (s *fakeStore) MarkReady(documentID uuid.UUID, pageCount int, acroform bool) error {
	doc := s.docs[documentID]
	doc.Status = store.StatusReady
	doc.PageCount = pageCount
	doc.Acroform = acroform
	return nil
}

func (s *fakeStore) MarkFailed(documentID uuid.UUID, errMsg string) error {
	doc, ok := s.docs[documentID]
	if !ok {
		return errNotFound(documentID)
	}
	doc.Status = store.StatusFailed
	doc.ErrorMessage = errMsg
	return nil
}

func (s *fakeStore) DeleteFieldRegions(documentID uuid.UUID) error {
	delete(s.regions, documentID)
	return nil
}

func errNotFound(id uuid.UUID) error {
	return pdferr.New(pdferr.KindNotFound, "document "+id.String())
}

func TestHandleProcessSkipsAlreadyReadyDocumentWithoutForce(t *testing.T) {
	id := uuid.New()
	st := newFakeStore(store.Document{ID: id, Status: store.StatusReady, PageCount: 3})
	w := New(st, nil, nil, nil)

	doc, fields, err := w.Process(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, 0, fields)
	assert.Equal(t, store.StatusReady, doc.Status)
}

func TestHandleProcessReturnsNoOpWhenAlreadyProcessing(t *testing.T) {
	id := uuid.New()
	st := newFakeStore(store.Document{ID: id, Status: store.StatusProcessing})
	w := New(st, nil, nil, nil)

	doc, fields, err := w.Process(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, 0, fields)
	assert.Equal(t, store.StatusProcessing, doc.Status)
}

func TestHandleProcessReturnsNotFoundForUnknownDocument(t *testing.T) {
	st := newFakeStore()
	w := New(st, nil, nil, nil)

	_, _, err := w.Process(context.Background(), uuid.New(), false)
	require.Error(t, err)
}

func TestHandleProcessHTTPRejectsMalformedDocumentID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	w := New(newFakeStore(), nil, nil, nil)
	w.RegisterRoutes(r)

	body, _ := json.Marshal(processRequest{DocumentID: "not-a-uuid"})
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProcessHTTPReturnsNotFoundForUnknownDocument(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	w := New(newFakeStore(), nil, nil, nil)
	w.RegisterRoutes(r)

	body, _ := json.Marshal(processRequest{DocumentID: uuid.New().String()})
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	w := New(newFakeStore(), nil, nil, nil)
	w.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCancelMarksDocumentFailed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	id := uuid.New()
	st := newFakeStore(store.Document{ID: id, Status: store.StatusProcessing})
	r := gin.New()
	w := New(st, nil, nil, nil)
	w.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodDelete, "/process/"+id.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.StatusFailed, st.docs[id].Status)
}
