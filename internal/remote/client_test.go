package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docprep/api/internal/docflow"
	"docprep/api/internal/domain"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Key    string
	Body   map[string]any
}

type recordingServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	reply    func(w http.ResponseWriter, r *http.Request)
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Key:    r.Header.Get("Idempotency-Key"),
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &rec.Body)
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	s.reply(w, r)
}

func (s *recordingServer) last() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestClient(t *testing.T, reply func(w http.ResponseWriter, r *http.Request)) (*Client, *recordingServer) {
	t.Helper()
	rec := &recordingServer{reply: reply}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second), rec
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestGetDocumentGraphSendsTeamScope(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"document":{"id":7,"status":"DRAFT","title":"Lease"},"recipients":[{"id":1,"email":"a@example.com","role":"SIGNER"}],"fields":[]}`)
	})
	team := int64(3)

	graph, err := client.GetDocumentGraph(context.Background(), 7, &team)
	require.NoError(t, err)
	assert.Equal(t, int64(7), graph.Document.ID)
	assert.Equal(t, domain.StatusDraft, graph.Document.Status)
	require.Len(t, graph.Recipients, 1)

	got := rec.last()
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/documents/7", got.Path)
	assert.Equal(t, "teamId=3", got.Query)
	assert.Empty(t, got.Key)
}

func TestIdempotencyKeysFollowTheAttempt(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"document":{"id":7,"title":"Lease"}}`)
	})
	attempt := docflow.WithAttempt(context.Background())

	doc, err := client.SetTitle(attempt, 7, nil, "Lease")
	require.NoError(t, err)
	assert.Equal(t, "Lease", doc.Title)
	first := rec.last()

	_, err = client.SetTitle(attempt, 7, nil, "Lease")
	require.NoError(t, err)
	retried := rec.last()

	_, err = client.SetTitle(docflow.WithAttempt(context.Background()), 7, nil, "Lease")
	require.NoError(t, err)
	resubmitted := rec.last()

	_, err = client.SetTitle(context.Background(), 7, nil, "Lease")
	require.NoError(t, err)
	bare := rec.last()

	assert.Equal(t, "/api/documents/7/title", first.Path)
	assert.Equal(t, "Lease", first.Body["title"])
	assert.NotContains(t, first.Body, "teamId")
	assert.NotEmpty(t, first.Key)
	assert.Equal(t, first.Key, retried.Key)
	assert.NotEqual(t, first.Key, resubmitted.Key)
	assert.NotEmpty(t, bare.Key)
	assert.NotEqual(t, first.Key, bare.Key)
	assert.NotEqual(t, resubmitted.Key, bare.Key)
}

func TestSameAttemptDifferentRouteGetsDifferentKey(t *testing.T) {
	attempt := docflow.WithAttempt(context.Background())
	assert.Equal(t, idempotencyKey(attempt, "7:title"), idempotencyKey(attempt, "7:title"))
	assert.NotEqual(t, idempotencyKey(attempt, "7:title"), idempotencyKey(attempt, "7:send"))
	assert.NotEqual(t, idempotencyKey(attempt, "7:send"), idempotencyKey(attempt, "8:send"))
	assert.NotEqual(t, idempotencyKey(context.Background(), "7:send"), idempotencyKey(context.Background(), "7:send"))
}

func TestAddSignersAndFieldsPayloads(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/signers"):
			writeBody(w, http.StatusOK, `{"recipients":[{"id":11,"email":"a@example.com","role":"SIGNER"}]}`)
		default:
			writeBody(w, http.StatusOK, `{"fields":[{"id":21,"recipientId":11,"type":"SIGNATURE","page":1}]}`)
		}
	})
	ctx := context.Background()
	team := int64(9)

	recipients, err := client.AddSigners(ctx, 7, &team, []domain.SignerInput{{Email: "a@example.com", Name: "A", Role: domain.RoleSigner}})
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, int64(11), recipients[0].ID)
	signersReq := rec.last()
	assert.Equal(t, float64(9), signersReq.Body["teamId"])
	require.Len(t, signersReq.Body["signers"], 1)

	fields, err := client.AddFields(ctx, 7, []domain.FieldInput{{SignerEmail: "a@example.com", Type: domain.FieldSignature, Page: 1}})
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, int64(11), fields[0].RecipientID)
	fieldReq := rec.last()
	assert.Equal(t, "/api/documents/7/fields", fieldReq.Path)
	placed := fieldReq.Body["fields"].([]any)[0].(map[string]any)
	assert.Equal(t, "a@example.com", placed["signerEmail"])
	assert.Equal(t, float64(1), placed["pageNumber"])
}

func TestValidationErrorDecodesProblems(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusUnprocessableEntity, `{"code":"VALIDATION_ERROR","error":"Invalid input","details":[{"path":"signers[0].email","message":"is not a valid email address"}]}`)
	})

	_, err := client.AddSigners(context.Background(), 7, nil, []domain.SignerInput{{Email: "nope"}})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.True(t, errors.Is(err, docflow.ErrValidation))
	problems := apiErr.Problems()
	require.Len(t, problems, 1)
	assert.Equal(t, "signers[0].email", problems[0].Path)
}

func TestErrorWithoutEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		writeBody(w, http.StatusBadGateway, "upstream down")
	})

	err := client.SendDocument(context.Background(), 7, nil, domain.SendMeta{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Code)
	assert.Contains(t, apiErr.Message, "/api/documents/7/send")
	assert.False(t, errors.Is(err, docflow.ErrValidation))
}

func TestNotFoundAndConflictHelpers(t *testing.T) {
	var status atomic.Int64
	status.Store(http.StatusNotFound)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, int(status.Load()), `{"code":"X","error":"x"}`)
	})

	_, err := client.GetDocumentGraph(context.Background(), 1, nil)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))

	status.Store(http.StatusConflict)
	err = client.SendDocument(context.Background(), 1, nil, domain.SendMeta{})
	assert.True(t, IsConflict(err))
}

func TestCreateDocumentUploadsMultipart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			writeBody(w, http.StatusBadRequest, `{}`)
			return
		}
		assert.Equal(t, "NDA", r.FormValue("title"))
		assert.Equal(t, "4", r.FormValue("teamId"))
		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "%PDF-1.7", string(data))
			assert.Equal(t, "nda.pdf", header.Filename)
		}
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		writeBody(w, http.StatusCreated, `{"document":{"id":12,"title":"NDA","status":"DRAFT"}}`)
	})
	team := int64(4)

	doc, err := client.CreateDocument(context.Background(), "NDA", &team, "nda.pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), doc.ID)
}

func TestHistoryAndSearchQueries(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/history") {
			writeBody(w, http.StatusOK, `{"commits":[{"hash":"abc1234","message":"Set title"}]}`)
			return
		}
		writeBody(w, http.StatusOK, `{"results":[{"id":1,"title":"Lease"}],"total":1,"query":"lease"}`)
	})
	ctx := context.Background()

	commits, err := client.History(ctx, 7, nil, 5)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "limit=5", rec.last().Query)

	resp, err := client.Search(ctx, "lease", nil, "DRAFT", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "/api/documents", rec.last().Path)
	assert.Contains(t, rec.last().Query, "status=DRAFT")
}
