package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docprep/api/internal/domain"
	"docprep/api/internal/export"
	"docprep/api/internal/idempotency"
	"docprep/api/internal/search"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	defaultUploadCap  = 32 << 20
)

// replayStore remembers the first response for an idempotency key.
type replayStore interface {
	Lookup(ctx context.Context, scope, key string) (idempotency.Response, bool, error)
	Save(ctx context.Context, scope, key string, resp idempotency.Response) (bool, error)
}

type HTTPServer struct {
	service    *Service
	corsOrigin string
	replay     replayStore
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

// WithReplayStore enables Idempotency-Key handling on mutating routes.
func (s *HTTPServer) WithReplayStore(store replayStore) *HTTPServer {
	s.replay = store
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" || parts[1] != "documents" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			s.handleSearch(w, r)
		case http.MethodPost:
			s.idempotent(w, r, "create", s.handleCreate)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	documentID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || documentID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Document id must be a positive integer", nil)
		return
	}
	s.handleDocument(w, r, documentID, parts)
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, documentID int64, parts []string) {
	if len(parts) == 3 && r.Method == http.MethodGet {
		teamID, ok := queryTeamID(w, r)
		if !ok {
			return
		}
		graph, err := s.service.GetDocumentGraph(r.Context(), documentID, teamID)
		if err != nil {
			writeServiceError(w, fmt.Sprintf("GetDocumentGraph(%d)", documentID), err)
			return
		}
		writeJSON(w, http.StatusOK, graph)
		return
	}

	if len(parts) == 4 && r.Method == http.MethodPost {
		scope := fmt.Sprintf("%d:%s", documentID, parts[3])
		switch parts[3] {
		case "title":
			s.idempotent(w, r, scope, func(w http.ResponseWriter, r *http.Request) { s.handleTitle(w, r, documentID) })
			return
		case "signers":
			s.idempotent(w, r, scope, func(w http.ResponseWriter, r *http.Request) { s.handleSigners(w, r, documentID) })
			return
		case "fields":
			s.idempotent(w, r, scope, func(w http.ResponseWriter, r *http.Request) { s.handleFields(w, r, documentID) })
			return
		case "send":
			s.idempotent(w, r, scope, func(w http.ResponseWriter, r *http.Request) { s.handleSend(w, r, documentID) })
			return
		case "password":
			s.idempotent(w, r, scope, func(w http.ResponseWriter, r *http.Request) { s.handlePassword(w, r, documentID) })
			return
		}
	}

	if len(parts) == 4 && parts[3] == "data" && r.Method == http.MethodGet {
		teamID, ok := queryTeamID(w, r)
		if !ok {
			return
		}
		url, expiresAt, err := s.service.DocumentDataURL(r.Context(), documentID, teamID)
		if err != nil {
			writeServiceError(w, fmt.Sprintf("DocumentDataURL(%d)", documentID), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url, "expiresAt": expiresAt})
		return
	}

	if len(parts) == 4 && parts[3] == "summary" && r.Method == http.MethodGet {
		teamID, ok := queryTeamID(w, r)
		if !ok {
			return
		}
		format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or html", nil)
			return
		}
		result, err := s.service.ExportSummary(r.Context(), documentID, teamID, format)
		if err != nil {
			writeServiceError(w, fmt.Sprintf("ExportSummary(%d)", documentID), err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	if len(parts) == 4 && parts[3] == "history" && r.Method == http.MethodGet {
		teamID, ok := queryTeamID(w, r)
		if !ok {
			return
		}
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		commits, err := s.service.History(r.Context(), documentID, teamID, limit)
		if err != nil {
			writeServiceError(w, fmt.Sprintf("History(%d)", documentID), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
		return
	}

	if len(parts) == 5 && parts[3] == "history" && parts[4] == "compare" && r.Method == http.MethodGet {
		teamID, ok := queryTeamID(w, r)
		if !ok {
			return
		}
		from := strings.TrimSpace(r.URL.Query().Get("from"))
		to := strings.TrimSpace(r.URL.Query().Get("to"))
		if from == "" || to == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "from and to commit hashes are required", nil)
			return
		}
		changes, err := s.service.CompareHistory(r.Context(), documentID, teamID, from, to)
		if err != nil {
			writeServiceError(w, fmt.Sprintf("CompareHistory(%d)", documentID), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"from": from, "to": to, "changes": changes})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	teamID, ok := queryTeamID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	q := search.Query{
		Text:   strings.TrimSpace(query.Get("q")),
		TeamID: teamID,
		Status: strings.ToUpper(strings.TrimSpace(query.Get("status"))),
	}
	if raw := query.Get("limit"); raw != "" {
		q.Limit, _ = strconv.Atoi(raw)
	}
	if raw := query.Get("offset"); raw != "" {
		q.Offset, _ = strconv.Atoi(raw)
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	input := CreateDocumentInput{}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		limit := s.service.cfg.MaxUploadBytes
		if limit <= 0 {
			limit = defaultUploadCap
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(limit); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Upload could not be read", nil)
			return
		}
		teamID, err := parseTeamID(r.FormValue("teamId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_TEAM_ID", err.Error(), nil)
			return
		}
		input.Title = r.FormValue("title")
		input.TeamID = teamID
		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			input.Data = file
			input.Size = header.Size
			input.Filename = strings.TrimSuffix(header.Filename, ".pdf")
			input.ContentType = header.Header.Get("Content-Type")
			if input.ContentType == "" {
				input.ContentType = "application/pdf"
			}
		}
	} else {
		var body struct {
			Title  string `json:"title"`
			TeamID *int64 `json:"teamId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		input.Title = body.Title
		input.TeamID = body.TeamID
	}

	doc, err := s.service.CreateDocument(r.Context(), input)
	if err != nil {
		writeServiceError(w, "CreateDocument", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
}

func (s *HTTPServer) handleTitle(w http.ResponseWriter, r *http.Request, documentID int64) {
	var body struct {
		Title  string `json:"title"`
		TeamID *int64 `json:"teamId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	doc, err := s.service.SetTitle(r.Context(), documentID, body.TeamID, body.Title)
	if err != nil {
		writeServiceError(w, fmt.Sprintf("SetTitle(%d)", documentID), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *HTTPServer) handleSigners(w http.ResponseWriter, r *http.Request, documentID int64) {
	var body struct {
		Signers []domain.SignerInput `json:"signers"`
		TeamID  *int64               `json:"teamId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	recipients, err := s.service.AddSigners(r.Context(), documentID, body.TeamID, body.Signers)
	if err != nil {
		writeServiceError(w, fmt.Sprintf("AddSigners(%d)", documentID), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipients": recipients})
}

func (s *HTTPServer) handleFields(w http.ResponseWriter, r *http.Request, documentID int64) {
	var body struct {
		Fields []domain.FieldInput `json:"fields"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	fields, err := s.service.AddFields(r.Context(), documentID, body.Fields)
	if err != nil {
		writeServiceError(w, fmt.Sprintf("AddFields(%d)", documentID), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

func (s *HTTPServer) handleSend(w http.ResponseWriter, r *http.Request, documentID int64) {
	var body struct {
		Meta   domain.SendMeta `json:"meta"`
		TeamID *int64          `json:"teamId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	doc, err := s.service.SendDocument(r.Context(), documentID, body.TeamID, body.Meta)
	if err != nil {
		writeServiceError(w, fmt.Sprintf("SendDocument(%d)", documentID), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *HTTPServer) handlePassword(w http.ResponseWriter, r *http.Request, documentID int64) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.SetDocumentPassword(r.Context(), documentID, body.Password); err != nil {
		writeServiceError(w, fmt.Sprintf("SetDocumentPassword(%d)", documentID), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// idempotent runs next once per Idempotency-Key and scope. Later requests
// with the same key get the stored response. Only 2xx responses are stored;
// a rejected request may succeed once the document changes.
func (s *HTTPServer) idempotent(w http.ResponseWriter, r *http.Request, scope string, next func(http.ResponseWriter, *http.Request)) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" || s.replay == nil {
		next(w, r)
		return
	}

	cached, found, err := s.replay.Lookup(r.Context(), scope, key)
	if err != nil {
		log.Printf("idempotency lookup %s error: %v", scope, err)
	} else if found {
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(cached.Status)
		_, _ = w.Write(cached.Body)
		return
	}

	buffered := &bufferedResponse{header: w.Header(), status: http.StatusOK}
	next(buffered, r)

	w.WriteHeader(buffered.status)
	_, _ = w.Write(buffered.body.Bytes())

	if buffered.status < 200 || buffered.status >= 300 || buffered.body.Len() == 0 {
		return
	}
	if _, err := s.replay.Save(r.Context(), scope, key, idempotency.Response{
		Status:    buffered.status,
		Body:      json.RawMessage(bytes.TrimSpace(buffered.body.Bytes())),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("idempotency save %s error: %v", scope, err)
	}
}

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) { b.status = status }

func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key")
	header.Set("Access-Control-Expose-Headers", "X-Request-ID, Idempotent-Replayed")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// writeServiceError maps err onto the error envelope and logs unexpected
// failures under op.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s error: %v", op, err)
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseTeamID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("teamId must be a positive integer")
	}
	return &id, nil
}

func queryTeamID(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	teamID, err := parseTeamID(r.URL.Query().Get("teamId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TEAM_ID", err.Error(), nil)
		return nil, false
	}
	return teamID, true
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "TIMEOUT", "Request timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
