// Package remote is the HTTP client for the docprep API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"docprep/api/internal/docflow"
	"docprep/api/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

// Client talks to the docprep API. It implements docflow.Remote.
type Client struct {
	Base string
	HTTP *http.Client
}

// New returns a client for the API at base.
func New(base string, timeout time.Duration) *Client {
	return &Client{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: timeout},
	}
}

var _ docflow.Remote = (*Client)(nil)

// GetDocumentGraph loads a document with its recipients and fields.
func (c *Client) GetDocumentGraph(ctx context.Context, documentID int64, teamID *int64) (domain.Graph, error) {
	var out domain.Graph
	if err := c.getJSON(ctx, documentPath(documentID, "")+teamQuery(teamID), &out); err != nil {
		return domain.Graph{}, err
	}
	return out, nil
}

// SetTitle renames a draft document.
func (c *Client) SetTitle(ctx context.Context, documentID int64, teamID *int64, title string) (domain.Document, error) {
	var out struct {
		Document domain.Document `json:"document"`
	}
	err := c.post(ctx, documentID, "title", struct {
		Title  string `json:"title"`
		TeamID *int64 `json:"teamId,omitempty"`
	}{Title: title, TeamID: teamID}, &out)
	return out.Document, err
}

// AddSigners replaces the recipients of a document.
func (c *Client) AddSigners(ctx context.Context, documentID int64, teamID *int64, signers []domain.SignerInput) ([]domain.Recipient, error) {
	var out struct {
		Recipients []domain.Recipient `json:"recipients"`
	}
	err := c.post(ctx, documentID, "signers", struct {
		Signers []domain.SignerInput `json:"signers"`
		TeamID  *int64               `json:"teamId,omitempty"`
	}{Signers: signers, TeamID: teamID}, &out)
	return out.Recipients, err
}

// AddFields replaces the placed fields of a document.
func (c *Client) AddFields(ctx context.Context, documentID int64, fields []domain.FieldInput) ([]domain.Field, error) {
	var out struct {
		Fields []domain.Field `json:"fields"`
	}
	err := c.post(ctx, documentID, "fields", struct {
		Fields []domain.FieldInput `json:"fields"`
	}{Fields: fields}, &out)
	return out.Fields, err
}

// SendDocument stores the send metadata and moves the document to PENDING.
func (c *Client) SendDocument(ctx context.Context, documentID int64, teamID *int64, meta domain.SendMeta) error {
	return c.post(ctx, documentID, "send", struct {
		Meta   domain.SendMeta `json:"meta"`
		TeamID *int64          `json:"teamId,omitempty"`
	}{Meta: meta, TeamID: teamID}, nil)
}

// SetDocumentPassword sets the access password of a document.
func (c *Client) SetDocumentPassword(ctx context.Context, documentID int64, password string) error {
	return c.post(ctx, documentID, "password", struct {
		Password string `json:"password"`
	}{Password: password}, nil)
}

// CreateDocument starts a draft. When data is non-nil it is uploaded as the
// document's PDF.
func (c *Client) CreateDocument(ctx context.Context, title string, teamID *int64, filename string, data io.Reader) (domain.Document, error) {
	var (
		body        bytes.Buffer
		contentType string
	)
	if data != nil {
		writer := multipart.NewWriter(&body)
		_ = writer.WriteField("title", title)
		if teamID != nil {
			_ = writer.WriteField("teamId", strconv.FormatInt(*teamID, 10))
		}
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			return domain.Document{}, err
		}
		if _, err := io.Copy(part, data); err != nil {
			return domain.Document{}, fmt.Errorf("read upload: %w", err)
		}
		if err := writer.Close(); err != nil {
			return domain.Document{}, err
		}
		contentType = writer.FormDataContentType()
	} else {
		if err := json.NewEncoder(&body).Encode(struct {
			Title  string `json:"title"`
			TeamID *int64 `json:"teamId,omitempty"`
		}{Title: title, TeamID: teamID}); err != nil {
			return domain.Document{}, err
		}
		contentType = "application/json"
	}

	key := idempotencyKey(ctx, "create")
	var out struct {
		Document domain.Document `json:"document"`
	}
	err := c.do(ctx, http.MethodPost, "/api/documents", contentType, key, &body, &out)
	return out.Document, err
}

type DataURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DocumentDataURL returns a short-lived download link for the document PDF.
func (c *Client) DocumentDataURL(ctx context.Context, documentID int64, teamID *int64) (DataURL, error) {
	var out DataURL
	err := c.getJSON(ctx, documentPath(documentID, "data")+teamQuery(teamID), &out)
	return out, err
}

type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// History lists the recorded changes of a document, newest first.
func (c *Client) History(ctx context.Context, documentID int64, teamID *int64, limit int) ([]Commit, error) {
	q := url.Values{}
	if teamID != nil {
		q.Set("teamId", strconv.FormatInt(*teamID, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := documentPath(documentID, "history")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Commits []Commit `json:"commits"`
	}
	err := c.getJSON(ctx, path, &out)
	return out.Commits, err
}

type SearchResult struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Snippet string `json:"snippet"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Query   string         `json:"query"`
}

// Search finds documents matching text.
func (c *Client) Search(ctx context.Context, text string, teamID *int64, status string, limit int) (SearchResponse, error) {
	q := url.Values{}
	q.Set("q", text)
	if teamID != nil {
		q.Set("teamId", strconv.FormatInt(*teamID, 10))
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out SearchResponse
	err := c.getJSON(ctx, "/api/documents?"+q.Encode(), &out)
	return out, err
}

func (c *Client) post(ctx context.Context, documentID int64, action string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	key := idempotencyKey(ctx, fmt.Sprintf("%d:%s", documentID, action))
	return c.do(ctx, http.MethodPost, documentPath(documentID, action), "application/json", key, buf, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", "", nil, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType, key string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return decodeAPIError(method, path, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// idempotencyKey names one submission attempt on one route. Calls sharing a
// docflow attempt get the same key and are replayed by the server; any other
// call gets a fresh key, even when its payload repeats an earlier one.
func idempotencyKey(ctx context.Context, scope string) string {
	attempt, ok := docflow.AttemptFrom(ctx)
	if !ok {
		return uuid.NewString()
	}
	return uuid.NewSHA1(attempt, []byte(scope)).String()
}

func documentPath(documentID int64, action string) string {
	path := "/api/documents/" + strconv.FormatInt(documentID, 10)
	if action != "" {
		path += "/" + action
	}
	return path
}

func teamQuery(teamID *int64) string {
	if teamID == nil {
		return ""
	}
	return "?teamId=" + strconv.FormatInt(*teamID, 10)
}
