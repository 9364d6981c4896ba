package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"docprep/api/internal/config"
	"docprep/api/internal/docpassword"
	"docprep/api/internal/domain"
	"docprep/api/internal/email"
	"docprep/api/internal/export"
	"docprep/api/internal/history"
	"docprep/api/internal/recipientrole"
	"docprep/api/internal/search"
	"docprep/api/internal/store"
	"docprep/api/internal/util"
	"docprep/api/internal/validate"
)

const historyAuthor = "docprep"

type dataStore interface {
	Ping(context.Context) error
	GetDocument(context.Context, int64) (store.Document, error)
	InsertDocument(context.Context, store.Document) (store.Document, error)
	UpdateDocumentTitle(context.Context, int64, string) (store.Document, error)
	SetDocumentPassword(context.Context, int64, string) error
	ListRecipients(context.Context, int64) ([]store.Recipient, error)
	ReplaceRecipients(context.Context, int64, []store.Recipient) ([]store.Recipient, error)
	ListFields(context.Context, int64) ([]store.Field, error)
	ReplaceFields(context.Context, int64, []store.Field) ([]store.Field, error)
	MarkDocumentSent(context.Context, int64, store.DocumentMeta) error
}

type historyService interface {
	Record(int64, history.Snapshot, string, string) (history.Commit, error)
	Log(int64, int) ([]history.Commit, error)
	Compare(int64, string, string) ([]history.Change, error)
}

type searchService interface {
	IndexDocument(search.DocumentRecord)
	Search(search.Query) search.Response
}

type mailer interface {
	IsConfigured() bool
	SendSigningRequest(string, email.SigningRequest) error
}

type blobStore interface {
	Put(context.Context, string, io.Reader, int64, string) error
	PresignGet(context.Context, string, string, time.Duration) (string, error)
}

type summaryExporter interface {
	Export(context.Context, domain.Graph, []history.Commit, export.Format) (*export.Result, error)
}

// Dependencies are the optional collaborators of the service. A nil member
// disables the feature it backs.
type Dependencies struct {
	History historyService
	Search  searchService
	Mail    mailer
	Blobs   blobStore
	Export  summaryExporter
}

type Service struct {
	cfg     config.Config
	store   dataStore
	history historyService
	search  searchService
	mail    mailer
	blobs   blobStore
	export  summaryExporter
	schema  validate.Schema
}

func New(cfg config.Config, st dataStore, deps Dependencies) *Service {
	return &Service{
		cfg:     cfg,
		store:   st,
		history: deps.History,
		search:  deps.Search,
		mail:    deps.Mail,
		blobs:   deps.Blobs,
		export:  deps.Export,
	}
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateDocumentInput starts a new draft. Data is optional.
type CreateDocumentInput struct {
	Title       string
	TeamID      *int64
	Data        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

func (s *Service) CreateDocument(ctx context.Context, input CreateDocumentInput) (domain.Document, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSpace(input.Filename)
	}
	if title == "" {
		title = "Untitled"
	}
	if err := s.schema.ValidateTitle(title); err != nil {
		return domain.Document{}, fromValidation(err)
	}

	var dataID string
	if input.Data != nil {
		if s.blobs == nil {
			return domain.Document{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Document storage is not configured", nil)
		}
		dataID = util.NewID("data")
		if err := s.blobs.Put(ctx, dataID, input.Data, input.Size, input.ContentType); err != nil {
			return domain.Document{}, err
		}
	}

	created, err := s.store.InsertDocument(ctx, store.Document{
		TeamID:         input.TeamID,
		Title:          title,
		DocumentDataID: dataID,
	})
	if err != nil {
		return domain.Document{}, err
	}
	doc := toDomainDocument(created)
	s.afterChange(ctx, doc.ID, "Create document")
	return doc, nil
}

func (s *Service) GetDocumentGraph(ctx context.Context, documentID int64, teamID *int64) (domain.Graph, error) {
	doc, err := s.loadScoped(ctx, documentID, teamID)
	if err != nil {
		return domain.Graph{}, err
	}
	return s.graphFor(ctx, doc)
}

func (s *Service) SetTitle(ctx context.Context, documentID int64, teamID *int64, title string) (domain.Document, error) {
	title = strings.TrimSpace(title)
	if err := s.schema.ValidateTitle(title); err != nil {
		return domain.Document{}, fromValidation(err)
	}
	doc, err := s.loadScoped(ctx, documentID, teamID)
	if err != nil {
		return domain.Document{}, err
	}
	if err := requireEditable(doc); err != nil {
		return domain.Document{}, err
	}

	updated, err := s.store.UpdateDocumentTitle(ctx, documentID, title)
	if err != nil {
		return domain.Document{}, err
	}
	s.afterChange(ctx, documentID, "Set title")
	return toDomainDocument(updated), nil
}

// AddSigners makes signers the document's complete recipient list. Known
// emails keep their recipient ID and signing token.
func (s *Service) AddSigners(ctx context.Context, documentID int64, teamID *int64, signers []domain.SignerInput) ([]domain.Recipient, error) {
	if err := s.schema.ValidateSigners(signers); err != nil {
		return nil, fromValidation(err)
	}
	doc, err := s.loadScoped(ctx, documentID, teamID)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(doc); err != nil {
		return nil, err
	}

	rows := make([]store.Recipient, 0, len(signers))
	for _, signer := range signers {
		rows = append(rows, store.Recipient{
			DocumentID:   documentID,
			Email:        strings.ToLower(strings.TrimSpace(signer.Email)),
			Name:         strings.TrimSpace(signer.Name),
			Role:         string(recipientrole.Normalize(string(signer.Role))),
			SigningOrder: signer.SigningOrder,
			Token:        util.NewToken(),
		})
	}
	saved, err := s.store.ReplaceRecipients(ctx, documentID, rows)
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, documentID, "Set recipients")
	return toDomainRecipients(saved), nil
}

// AddFields replaces the document's field set. Every field must belong to a
// recipient of the document that may own fields.
func (s *Service) AddFields(ctx context.Context, documentID int64, fields []domain.FieldInput) ([]domain.Field, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(doc); err != nil {
		return nil, err
	}
	recipients, err := s.store.ListRecipients(ctx, documentID)
	if err != nil {
		return nil, err
	}
	known := toDomainRecipients(recipients)
	if err := s.schema.ValidateFields(fields, known); err != nil {
		return nil, fromValidation(err)
	}

	byEmail := make(map[string]int64, len(known))
	for _, r := range known {
		byEmail[strings.ToLower(r.Email)] = r.ID
	}
	rows := make([]store.Field, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, store.Field{
			DocumentID:  documentID,
			RecipientID: byEmail[strings.ToLower(strings.TrimSpace(f.SignerEmail))],
			Type:        string(f.Type),
			Page:        f.Page,
			PositionX:   f.PositionX,
			PositionY:   f.PositionY,
			Width:       f.Width,
			Height:      f.Height,
		})
	}
	saved, err := s.store.ReplaceFields(ctx, documentID, rows)
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, documentID, "Place fields")
	return toDomainFields(saved), nil
}

// SendDocument stores the message, moves the draft to PENDING and mails each
// recipient their signing link.
func (s *Service) SendDocument(ctx context.Context, documentID int64, teamID *int64, meta domain.SendMeta) (domain.Document, error) {
	if err := s.schema.ValidateSubject(meta); err != nil {
		return domain.Document{}, fromValidation(err)
	}
	doc, err := s.loadScoped(ctx, documentID, teamID)
	if err != nil {
		return domain.Document{}, err
	}
	if domain.DocumentStatus(doc.Status) != domain.StatusDraft {
		return domain.Document{}, domainError(http.StatusConflict, "DOCUMENT_ALREADY_SENT", "Document has already been sent", map[string]any{"status": doc.Status})
	}

	graph, err := s.graphFor(ctx, doc)
	if err != nil {
		return domain.Document{}, err
	}
	if err := checkSendable(graph); err != nil {
		return domain.Document{}, err
	}

	if err := s.store.MarkDocumentSent(ctx, documentID, store.DocumentMeta{
		Subject:     strings.TrimSpace(meta.Subject),
		Message:     strings.TrimSpace(meta.Message),
		Timezone:    meta.Timezone,
		DateFormat:  meta.DateFormat,
		RedirectURL: meta.RedirectURL,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domainError(http.StatusConflict, "DOCUMENT_ALREADY_SENT", "Document has already been sent", nil)
		}
		return domain.Document{}, err
	}

	s.dispatchSigningRequests(graph, meta)
	s.afterChange(ctx, documentID, "Send document")

	sent, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return domain.Document{}, err
	}
	return toDomainDocument(sent), nil
}

func (s *Service) SetDocumentPassword(ctx context.Context, documentID int64, password string) error {
	hash, err := docpassword.Hash(password)
	if err != nil {
		if errors.Is(err, docpassword.ErrTooShort) || errors.Is(err, docpassword.ErrTooLong) {
			return invalid(err.Error(), nil)
		}
		return err
	}
	return s.store.SetDocumentPassword(ctx, documentID, hash)
}

// DocumentDataURL returns a presigned download URL for the uploaded data.
func (s *Service) DocumentDataURL(ctx context.Context, documentID int64, teamID *int64) (string, time.Time, error) {
	doc, err := s.loadScoped(ctx, documentID, teamID)
	if err != nil {
		return "", time.Time{}, err
	}
	if doc.DocumentDataID == "" {
		return "", time.Time{}, notFound("Document has no uploaded data")
	}
	if s.blobs == nil {
		return "", time.Time{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Document storage is not configured", nil)
	}
	ttl := s.cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	url, err := s.blobs.PresignGet(ctx, doc.DocumentDataID, doc.Title+".pdf", ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, time.Now().Add(ttl).UTC(), nil
}

func (s *Service) History(ctx context.Context, documentID int64, teamID *int64, limit int) ([]history.Commit, error) {
	if _, err := s.loadScoped(ctx, documentID, teamID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []history.Commit{}, nil
	}
	commits, err := s.history.Log(documentID, limit)
	if errors.Is(err, history.ErrNoHistory) {
		return []history.Commit{}, nil
	}
	return commits, err
}

func (s *Service) CompareHistory(ctx context.Context, documentID int64, teamID *int64, from, to string) ([]history.Change, error) {
	if _, err := s.loadScoped(ctx, documentID, teamID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, notFound("History is not enabled")
	}
	changes, err := s.history.Compare(documentID, from, to)
	if errors.Is(err, history.ErrNoHistory) {
		return nil, notFound("Document has no history")
	}
	if err != nil {
		return nil, invalid("Unknown commit hash", map[string]string{"from": from, "to": to})
	}
	return changes, nil
}

// ExportSummary renders the preparation summary of a document.
func (s *Service) ExportSummary(ctx context.Context, documentID int64, teamID *int64, format export.Format) (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	doc, err := s.loadScoped(ctx, documentID, teamID)
	if err != nil {
		return nil, err
	}
	graph, err := s.graphFor(ctx, doc)
	if err != nil {
		return nil, err
	}
	commits, err := s.History(ctx, documentID, teamID, 0)
	if err != nil {
		return nil, err
	}
	result, err := s.export.Export(ctx, graph, commits, format)
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return nil, invalid(err.Error(), nil)
	}
	return result, err
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// loadScoped loads a document visible under teamID: team documents only
// through their team, personal documents only without one.
func (s *Service) loadScoped(ctx context.Context, documentID int64, teamID *int64) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if !sameTeam(doc.TeamID, teamID) {
		return store.Document{}, notFound("Document not found")
	}
	return doc, nil
}

func sameTeam(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func requireEditable(doc store.Document) error {
	if domain.DocumentStatus(doc.Status) == domain.StatusCompleted {
		return domainError(http.StatusConflict, "DOCUMENT_COMPLETED", "Completed documents cannot be edited", nil)
	}
	return nil
}

func checkSendable(graph domain.Graph) error {
	if len(graph.Recipients) == 0 {
		return domainError(http.StatusUnprocessableEntity, "NO_RECIPIENTS", "Document needs at least one recipient", nil)
	}
	signed := make(map[int64]bool, len(graph.Recipients))
	for _, f := range graph.Fields {
		if recipientrole.IsSignatureField(f.Type) {
			signed[f.RecipientID] = true
		}
	}
	var missing []string
	for _, r := range graph.Recipients {
		if recipientrole.RequiresSignature(r.Role) && !signed[r.ID] {
			missing = append(missing, r.Email)
		}
	}
	if len(missing) > 0 {
		return domainError(http.StatusUnprocessableEntity, "MISSING_SIGNATURE_FIELD", "Every signer needs a signature field", map[string]any{"recipients": missing})
	}
	return nil
}

func (s *Service) graphFor(ctx context.Context, doc store.Document) (domain.Graph, error) {
	recipients, err := s.store.ListRecipients(ctx, doc.ID)
	if err != nil {
		return domain.Graph{}, err
	}
	fields, err := s.store.ListFields(ctx, doc.ID)
	if err != nil {
		return domain.Graph{}, err
	}
	return domain.Graph{
		Document:   toDomainDocument(doc),
		Recipients: toDomainRecipients(recipients),
		Fields:     toDomainFields(fields),
	}, nil
}

func (s *Service) dispatchSigningRequests(graph domain.Graph, meta domain.SendMeta) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	for _, r := range graph.Recipients {
		if r.Role == domain.RoleCC {
			continue
		}
		err := s.mail.SendSigningRequest(r.Email, email.SigningRequest{
			DocumentTitle: graph.Document.Title,
			RecipientName: r.Name,
			Subject:       meta.Subject,
			Message:       meta.Message,
			SigningURL:    fmt.Sprintf("%s/sign/%s", s.cfg.SigningBaseURL, r.Token),
		})
		if err != nil {
			log.Printf("SendDocument(%d): signing request to %s failed: %v", graph.Document.ID, r.Email, err)
		}
	}
}

// afterChange records history and refreshes the search index. Both are best
// effort; failures are logged only.
func (s *Service) afterChange(ctx context.Context, documentID int64, message string) {
	if s.history == nil && s.search == nil {
		return
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		log.Printf("afterChange(%d) reload error: %v", documentID, err)
		return
	}
	graph, err := s.graphFor(ctx, doc)
	if err != nil {
		log.Printf("afterChange(%d) graph error: %v", documentID, err)
		return
	}
	if s.history != nil {
		if _, err := s.history.Record(documentID, history.FromGraph(graph), historyAuthor, message); err != nil {
			log.Printf("afterChange(%d) history error: %v", documentID, err)
		}
	}
	if s.search != nil {
		s.search.IndexDocument(toSearchRecord(graph))
	}
}

func toSearchRecord(g domain.Graph) search.DocumentRecord {
	emails := make([]string, 0, len(g.Recipients))
	for _, r := range g.Recipients {
		emails = append(emails, r.Email)
	}
	return search.DocumentRecord{
		ID:         g.Document.ID,
		Title:      g.Document.Title,
		Status:     string(g.Document.Status),
		TeamID:     g.Document.TeamID,
		Subject:    g.Document.Meta.Subject,
		Recipients: emails,
	}
}

func toDomainDocument(doc store.Document) domain.Document {
	return domain.Document{
		ID:             doc.ID,
		Status:         domain.DocumentStatus(doc.Status),
		Title:          doc.Title,
		TeamID:         doc.TeamID,
		DocumentDataID: doc.DocumentDataID,
		Meta: domain.DocumentMeta{
			Subject:     doc.Meta.Subject,
			Message:     doc.Meta.Message,
			Timezone:    doc.Meta.Timezone,
			DateFormat:  doc.Meta.DateFormat,
			RedirectURL: doc.Meta.RedirectURL,
			HasPassword: doc.PasswordHash != "",
		},
		UpdatedAt: doc.UpdatedAt,
	}
}

func toDomainRecipients(rows []store.Recipient) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Recipient{
			ID:           r.ID,
			DocumentID:   r.DocumentID,
			Email:        r.Email,
			Name:         r.Name,
			Role:         domain.RecipientRole(r.Role),
			SigningOrder: r.SigningOrder,
			Token:        r.Token,
			SendStatus:   domain.SendStatus(r.SendStatus),
		})
	}
	return out
}

func toDomainFields(rows []store.Field) []domain.Field {
	out := make([]domain.Field, 0, len(rows))
	for _, f := range rows {
		out = append(out, domain.Field{
			ID:          f.ID,
			DocumentID:  f.DocumentID,
			RecipientID: f.RecipientID,
			Type:        domain.FieldType(f.Type),
			Page:        f.Page,
			PositionX:   f.PositionX,
			PositionY:   f.PositionY,
			Width:       f.Width,
			Height:      f.Height,
		})
	}
	return out
}
