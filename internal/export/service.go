package export

import (
	"context"
	"fmt"
	"time"

	"docprep/api/internal/domain"
	"docprep/api/internal/history"
)

type pdfRenderer func(ctx context.Context, html, title string) (*Result, error)

// Service builds summary exports from a document graph.
type Service struct {
	renderPDF pdfRenderer
	now       func() time.Time
}

func NewService() *Service {
	return &Service{renderPDF: exportPDF, now: time.Now}
}

// Summary collects the template data for graph. Fields are grouped under
// the recipient that owns them.
func Summary(graph domain.Graph, commits []history.Commit, generatedAt time.Time) SummaryData {
	byRecipient := make(map[int64][]SummaryField, len(graph.Recipients))
	for _, f := range graph.Fields {
		byRecipient[f.RecipientID] = append(byRecipient[f.RecipientID], SummaryField{
			Type: string(f.Type),
			Page: f.Page,
			X:    f.PositionX,
			Y:    f.PositionY,
		})
	}

	data := SummaryData{
		Title:       graph.Document.Title,
		Status:      string(graph.Document.Status),
		Subject:     graph.Document.Meta.Subject,
		Message:     graph.Document.Meta.Message,
		HasPassword: graph.Document.Meta.HasPassword,
		GeneratedAt: generatedAt,
	}
	for _, r := range graph.Recipients {
		row := SummaryRecipient{
			Name:       r.Name,
			Email:      r.Email,
			Role:       string(r.Role),
			SendStatus: string(r.SendStatus),
			Fields:     byRecipient[r.ID],
		}
		if r.SigningOrder != nil {
			row.SigningOrder = *r.SigningOrder
		}
		data.Recipients = append(data.Recipients, row)
	}
	for _, c := range commits {
		data.History = append(data.History, SummaryCommit{Hash: c.Hash, Message: c.Message, CreatedAt: c.CreatedAt})
	}
	return data
}

// Export renders the summary of graph in the requested format.
func (s *Service) Export(ctx context.Context, graph domain.Graph, commits []history.Commit, format Format) (*Result, error) {
	html, err := RenderSummaryHTML(Summary(graph, commits, s.now()))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatPDF:
		return s.renderPDF(ctx, html, graph.Document.Title)
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(graph.Document.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
