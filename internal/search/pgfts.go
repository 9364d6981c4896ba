package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS returns a searcher over the documents table.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing works anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches the document title tsvector with plainto_tsquery and ranks
// by ts_rank, using ts_headline of the subject as the snippet.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := pgWhere(q)
	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM documents d WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT d.id, d.title, d.status, d.team_id,
			ts_headline('english', coalesce(m.subject, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30')
		FROM documents d
		LEFT JOIN document_meta m ON m.document_id = d.id
		WHERE %s
		ORDER BY ts_rank(d.fts, plainto_tsquery('english', $1)) DESC, d.id DESC
		LIMIT %d OFFSET %d`, where, normalizeLimit(q.Limit), offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r      Result
			teamID sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Status, &teamID, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		if teamID.Valid {
			r.TeamID = &teamID.Int64
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func pgWhere(q Query) (string, []any) {
	clauses := []string{"d.fts @@ plainto_tsquery('english', $1)"}
	args := []any{q.Text}
	if q.TeamID != nil {
		args = append(args, *q.TeamID)
		clauses = append(clauses, fmt.Sprintf("d.team_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		clauses = append(clauses, fmt.Sprintf("d.status = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// LoadAllRecords returns every document for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.status, d.team_id, coalesce(m.subject, ''),
			coalesce((SELECT string_agg(r.email, ',' ORDER BY r.id) FROM recipients r WHERE r.document_id = d.id), '')
		FROM documents d
		LEFT JOIN document_meta m ON m.document_id = d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	documents := make([]DocumentRecord, 0)
	for rows.Next() {
		var (
			d          DocumentRecord
			teamID     sql.NullInt64
			recipients string
		)
		if err := rows.Scan(&d.ID, &d.Title, &d.Status, &teamID, &d.Subject, &recipients); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if teamID.Valid {
			d.TeamID = &teamID.Int64
		}
		d.Recipients = []string{}
		if recipients != "" {
			d.Recipients = strings.Split(recipients, ",")
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}
