package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectDocument = `
	SELECT d.id, d.team_id, d.title, d.status, d.document_data_id, d.password_hash,
		d.created_at, d.updated_at,
		coalesce(m.subject, ''), coalesce(m.message, ''), coalesce(m.timezone, ''),
		coalesce(m.date_format, ''), coalesce(m.redirect_url, '')
	FROM documents d
	LEFT JOIN document_meta m ON m.document_id = d.id
`

func (s *PostgresStore) GetDocument(ctx context.Context, documentID int64) (Document, error) {
	var (
		doc    Document
		teamID sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, selectDocument+` WHERE d.id = $1`, documentID).Scan(
		&doc.ID, &teamID, &doc.Title, &doc.Status, &doc.DocumentDataID, &doc.PasswordHash,
		&doc.CreatedAt, &doc.UpdatedAt,
		&doc.Meta.Subject, &doc.Meta.Message, &doc.Meta.Timezone,
		&doc.Meta.DateFormat, &doc.Meta.RedirectURL,
	)
	if err != nil {
		return Document{}, err
	}
	if teamID.Valid {
		doc.TeamID = &teamID.Int64
	}
	return doc, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	var teamID sql.NullInt64
	if doc.TeamID != nil {
		teamID = sql.NullInt64{Int64: *doc.TeamID, Valid: true}
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (team_id, title, status, document_data_id)
		VALUES ($1, $2, 'DRAFT', $3)
		RETURNING id
	`, teamID, doc.Title, doc.DocumentDataID).Scan(&id)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return s.GetDocument(ctx, id)
}

func (s *PostgresStore) UpdateDocumentTitle(ctx context.Context, documentID int64, title string) (Document, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE documents SET title=$2, updated_at=NOW() WHERE id=$1`, documentID, title)
	if err != nil {
		return Document{}, fmt.Errorf("update document title: %w", err)
	}
	if err := requireRow(result); err != nil {
		return Document{}, err
	}
	return s.GetDocument(ctx, documentID)
}

func (s *PostgresStore) SetDocumentPassword(ctx context.Context, documentID int64, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE documents SET password_hash=$2, updated_at=NOW() WHERE id=$1`, documentID, passwordHash)
	if err != nil {
		return fmt.Errorf("set document password: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) ListRecipients(ctx context.Context, documentID int64) ([]Recipient, error) {
	return listRecipients(ctx, s.db, documentID)
}

// ReplaceRecipients upserts the given recipients by email and removes every
// other recipient of the document, together with their fields.
func (s *PostgresStore) ReplaceRecipients(ctx context.Context, documentID int64, recipients []Recipient) ([]Recipient, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace recipients: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	emails := make([]string, 0, len(recipients))
	for _, r := range recipients {
		var order sql.NullInt64
		if r.SigningOrder != nil {
			order = sql.NullInt64{Int64: int64(*r.SigningOrder), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recipients (document_id, email, name, role, signing_order, token)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (document_id, email) DO UPDATE
				SET name=EXCLUDED.name, role=EXCLUDED.role, signing_order=EXCLUDED.signing_order
		`, documentID, r.Email, r.Name, r.Role, order, r.Token); err != nil {
			return nil, fmt.Errorf("upsert recipient %s: %w", r.Email, err)
		}
		emails = append(emails, r.Email)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM recipients WHERE document_id=$1 AND NOT (email = ANY($2))
	`, documentID, emails); err != nil {
		return nil, fmt.Errorf("prune recipients: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET updated_at=NOW() WHERE id=$1`, documentID); err != nil {
		return nil, fmt.Errorf("touch document: %w", err)
	}

	out, err := listRecipients(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace recipients: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListFields(ctx context.Context, documentID int64) ([]Field, error) {
	return listFields(ctx, s.db, documentID)
}

// ReplaceFields swaps the document's whole field set.
func (s *PostgresStore) ReplaceFields(ctx context.Context, documentID int64, fields []Field) ([]Field, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace fields: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fields WHERE document_id=$1`, documentID); err != nil {
		return nil, fmt.Errorf("clear fields: %w", err)
	}
	for _, f := range fields {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fields (document_id, recipient_id, type, page, position_x, position_y, width, height)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, documentID, f.RecipientID, f.Type, f.Page, f.PositionX, f.PositionY, f.Width, f.Height); err != nil {
			return nil, fmt.Errorf("insert field: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET updated_at=NOW() WHERE id=$1`, documentID); err != nil {
		return nil, fmt.Errorf("touch document: %w", err)
	}

	out, err := listFields(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace fields: %w", err)
	}
	return out, nil
}

// MarkDocumentSent stores the send metadata, moves the document to PENDING
// and flags every recipient as sent.
func (s *PostgresStore) MarkDocumentSent(ctx context.Context, documentID int64, meta DocumentMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin send document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_meta (document_id, subject, message, timezone, date_format, redirect_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id) DO UPDATE
			SET subject=EXCLUDED.subject, message=EXCLUDED.message, timezone=EXCLUDED.timezone,
				date_format=EXCLUDED.date_format, redirect_url=EXCLUDED.redirect_url
	`, documentID, meta.Subject, meta.Message, meta.Timezone, meta.DateFormat, meta.RedirectURL); err != nil {
		return fmt.Errorf("upsert document meta: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE documents SET status='PENDING', updated_at=NOW() WHERE id=$1 AND status='DRAFT'
	`, documentID)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE recipients SET send_status='SENT' WHERE document_id=$1`, documentID); err != nil {
		return fmt.Errorf("mark recipients sent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit send document: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

func listRecipients(ctx context.Context, q queryer, documentID int64) ([]Recipient, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, document_id, email, name, role, signing_order, token, send_status
		FROM recipients
		WHERE document_id=$1
		ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	out := make([]Recipient, 0)
	for rows.Next() {
		var (
			r     Recipient
			order sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Email, &r.Name, &r.Role, &order, &r.Token, &r.SendStatus); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		if order.Valid {
			v := int(order.Int64)
			r.SigningOrder = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func listFields(ctx context.Context, q queryer, documentID int64) ([]Field, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, document_id, recipient_id, type, page, position_x, position_y, width, height
		FROM fields
		WHERE document_id=$1
		ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	out := make([]Field, 0)
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.RecipientID, &f.Type, &f.Page, &f.PositionX, &f.PositionY, &f.Width, &f.Height); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
