// Package domain holds the wire types shared by the docprep API server and
// the workflow client.
package domain

import "time"

type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusPending   DocumentStatus = "PENDING"
	StatusCompleted DocumentStatus = "COMPLETED"
)

type RecipientRole string

const (
	RoleSigner   RecipientRole = "SIGNER"
	RoleViewer   RecipientRole = "VIEWER"
	RoleApprover RecipientRole = "APPROVER"
	RoleCC       RecipientRole = "CC"
)

type SendStatus string

const (
	SendStatusNotSent SendStatus = "NOT_SENT"
	SendStatusSent    SendStatus = "SENT"
)

type FieldType string

const (
	FieldSignature     FieldType = "SIGNATURE"
	FieldFreeSignature FieldType = "FREE_SIGNATURE"
	FieldName          FieldType = "NAME"
	FieldEmail         FieldType = "EMAIL"
	FieldDate          FieldType = "DATE"
	FieldText          FieldType = "TEXT"
)

// DocumentMeta is the message block sent along with the document.
// Password is write-only; the server reports HasPassword instead.
type DocumentMeta struct {
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	Timezone    string `json:"timezone"`
	DateFormat  string `json:"dateFormat"`
	RedirectURL string `json:"redirectUrl"`
	HasPassword bool   `json:"hasPassword"`
}

type Document struct {
	ID             int64          `json:"id"`
	Status         DocumentStatus `json:"status"`
	Title          string         `json:"title"`
	TeamID         *int64         `json:"teamId,omitempty"`
	DocumentDataID string         `json:"documentDataId"`
	Meta           DocumentMeta   `json:"meta"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type Recipient struct {
	ID           int64         `json:"id"`
	DocumentID   int64         `json:"documentId"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Role         RecipientRole `json:"role"`
	SigningOrder *int          `json:"signingOrder,omitempty"`
	Token        string        `json:"token"`
	SendStatus   SendStatus    `json:"sendStatus"`
}

// Field placement geometry is opaque to the workflow; it is carried as-is.
type Field struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"documentId"`
	RecipientID int64     `json:"recipientId"`
	Type        FieldType `json:"type"`
	Page        int       `json:"page"`
	PositionX   float64   `json:"positionX"`
	PositionY   float64   `json:"positionY"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
}

// Graph is the full document as returned by the document graph query.
type Graph struct {
	Document   Document    `json:"document"`
	Recipients []Recipient `json:"recipients"`
	Fields     []Field     `json:"fields"`
}

// SignerInput describes one signer in an add-signers submission. Signers are
// matched to existing recipients by email.
type SignerInput struct {
	Email        string        `json:"email" yaml:"email"`
	Name         string        `json:"name" yaml:"name"`
	Role         RecipientRole `json:"role" yaml:"role"`
	SigningOrder *int          `json:"signingOrder,omitempty" yaml:"signing_order,omitempty"`
}

// FieldInput places one field. SignerEmail identifies the owning recipient.
type FieldInput struct {
	SignerEmail string    `json:"signerEmail" yaml:"signer_email"`
	Type        FieldType `json:"type" yaml:"type"`
	Page        int       `json:"pageNumber" yaml:"page"`
	PositionX   float64   `json:"pageX" yaml:"x"`
	PositionY   float64   `json:"pageY" yaml:"y"`
	Width       float64   `json:"pageWidth" yaml:"width"`
	Height      float64   `json:"pageHeight" yaml:"height"`
}

type SendMeta struct {
	Subject     string `json:"subject" yaml:"subject"`
	Message     string `json:"message" yaml:"message"`
	DateFormat  string `json:"dateFormat" yaml:"date_format"`
	Timezone    string `json:"timezone" yaml:"timezone"`
	RedirectURL string `json:"redirectUrl" yaml:"redirect_url"`
}
