package store

import "time"

type Document struct {
	ID             int64
	TeamID         *int64
	Title          string
	Status         string
	DocumentDataID string
	PasswordHash   string
	Meta           DocumentMeta
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DocumentMeta struct {
	Subject     string
	Message     string
	Timezone    string
	DateFormat  string
	RedirectURL string
}

type Recipient struct {
	ID           int64
	DocumentID   int64
	Email        string
	Name         string
	Role         string
	SigningOrder *int
	Token        string
	SendStatus   string
}

type Field struct {
	ID          int64
	DocumentID  int64
	RecipientID int64
	Type        string
	Page        int
	PositionX   float64
	PositionY   float64
	Width       float64
	Height      float64
}
