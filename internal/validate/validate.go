// Package validate holds the default input schema for each preparation step.
package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"docprep/api/internal/docflow"
	"docprep/api/internal/domain"
	"docprep/api/internal/recipientrole"
)

const (
	maxTitleLength   = 255
	maxSubjectLength = 255
	maxMessageLength = 5000
)

var allowedFieldTypes = map[domain.FieldType]struct{}{
	domain.FieldSignature:     {},
	domain.FieldFreeSignature: {},
	domain.FieldName:          {},
	domain.FieldEmail:         {},
	domain.FieldDate:          {},
	domain.FieldText:          {},
}

var allowedDateFormats = map[string]struct{}{
	"yyyy-MM-dd hh:mm a":  {},
	"yyyy-MM-dd":          {},
	"dd/MM/yyyy":          {},
	"MM/dd/yyyy":          {},
	"yy-MM-dd":            {},
	"MMMM dd, yyyy":       {},
	"EEEE, MMMM dd, yyyy": {},
}

// Schema is the stock docflow.Validator.
type Schema struct{}

var _ docflow.Validator = Schema{}

type problems []docflow.FieldProblem

func (p *problems) add(path, format string, args ...any) {
	*p = append(*p, docflow.FieldProblem{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &docflow.ValidationError{Problems: p}
}

func (Schema) ValidateTitle(title string) error {
	var p problems
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		p.add("title", "is required")
	} else if len(trimmed) > maxTitleLength {
		p.add("title", "must be at most %d characters", maxTitleLength)
	}
	return p.err()
}

func (Schema) ValidateSigners(signers []domain.SignerInput) error {
	var p problems
	if len(signers) == 0 {
		p.add("signers", "at least one signer is required")
	}
	seen := make(map[string]int, len(signers))
	for i, signer := range signers {
		path := fmt.Sprintf("signers[%d]", i)
		email := strings.ToLower(strings.TrimSpace(signer.Email))
		if email == "" {
			p.add(path+".email", "is required")
		} else if _, err := mail.ParseAddress(email); err != nil {
			p.add(path+".email", "is not a valid email address")
		} else if prev, dup := seen[email]; dup {
			p.add(path+".email", "duplicates signers[%d]", prev)
		} else {
			seen[email] = i
		}
		if signer.Role != "" && !recipientrole.Valid(string(signer.Role)) {
			p.add(path+".role", "must be one of %s", strings.Join(recipientrole.Names(), ", "))
		}
		if signer.SigningOrder != nil && *signer.SigningOrder < 1 {
			p.add(path+".signingOrder", "must be positive")
		}
	}
	return p.err()
}

func (Schema) ValidateFields(fields []domain.FieldInput, recipients []domain.Recipient) error {
	var p problems
	byEmail := make(map[string]domain.Recipient, len(recipients))
	for _, r := range recipients {
		byEmail[strings.ToLower(r.Email)] = r
	}
	for i, field := range fields {
		path := fmt.Sprintf("fields[%d]", i)
		owner, ok := byEmail[strings.ToLower(strings.TrimSpace(field.SignerEmail))]
		if !ok {
			p.add(path+".signerEmail", "does not match a recipient")
		} else if !recipientrole.CanOwnFields(owner.Role) {
			p.add(path+".signerEmail", "recipient role %s cannot own fields", owner.Role)
		}
		if _, ok := allowedFieldTypes[field.Type]; !ok {
			p.add(path+".type", "unknown field type %q", field.Type)
		}
		if field.Page < 1 {
			p.add(path+".pageNumber", "must be at least 1")
		}
		if field.PositionX < 0 || field.PositionY < 0 || field.Width < 0 || field.Height < 0 {
			p.add(path, "geometry must not be negative")
		}
	}
	return p.err()
}

func (Schema) ValidateSubject(meta domain.SendMeta) error {
	var p problems
	if len(meta.Subject) > maxSubjectLength {
		p.add("meta.subject", "must be at most %d characters", maxSubjectLength)
	}
	if len(meta.Message) > maxMessageLength {
		p.add("meta.message", "must be at most %d characters", maxMessageLength)
	}
	if meta.Timezone != "" {
		if _, err := time.LoadLocation(meta.Timezone); err != nil {
			p.add("meta.timezone", "unknown timezone %q", meta.Timezone)
		}
	}
	if meta.DateFormat != "" {
		if _, ok := allowedDateFormats[meta.DateFormat]; !ok {
			p.add("meta.dateFormat", "unsupported date format %q", meta.DateFormat)
		}
	}
	if meta.RedirectURL != "" {
		u, err := url.Parse(meta.RedirectURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			p.add("meta.redirectUrl", "must be an absolute http(s) URL")
		}
	}
	return p.err()
}
