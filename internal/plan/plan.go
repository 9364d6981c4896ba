// Package plan reads a YAML preparation plan and replays it through the
// workflow one step at a time.
package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"docprep/api/internal/docflow"
	"docprep/api/internal/domain"
	"docprep/api/internal/recipientrole"
)

// Plan is the input for every step of one document. Any step may be left
// out; applying the plan stops at the first step it has no input for.
type Plan struct {
	DocumentID int64                `yaml:"document_id,omitempty"`
	TeamID     *int64               `yaml:"team_id,omitempty"`
	Title      string               `yaml:"title,omitempty"`
	File       string               `yaml:"file,omitempty"`
	Signers    []domain.SignerInput `yaml:"signers,omitempty"`
	Fields     []domain.FieldInput  `yaml:"fields,omitempty"`
	Send       *domain.SendMeta     `yaml:"send,omitempty"`
	Password   string               `yaml:"password,omitempty"`
}

var ErrEmpty = errors.New("plan: payload is empty")

func Parse(data []byte) (Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Plan{}, ErrEmpty
	}
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Plan{}, fmt.Errorf("plan: decode: %w", err)
	}
	return p.Normalized()
}

func LoadReader(r io.Reader) (Plan, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: read: %w", err)
	}
	return Parse(content)
}

// LoadFile reads a plan from disk. A relative File is resolved against the
// plan's directory.
func LoadFile(path string) (Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: read %s: %w", path, err)
	}
	p, err := Parse(content)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: %s: %w", path, err)
	}
	if p.File != "" && !filepath.IsAbs(p.File) {
		p.File = filepath.Join(filepath.Dir(path), p.File)
	}
	return p, nil
}

// Normalized trims input, fills default roles and checks that fields only
// reference signers named in the plan.
func (p Plan) Normalized() (Plan, error) {
	p.Title = strings.TrimSpace(p.Title)

	emails := make(map[string]domain.RecipientRole, len(p.Signers))
	for i := range p.Signers {
		s := &p.Signers[i]
		s.Email = strings.ToLower(strings.TrimSpace(s.Email))
		s.Name = strings.TrimSpace(s.Name)
		if s.Email == "" {
			return Plan{}, fmt.Errorf("plan: signers[%d]: email is required", i)
		}
		if _, dup := emails[s.Email]; dup {
			return Plan{}, fmt.Errorf("plan: signers[%d]: duplicate email %s", i, s.Email)
		}
		s.Role = recipientrole.Normalize(string(s.Role))
		emails[s.Email] = s.Role
	}

	for i := range p.Fields {
		f := &p.Fields[i]
		f.SignerEmail = strings.ToLower(strings.TrimSpace(f.SignerEmail))
		f.Type = domain.FieldType(strings.ToUpper(strings.TrimSpace(string(f.Type))))
		if f.Page == 0 {
			f.Page = 1
		}
		// Fields may target recipients already on the server when the plan
		// has no signers section.
		if len(p.Signers) == 0 {
			continue
		}
		role, ok := emails[f.SignerEmail]
		if !ok {
			return Plan{}, fmt.Errorf("plan: fields[%d]: %s is not a signer in this plan", i, f.SignerEmail)
		}
		if !recipientrole.CanOwnFields(role) {
			return Plan{}, fmt.Errorf("plan: fields[%d]: %s role %s cannot own fields", i, f.SignerEmail, role)
		}
	}
	return p, nil
}

// Has reports whether the plan carries input for step.
func (p Plan) Has(step docflow.Step) bool {
	switch step {
	case docflow.StepTitle:
		return p.Title != ""
	case docflow.StepSigners:
		return len(p.Signers) > 0
	case docflow.StepFields:
		return len(p.Fields) > 0
	case docflow.StepSubject:
		return p.Send != nil
	default:
		return false
	}
}

// Submitter is the slice of docflow.Handlers a plan drives.
type Submitter interface {
	SubmitTitle(ctx context.Context, title string) error
	SubmitSigners(ctx context.Context, signers []domain.SignerInput) error
	SubmitFields(ctx context.Context, fields []domain.FieldInput) error
	SubmitSubject(ctx context.Context, meta domain.SendMeta) error
	SetPassword(ctx context.Context, password string) error
}

// StepSource reports the workflow's current step.
type StepSource interface {
	Current() docflow.Step
}

// Result lists what Apply submitted and where the workflow stopped.
type Result struct {
	Applied     []docflow.Step
	PasswordSet bool
	Sent        bool
	StoppedAt   docflow.Step
}

// Apply submits the plan's input starting from the current step until the
// plan runs out of input, until is reached, or the document is sent. A step
// that fails stops the run with its error.
func (p Plan) Apply(ctx context.Context, h Submitter, steps StepSource, until *docflow.Step) (Result, error) {
	var res Result
	if p.Password != "" {
		if err := h.SetPassword(ctx, p.Password); err != nil {
			return res, err
		}
		res.PasswordSet = true
	}

	for {
		step := steps.Current()
		res.StoppedAt = step
		if !p.Has(step) {
			return res, nil
		}
		if err := p.submit(ctx, h, step); err != nil {
			return res, fmt.Errorf("%s step: %w", step, err)
		}
		res.Applied = append(res.Applied, step)

		if step == docflow.StepSubject {
			res.Sent = true
			return res, nil
		}
		if until != nil && step == *until {
			res.StoppedAt = steps.Current()
			return res, nil
		}
		if steps.Current() == step {
			return res, nil
		}
	}
}

func (p Plan) submit(ctx context.Context, h Submitter, step docflow.Step) error {
	switch step {
	case docflow.StepTitle:
		return h.SubmitTitle(ctx, p.Title)
	case docflow.StepSigners:
		return h.SubmitSigners(ctx, p.Signers)
	case docflow.StepFields:
		return h.SubmitFields(ctx, p.Fields)
	case docflow.StepSubject:
		return h.SubmitSubject(ctx, *p.Send)
	default:
		return docflow.ErrUnknownStep
	}
}
