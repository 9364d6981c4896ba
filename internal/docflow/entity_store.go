package docflow

import (
	"sort"
	"sync"

	"docprep/api/internal/domain"
)

// Snapshot is a consistent copy of the entity store at one version.
type Snapshot struct {
	Document   domain.Document
	Recipients []domain.Recipient
	Fields     []domain.Field
	Version    uint64
}

// EntityStore holds the local copy of the document graph. Every mutator
// replaces a whole collection and bumps the version, so readers never see a
// half-applied update.
type EntityStore struct {
	mu         sync.RWMutex
	document   domain.Document
	recipients []domain.Recipient
	fields     []domain.Field
	version    uint64
}

// NewEntityStore seeds the store from an initial load.
func NewEntityStore(seed domain.Graph) *EntityStore {
	return &EntityStore{
		document:   cloneDocument(seed.Document),
		recipients: sortedRecipients(seed.Recipients),
		fields:     cloneFields(seed.Fields),
	}
}

// Snapshot returns a deep copy of the store. Pointer fields are copied too,
// so a snapshot can be changed without touching the store.
func (s *EntityStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Document:   cloneDocument(s.document),
		Recipients: cloneRecipients(s.recipients),
		Fields:     cloneFields(s.fields),
		Version:    s.version,
	}
}

// Document returns a copy of the current document.
func (s *EntityStore) Document() domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDocument(s.document)
}

// Recipients returns a copy of the recipients, sorted by id.
func (s *EntityStore) Recipients() []domain.Recipient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecipients(s.recipients)
}

// Fields returns a copy of the placed fields.
func (s *EntityStore) Fields() []domain.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneFields(s.fields)
}

// RecipientCount reports how many recipients the document has.
func (s *EntityStore) RecipientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recipients)
}

// Version is bumped by every mutator.
func (s *EntityStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ReplaceDocument overwrites the document.
func (s *EntityStore) ReplaceDocument(doc domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = cloneDocument(doc)
	s.version++
}

// MergeDocument overlays the non-zero fields of update onto the current
// document. The title step uses it since the server may answer with a
// partial document.
func (s *EntityStore) MergeDocument(update domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := s.document
	if update.ID != 0 {
		merged.ID = update.ID
	}
	if update.Status != "" {
		merged.Status = update.Status
	}
	if update.Title != "" {
		merged.Title = update.Title
	}
	if update.TeamID != nil {
		merged.TeamID = cloneInt64(update.TeamID)
	}
	if update.DocumentDataID != "" {
		merged.DocumentDataID = update.DocumentDataID
	}
	if update.Meta != (domain.DocumentMeta{}) {
		merged.Meta = update.Meta
	}
	if !update.UpdatedAt.IsZero() {
		merged.UpdatedAt = update.UpdatedAt
	}
	s.document = merged
	s.version++
}

// ReplaceRecipients overwrites the recipients, keeping them sorted by id.
func (s *EntityStore) ReplaceRecipients(recipients []domain.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = sortedRecipients(recipients)
	s.version++
}

// ReplaceFields overwrites the placed fields.
func (s *EntityStore) ReplaceFields(fields []domain.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = cloneFields(fields)
	s.version++
}

// ReplaceGraph overwrites all three collections at once.
func (s *EntityStore) ReplaceGraph(g domain.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceGraphLocked(g)
}

// ReplaceGraphIfVersion applies g only when the store is still at version.
// It reports whether the graph was applied.
func (s *EntityStore) ReplaceGraphIfVersion(g domain.Graph, version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return false
	}
	s.replaceGraphLocked(g)
	return true
}

func (s *EntityStore) replaceGraphLocked(g domain.Graph) {
	s.document = cloneDocument(g.Document)
	s.recipients = sortedRecipients(g.Recipients)
	s.fields = cloneFields(g.Fields)
	s.version++
}

func sortedRecipients(in []domain.Recipient) []domain.Recipient {
	out := cloneRecipients(in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneRecipients(in []domain.Recipient) []domain.Recipient {
	out := make([]domain.Recipient, len(in))
	copy(out, in)
	for i := range out {
		if out[i].SigningOrder != nil {
			order := *out[i].SigningOrder
			out[i].SigningOrder = &order
		}
	}
	return out
}

func cloneDocument(doc domain.Document) domain.Document {
	doc.TeamID = cloneInt64(doc.TeamID)
	return doc
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneFields(in []domain.Field) []domain.Field {
	out := make([]domain.Field, len(in))
	copy(out, in)
	return out
}
