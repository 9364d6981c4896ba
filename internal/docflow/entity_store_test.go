package docflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docprep/api/internal/domain"
)

func recipientIDs(rs []domain.Recipient) []int64 {
	ids := make([]int64, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestEntityStoreSortsSeedRecipients(t *testing.T) {
	store := NewEntityStore(draftSeed(recipient(9, "c@x.io"), recipient(2, "a@x.io"), recipient(5, "b@x.io")))
	assert.Equal(t, []int64{2, 5, 9}, recipientIDs(store.Recipients()))
	assert.Equal(t, uint64(0), store.Version())
}

func TestEntityStoreReplaceRecipientsSortsAndBumpsVersion(t *testing.T) {
	store := NewEntityStore(draftSeed())
	store.ReplaceRecipients([]domain.Recipient{recipient(30, "c@x.io"), recipient(10, "a@x.io"), recipient(20, "b@x.io")})

	assert.Equal(t, []int64{10, 20, 30}, recipientIDs(store.Recipients()))
	assert.Equal(t, uint64(1), store.Version())
}

func TestEntityStoreSnapshotIsACopy(t *testing.T) {
	store := NewEntityStore(draftSeed(recipient(1, "a@x.io")))
	snap := store.Snapshot()
	snap.Recipients[0].Email = "mutated@x.io"

	assert.Equal(t, "a@x.io", store.Recipients()[0].Email)
}

func TestEntityStoreSnapshotCopiesPointers(t *testing.T) {
	team := int64(7)
	order := 1
	rec := recipient(1, "a@x.io")
	rec.SigningOrder = &order
	seed := draftSeed(rec)
	seed.Document.TeamID = &team
	store := NewEntityStore(seed)

	snap := store.Snapshot()
	*snap.Document.TeamID = 99
	*snap.Recipients[0].SigningOrder = 5
	doc := store.Document()
	*doc.TeamID = 100
	*store.Recipients()[0].SigningOrder = 6
	team = 101

	require.NotNil(t, store.Document().TeamID)
	assert.Equal(t, int64(7), *store.Document().TeamID)
	require.NotNil(t, store.Recipients()[0].SigningOrder)
	assert.Equal(t, 1, *store.Recipients()[0].SigningOrder)
}

func TestEntityStoreMergeDocumentKeepsUnsetFields(t *testing.T) {
	seed := draftSeed()
	seed.Document.Meta.Subject = "Please sign"
	store := NewEntityStore(seed)

	store.MergeDocument(domain.Document{ID: 42, Title: "Contract"})

	doc := store.Document()
	assert.Equal(t, "Contract", doc.Title)
	assert.Equal(t, domain.StatusDraft, doc.Status)
	assert.Equal(t, "Please sign", doc.Meta.Subject)
}

func TestEntityStoreReplaceGraphIfVersion(t *testing.T) {
	store := NewEntityStore(draftSeed())
	v := store.Version()
	store.ReplaceFields([]domain.Field{{ID: 1, RecipientID: 1, Type: domain.FieldSignature}})

	applied := store.ReplaceGraphIfVersion(draftSeed(recipient(1, "a@x.io")), v)
	assert.False(t, applied)
	assert.Len(t, store.Fields(), 1)
	assert.Zero(t, store.RecipientCount())

	applied = store.ReplaceGraphIfVersion(draftSeed(recipient(4, "d@x.io"), recipient(3, "c@x.io")), store.Version())
	require.True(t, applied)
	assert.Equal(t, []int64{3, 4}, recipientIDs(store.Recipients()))
	assert.Empty(t, store.Fields())
}
