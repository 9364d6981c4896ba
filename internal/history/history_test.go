package history

import (
	"errors"
	"sync"
	"testing"

	"docprep/api/internal/domain"
)

func sampleGraph() domain.Graph {
	return domain.Graph{
		Document: domain.Document{ID: 9, Title: "Contract", Status: domain.StatusDraft},
		Recipients: []domain.Recipient{
			{ID: 1, Email: "ana@example.com", Name: "Ana", Role: domain.RoleSigner, SendStatus: domain.SendStatusNotSent},
		},
		Fields: []domain.Field{
			{ID: 5, RecipientID: 1, Type: domain.FieldSignature, Page: 1, PositionX: 10, PositionY: 20, Width: 30, Height: 5},
		},
	}
}

func TestRecordAndLog(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Record(9, FromGraph(sampleGraph()), "docprep", "Set title")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if first.Hash == "" || first.Message != "Set title" {
		t.Fatalf("unexpected commit %+v", first)
	}

	sent := sampleGraph()
	sent.Document.Status = domain.StatusPending
	sent.Document.Meta.Subject = "Please sign"
	second, err := svc.Record(9, FromGraph(sent), "docprep", "Send document")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	log, err := svc.Log(9, 10)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(log) != 2 || log[0].Hash != second.Hash || log[1].Hash != first.Hash {
		t.Fatalf("expected newest-first log of two commits, got %+v", log)
	}

	changes, err := svc.Compare(9, first.Hash, second.Hash)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(changes) != 2 || changes[0].Field != "status" || changes[1].Field != "subject" {
		t.Fatalf("unexpected changes %+v", changes)
	}
}

func TestRecordUnchangedSnapshotReusesHead(t *testing.T) {
	svc := New(t.TempDir())
	snap := FromGraph(sampleGraph())

	first, err := svc.Record(9, snap, "docprep", "Add signers")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	again, err := svc.Record(9, snap, "docprep", "Add signers")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if again.Hash != first.Hash {
		t.Fatalf("expected unchanged snapshot to reuse %s, got %s", first.Hash, again.Hash)
	}
	log, err := svc.Log(9, 0)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("expected one commit, got %d", len(log))
	}
}

func TestLogUnknownDocument(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Log(404, 10); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestSnapshotUsesRecipientEmails(t *testing.T) {
	snap := FromGraph(sampleGraph())
	if len(snap.Fields) != 1 || snap.Fields[0].RecipientEmail != "ana@example.com" {
		t.Fatalf("expected field keyed by recipient email, got %+v", snap.Fields)
	}
}

func TestConcurrentRecordsSerializePerDocument(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := sampleGraph()
			g.Document.Title = []string{"A", "B", "C", "D"}[i]
			if _, err := svc.Record(9, FromGraph(g), "docprep", "Set title"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Record() error = %v", err)
	}
	log, err := svc.Log(9, 0)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(log) != 4 {
		t.Fatalf("expected 4 commits, got %d", len(log))
	}
}
