package store

import "testing"

func TestRedactURLHidesPassword(t *testing.T) {
	got := redactURL("postgres://docprep:secret@db:5432/docprep?sslmode=disable")
	if got != "postgres://docprep:xxxxx@db:5432/docprep?sslmode=disable" {
		t.Fatalf("unexpected redaction: %s", got)
	}
	if got := redactURL("postgres://%zz"); got != "<invalid url>" {
		t.Fatalf("expected invalid marker, got %s", got)
	}
}
