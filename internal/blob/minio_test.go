package blob

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestNewStoreRequiresEndpointAndBucket(t *testing.T) {
	if _, err := NewStore(Config{Bucket: "docs"}); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := NewStore(Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestPresignGetWorksOffline(t *testing.T) {
	store, err := NewStore(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "docprep",
		SecretKey: "docprep-secret",
		Bucket:    "documents",
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	raw, err := store.PresignGet(context.Background(), "data_abc", "Contract.pdf", 5*time.Minute)
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse presigned url: %v", err)
	}
	if u.Host != "localhost:9000" || u.Path != "/documents/documents/data_abc" {
		t.Fatalf("unexpected presigned url %s", raw)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "300" {
		t.Errorf("expected 300s expiry, got %q", q.Get("X-Amz-Expires"))
	}
	if !strings.Contains(q.Get("X-Amz-Credential"), "docprep/") || !strings.Contains(q.Get("X-Amz-Credential"), "us-east-1") {
		t.Errorf("unexpected credential scope %q", q.Get("X-Amz-Credential"))
	}
	if !strings.Contains(q.Get("response-content-disposition"), "Contract.pdf") {
		t.Errorf("expected content disposition, got %q", q.Get("response-content-disposition"))
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("data_1"); got != "documents/data_1" {
		t.Fatalf("ObjectKey() = %q", got)
	}
}
