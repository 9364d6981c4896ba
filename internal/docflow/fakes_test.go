package docflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docprep/api/internal/domain"
)

type graphResult struct {
	graph domain.Graph
	err   error
}

// pendingFetch is a GetDocumentGraph call parked until the test resolves it.
type pendingFetch struct {
	reply chan graphResult
}

func (p *pendingFetch) resolve(g domain.Graph, err error) {
	p.reply <- graphResult{graph: g, err: err}
}

type fakeRemote struct {
	mu sync.Mutex

	setTitleFn   func(context.Context, int64, *int64, string) (domain.Document, error)
	addSignersFn func(context.Context, int64, *int64, []domain.SignerInput) ([]domain.Recipient, error)
	addFieldsFn  func(context.Context, int64, []domain.FieldInput) ([]domain.Field, error)
	sendFn       func(context.Context, int64, *int64, domain.SendMeta) error
	passwordFn   func(context.Context, int64, string) error
	graphFn      func(context.Context, int64, *int64) (domain.Graph, error)

	// fetches, when set, parks every graph fetch until the test resolves it.
	fetches chan *pendingFetch

	calls []string
}

func (f *fakeRemote) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) SetTitle(ctx context.Context, documentID int64, teamID *int64, title string) (domain.Document, error) {
	f.record("setTitle")
	if f.setTitleFn != nil {
		return f.setTitleFn(ctx, documentID, teamID, title)
	}
	return domain.Document{ID: documentID, Title: title}, nil
}

func (f *fakeRemote) AddSigners(ctx context.Context, documentID int64, teamID *int64, signers []domain.SignerInput) ([]domain.Recipient, error) {
	f.record("addSigners")
	if f.addSignersFn != nil {
		return f.addSignersFn(ctx, documentID, teamID, signers)
	}
	return nil, nil
}

func (f *fakeRemote) AddFields(ctx context.Context, documentID int64, fields []domain.FieldInput) ([]domain.Field, error) {
	f.record("addFields")
	if f.addFieldsFn != nil {
		return f.addFieldsFn(ctx, documentID, fields)
	}
	return nil, nil
}

func (f *fakeRemote) SendDocument(ctx context.Context, documentID int64, teamID *int64, meta domain.SendMeta) error {
	f.record("sendDocument")
	if f.sendFn != nil {
		return f.sendFn(ctx, documentID, teamID, meta)
	}
	return nil
}

func (f *fakeRemote) SetDocumentPassword(ctx context.Context, documentID int64, password string) error {
	f.record("setDocumentPassword")
	if f.passwordFn != nil {
		return f.passwordFn(ctx, documentID, password)
	}
	return nil
}

func (f *fakeRemote) GetDocumentGraph(ctx context.Context, documentID int64, teamID *int64) (domain.Graph, error) {
	f.record("getDocumentGraph")
	if f.fetches != nil {
		p := &pendingFetch{reply: make(chan graphResult, 1)}
		select {
		case f.fetches <- p:
		case <-ctx.Done():
			return domain.Graph{}, ctx.Err()
		}
		select {
		case res := <-p.reply:
			return res.graph, res.err
		case <-ctx.Done():
			return domain.Graph{}, ctx.Err()
		}
	}
	if f.graphFn != nil {
		return f.graphFn(ctx, documentID, teamID)
	}
	return domain.Graph{}, context.Canceled
}

type stubValidator struct {
	titleErr   error
	signersErr error
	fieldsErr  error
	subjectErr error
}

func (v stubValidator) ValidateTitle(string) error                 { return v.titleErr }
func (v stubValidator) ValidateSigners([]domain.SignerInput) error { return v.signersErr }
func (v stubValidator) ValidateFields([]domain.FieldInput, []domain.Recipient) error {
	return v.fieldsErr
}
func (v stubValidator) ValidateSubject(domain.SendMeta) error { return v.subjectErr }

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *recordingNotifier) Notify(item Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
}

func (n *recordingNotifier) All() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) All() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func draftSeed(recipients ...domain.Recipient) domain.Graph {
	return domain.Graph{
		Document: domain.Document{
			ID:     42,
			Status: domain.StatusDraft,
			Title:  "Untitled",
		},
		Recipients: recipients,
	}
}

func recipient(id int64, email string) domain.Recipient {
	return domain.Recipient{
		ID:         id,
		DocumentID: 42,
		Email:      email,
		Name:       email,
		Role:       domain.RoleSigner,
		SendStatus: domain.SendStatusNotSent,
	}
}

type testFlow struct {
	*Flow
	remote    *fakeRemote
	notifier  *recordingNotifier
	navigator *recordingNavigator
}

func newTestFlow(t *testing.T, seed domain.Graph, requested *Step, remote *fakeRemote, policy SyncPolicy) *testFlow {
	t.Helper()
	notifier := &recordingNotifier{}
	navigator := &recordingNavigator{}
	flow, err := New(Options{
		Seed:          seed,
		RequestedStep: requested,
		RootPath:      "/documents",
		Remote:        remote,
		Validator:     stubValidator{},
		Notifier:      notifier,
		Navigator:     navigator,
		Logger:        discardLogger(),
		SyncPolicy:    policy,
	})
	require.NoError(t, err)
	t.Cleanup(flow.Close)
	return &testFlow{Flow: flow, remote: remote, notifier: notifier, navigator: navigator}
}

func stepPtr(s Step) *Step {
	return &s
}
