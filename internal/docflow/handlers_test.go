package docflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docprep/api/internal/domain"
)

func TestSubmitTitleMergesDocumentAndAdvances(t *testing.T) {
	remote := &fakeRemote{
		setTitleFn: func(_ context.Context, id int64, _ *int64, title string) (domain.Document, error) {
			return domain.Document{ID: id, Title: title, Status: domain.StatusDraft}, nil
		},
	}
	flow := newTestFlow(t, draftSeed(), nil, remote, Sequenced)
	require.Equal(t, StepTitle, flow.Controller.Current())

	require.NoError(t, flow.Handlers.SubmitTitle(context.Background(), "Contract"))
	flow.Sync.Wait()

	assert.Equal(t, "Contract", flow.Entities.Document().Title)
	assert.Equal(t, StepSigners, flow.Controller.Current())
	assert.Empty(t, flow.notifier.All())
}

func TestEachSubmissionIsItsOwnAttempt(t *testing.T) {
	var attempts []string
	fail := true
	remote := &fakeRemote{
		setTitleFn: func(ctx context.Context, id int64, _ *int64, title string) (domain.Document, error) {
			attempt, ok := AttemptFrom(ctx)
			require.True(t, ok)
			attempts = append(attempts, attempt.String())
			if fail {
				return domain.Document{}, errors.New("timeout")
			}
			return domain.Document{ID: id, Title: title, Status: domain.StatusDraft}, nil
		},
	}
	flow := newTestFlow(t, draftSeed(), nil, remote, Sequenced)

	require.Error(t, flow.Handlers.SubmitTitle(context.Background(), "A"))
	require.Error(t, flow.Handlers.SubmitTitle(context.Background(), "A"))

	retry := WithAttempt(context.Background())
	require.Error(t, flow.Handlers.SubmitTitle(retry, "A"))
	fail = false
	require.NoError(t, flow.Handlers.SubmitTitle(retry, "A"))
	flow.Sync.Wait()

	require.Len(t, attempts, 4)
	assert.NotEqual(t, attempts[0], attempts[1])
	assert.NotEqual(t, attempts[1], attempts[2])
	assert.Equal(t, attempts[2], attempts[3])
	assert.Equal(t, StepSigners, flow.Controller.Current())
}

func TestSubmitSignersReplacesRecipientsSorted(t *testing.T) {
	remote := &fakeRemote{
		addSignersFn: func(context.Context, int64, *int64, []domain.SignerInput) ([]domain.Recipient, error) {
			return []domain.Recipient{recipient(12, "c@x.io"), recipient(3, "a@x.io"), recipient(7, "b@x.io")}, nil
		},
	}
	flow := newTestFlow(t, draftSeed(recipient(1, "old@x.io")), stepPtr(StepSigners), remote, Sequenced)

	err := flow.Handlers.SubmitSigners(context.Background(), []domain.SignerInput{
		{Email: "a@x.io", Name: "A", Role: domain.RoleSigner},
	})
	require.NoError(t, err)
	flow.Sync.Wait()

	assert.Equal(t, []int64{3, 7, 12}, recipientIDs(flow.Entities.Recipients()))
	assert.Equal(t, StepFields, flow.Controller.Current())
}

func TestSubmitSignersFailureLeavesStateAlone(t *testing.T) {
	cause := errors.New("connection reset")
	remote := &fakeRemote{
		addSignersFn: func(context.Context, int64, *int64, []domain.SignerInput) ([]domain.Recipient, error) {
			return nil, cause
		},
	}
	flow := newTestFlow(t, draftSeed(recipient(1, "a@x.io")), stepPtr(StepSigners), remote, Sequenced)
	before := flow.Entities.Snapshot()

	err := flow.Handlers.SubmitSigners(context.Background(), []domain.SignerInput{{Email: "b@x.io", Name: "B"}})

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "addSigners", remoteErr.Op)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, before, flow.Entities.Snapshot())
	assert.Equal(t, StepSigners, flow.Controller.Current())
	assert.Equal(t, []string{"addSigners"}, remote.Calls())
	assert.Equal(t, []Notification{{
		Title:       "Error",
		Description: "An error occurred while adding signers.",
		Variant:     VariantDestructive,
	}}, flow.notifier.All())
}

func TestSubmitRejectsInvalidInputBeforeRemote(t *testing.T) {
	remote := &fakeRemote{}
	flow := newTestFlow(t, draftSeed(), nil, remote, Sequenced)
	flow.Handlers.validator = stubValidator{
		titleErr: &ValidationError{Problems: []FieldProblem{{Path: "title", Message: "is required"}}},
	}

	err := flow.Handlers.SubmitTitle(context.Background(), "")

	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, remote.Calls())
	assert.Empty(t, flow.notifier.All())
	assert.Equal(t, StepTitle, flow.Controller.Current())
}

func TestSubmitFieldsReplacesFields(t *testing.T) {
	remote := &fakeRemote{
		addFieldsFn: func(_ context.Context, _ int64, in []domain.FieldInput) ([]domain.Field, error) {
			require.Len(t, in, 1)
			return []domain.Field{{ID: 100, RecipientID: 1, Type: domain.FieldSignature, Page: 1}}, nil
		},
	}
	seed := draftSeed(recipient(1, "a@x.io"))
	seed.Fields = []domain.Field{{ID: 5, RecipientID: 1, Type: domain.FieldText}}
	flow := newTestFlow(t, seed, stepPtr(StepFields), remote, Sequenced)

	err := flow.Handlers.SubmitFields(context.Background(), []domain.FieldInput{
		{SignerEmail: "a@x.io", Type: domain.FieldSignature, Page: 1},
	})
	require.NoError(t, err)
	flow.Sync.Wait()

	fields := flow.Entities.Fields()
	require.Len(t, fields, 1)
	assert.Equal(t, int64(100), fields[0].ID)
	assert.Equal(t, StepSubject, flow.Controller.Current())
}

func TestSubmitSubjectSendsAndNavigates(t *testing.T) {
	var gotMeta domain.SendMeta
	remote := &fakeRemote{
		sendFn: func(_ context.Context, _ int64, _ *int64, meta domain.SendMeta) error {
			gotMeta = meta
			return nil
		},
	}
	flow := newTestFlow(t, draftSeed(recipient(1, "a@x.io")), stepPtr(StepSubject), remote, Sequenced)
	before := flow.Entities.Snapshot()

	meta := domain.SendMeta{Subject: "Please sign", Message: "Thanks", Timezone: "Etc/UTC", DateFormat: "yyyy-MM-dd"}
	require.NoError(t, flow.Handlers.SubmitSubject(context.Background(), meta))

	assert.Equal(t, meta, gotMeta)
	assert.Equal(t, StepSubject, flow.Controller.Current())
	assert.Equal(t, before, flow.Entities.Snapshot())
	assert.Equal(t, []string{"/documents"}, flow.navigator.All())
	assert.Equal(t, []Notification{{
		Title:       "Document sent",
		Description: "Your document has been sent successfully.",
		Variant:     VariantDefault,
	}}, flow.notifier.All())
}

func TestSubmitSubjectFailureDoesNotNavigate(t *testing.T) {
	remote := &fakeRemote{
		sendFn: func(context.Context, int64, *int64, domain.SendMeta) error {
			return errors.New("503 service unavailable")
		},
	}
	flow := newTestFlow(t, draftSeed(recipient(1, "a@x.io")), stepPtr(StepSubject), remote, Sequenced)

	err := flow.Handlers.SubmitSubject(context.Background(), domain.SendMeta{Subject: "x"})

	require.Error(t, err)
	assert.Empty(t, flow.navigator.All())
	notes := flow.notifier.All()
	require.Len(t, notes, 1)
	assert.Equal(t, "An error occurred while sending the document.", notes[0].Description)
}

func TestSetPasswordDoesNotMoveWorkflow(t *testing.T) {
	var gotPassword string
	remote := &fakeRemote{
		passwordFn: func(_ context.Context, _ int64, password string) error {
			gotPassword = password
			return nil
		},
	}
	flow := newTestFlow(t, draftSeed(recipient(1, "a@x.io")), stepPtr(StepFields), remote, Sequenced)
	events := 0
	flow.Controller.Subscribe(func(StepChanged) { events++ })

	require.NoError(t, flow.Handlers.SetPassword(context.Background(), "hunter22"))

	assert.Equal(t, "hunter22", gotPassword)
	assert.Equal(t, StepFields, flow.Controller.Current())
	assert.Zero(t, events)
	assert.Equal(t, []string{"setDocumentPassword"}, remote.Calls())
}

func TestSetPasswordFailureIsReturned(t *testing.T) {
	remote := &fakeRemote{
		passwordFn: func(context.Context, int64, string) error { return errors.New("denied") },
	}
	flow := newTestFlow(t, draftSeed(), nil, remote, Sequenced)

	err := flow.Handlers.SetPassword(context.Background(), "pw")

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "setDocumentPassword", remoteErr.Op)
	assert.Equal(t, StepTitle, flow.Controller.Current())
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Seed: draftSeed(), Validator: stubValidator{}})
	assert.Error(t, err)
	_, err = New(Options{Seed: draftSeed(), Remote: &fakeRemote{}})
	assert.Error(t, err)
	_, err = New(Options{Seed: domain.Graph{}, Remote: &fakeRemote{}, Validator: stubValidator{}})
	assert.Error(t, err)
}
