// Package docflow drives a document through preparation for signing: title,
// signers, fields, then subject and send. It keeps a local snapshot of the
// document graph in an EntityStore, submits each step to a Remote, and
// refetches the graph in the background whenever the step changes.
package docflow

import (
	"context"
	"errors"
	"log/slog"

	"docprep/api/internal/domain"
)

// Options wires a Flow. Seed, Remote and Validator are required.
type Options struct {
	Seed          domain.Graph
	RequestedStep *Step
	TeamID        *int64
	// RootPath is where the host navigates after a successful send.
	RootPath string

	Remote    Remote
	Validator Validator
	Notifier  Notifier
	Navigator Navigator
	Logger    *slog.Logger

	SyncPolicy SyncPolicy
}

// Flow is one preparation session for a single document.
type Flow struct {
	Entities   *EntityStore
	Controller *Controller
	Handlers   *Handlers
	Sync       *SyncAgent
}

// New wires a workflow for the seeded document. Remote and Validator are
// required; the other collaborators default to no-ops.
func New(opts Options) (*Flow, error) {
	if opts.Remote == nil {
		return nil, errors.New("docflow: remote is required")
	}
	if opts.Validator == nil {
		return nil, errors.New("docflow: validator is required")
	}
	if opts.Seed.Document.ID == 0 {
		return nil, errors.New("docflow: seed document has no id")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	navigator := opts.Navigator
	if navigator == nil {
		navigator = NavigatorFunc(func(string) {})
	}
	rootPath := opts.RootPath
	if rootPath == "" {
		rootPath = "/documents"
	}

	documentID := opts.Seed.Document.ID

	entities := NewEntityStore(opts.Seed)
	controller := NewController(entities.Snapshot(), opts.RequestedStep)

	ctx, cancel := context.WithCancel(context.Background())
	agent := &SyncAgent{
		documentID: documentID,
		teamID:     opts.TeamID,
		policy:     opts.SyncPolicy,
		entities:   entities,
		remote:     opts.Remote,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
	agent.Attach(controller)

	handlers := &Handlers{
		documentID: documentID,
		teamID:     opts.TeamID,
		rootPath:   rootPath,
		entities:   entities,
		controller: controller,
		remote:     opts.Remote,
		validator:  opts.Validator,
		notifier:   notifier,
		navigator:  navigator,
		logger:     logger,
	}

	logger.Debug("flow_started",
		slog.Int64("document_id", documentID),
		slog.String("step", controller.Current().String()),
		slog.String("sync_policy", opts.SyncPolicy.String()),
	)
	return &Flow{
		Entities:   entities,
		Controller: controller,
		Handlers:   handlers,
		Sync:       agent,
	}, nil
}

// Close stops background reconciliation.
func (f *Flow) Close() {
	f.Sync.Close()
}
