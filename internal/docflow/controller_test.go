package docflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeededController(requested *Step) *Controller {
	store := NewEntityStore(draftSeed(recipient(1, "a@x.io")))
	return NewController(store.Snapshot(), requested)
}

func TestControllerAdvanceWalksStepsInOrder(t *testing.T) {
	c := newSeededController(nil)
	var events []StepChanged
	c.Subscribe(func(e StepChanged) { events = append(events, e) })

	require.Equal(t, StepTitle, c.Current())
	assert.True(t, c.Advance())
	assert.True(t, c.Advance())
	assert.True(t, c.Advance())
	assert.False(t, c.Advance())
	assert.Equal(t, StepSubject, c.Current())

	assert.Equal(t, []StepChanged{
		{From: StepTitle, To: StepSigners, Seq: 1},
		{From: StepSigners, To: StepFields, Seq: 2},
		{From: StepFields, To: StepSubject, Seq: 3},
	}, events)
}

func TestControllerGoToSkipsGate(t *testing.T) {
	store := NewEntityStore(draftSeed())
	c := NewController(store.Snapshot(), nil)

	require.NoError(t, c.GoTo(StepSubject))
	assert.Equal(t, StepSubject, c.Current())

	require.NoError(t, c.GoToPosition(2))
	assert.Equal(t, StepSigners, c.Current())
	assert.Equal(t, uint64(2), c.Seq())
}

func TestControllerGoToSameStepPublishesNothing(t *testing.T) {
	c := newSeededController(stepPtr(StepFields))
	calls := 0
	c.Subscribe(func(StepChanged) { calls++ })

	require.NoError(t, c.GoTo(StepFields))
	assert.Zero(t, calls)
	assert.Zero(t, c.Seq())
}

func TestControllerRejectsUnknownSteps(t *testing.T) {
	c := newSeededController(nil)
	assert.ErrorIs(t, c.GoTo(Step("preview")), ErrUnknownStep)
	assert.ErrorIs(t, c.GoToPosition(7), ErrUnknownStep)
	assert.Equal(t, StepTitle, c.Current())
}

func TestControllerUnsubscribe(t *testing.T) {
	c := newSeededController(nil)
	calls := 0
	unsubscribe := c.Subscribe(func(StepChanged) { calls++ })
	c.Advance()
	unsubscribe()
	c.Advance()
	assert.Equal(t, 1, calls)
}
