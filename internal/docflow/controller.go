package docflow

import (
	"sync"
)

// StepChanged is published on every change of the current step. Seq counts
// transitions since the controller was created, starting at 1.
type StepChanged struct {
	From Step
	To   Step
	Seq  uint64
}

// Controller owns the current step of a preparation workflow.
type Controller struct {
	mu          sync.Mutex
	current     Step
	seq         uint64
	subscribers map[int]func(StepChanged)
	nextSubID   int
}

// NewController resolves the opening step once from the seeded document and
// recipients. requested is the deep-linked step, if any.
func NewController(doc Snapshot, requested *Step) *Controller {
	return &Controller{
		current:     ResolveInitialStep(doc.Document.Status, requested, len(doc.Recipients)),
		subscribers: make(map[int]func(StepChanged)),
	}
}

// Current returns the step the workflow is on.
func (c *Controller) Current() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Seq returns the number of step transitions so far.
func (c *Controller) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Subscribe registers fn for step changes. Subscribers run synchronously on
// the goroutine that changed the step, in no particular order; they must not
// block. The returned func removes the subscription.
func (c *Controller) Subscribe(fn func(StepChanged)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// GoTo moves to step without consulting the gate; the step indicator only
// offers steps that are already rendered.
func (c *Controller) GoTo(step Step) error {
	if !step.Valid() {
		return ErrUnknownStep
	}
	c.mu.Lock()
	event, subs, changed := c.setLocked(step)
	c.mu.Unlock()
	if changed {
		publish(subs, event)
	}
	return nil
}

// GoToPosition navigates by 1-based indicator position.
func (c *Controller) GoToPosition(position int) error {
	step, err := StepFromPosition(position)
	if err != nil {
		return err
	}
	return c.GoTo(step)
}

// Advance moves to the next step. It reports false, and changes nothing,
// once the workflow is on its last step.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	next, ok := c.current.Next()
	if !ok {
		c.mu.Unlock()
		return false
	}
	event, subs, _ := c.setLocked(next)
	c.mu.Unlock()
	publish(subs, event)
	return true
}

func (c *Controller) setLocked(to Step) (StepChanged, []func(StepChanged), bool) {
	from := c.current
	if from == to {
		return StepChanged{}, nil, false
	}
	c.current = to
	c.seq++
	subs := make([]func(StepChanged), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	return StepChanged{From: from, To: to, Seq: c.seq}, subs, true
}

func publish(subs []func(StepChanged), event StepChanged) {
	for _, fn := range subs {
		fn(event)
	}
}
