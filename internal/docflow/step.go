package docflow

import (
	"errors"
	"strings"

	"docprep/api/internal/domain"
)

// Step identifies one stage of document preparation.
type Step string

const (
	StepTitle   Step = "title"
	StepSigners Step = "signers"
	StepFields  Step = "fields"
	StepSubject Step = "subject"
)

var ErrUnknownStep = errors.New("unknown step")

// Steps lists every step in workflow order.
var Steps = []Step{StepTitle, StepSigners, StepFields, StepSubject}

// StepInfo is what the step indicator shows for a step.
type StepInfo struct {
	Title       string
	Description string
	Position    int
}

var stepInfo = map[Step]StepInfo{
	StepTitle: {
		Title:       "Add Title",
		Description: "Add the title to the document.",
		Position:    1,
	},
	StepSigners: {
		Title:       "Add Signers",
		Description: "Add the people who will sign the document.",
		Position:    2,
	},
	StepFields: {
		Title:       "Add Fields",
		Description: "Add all relevant fields for each recipient.",
		Position:    3,
	},
	StepSubject: {
		Title:       "Add Subject",
		Description: "Add the subject and message you wish to send to signers.",
		Position:    4,
	},
}

// Valid reports whether s is one of the four steps.
func (s Step) Valid() bool {
	_, ok := stepInfo[s]
	return ok
}

// Info returns the display metadata of s.
func (s Step) Info() StepInfo {
	return stepInfo[s]
}

// Position is the 1-based index of the step in the indicator, or 0 for an
// unknown step.
func (s Step) Position() int {
	return stepInfo[s].Position
}

func (s Step) String() string {
	return string(s)
}

// Next returns the step after s. The second result is false when s is the
// last step or unknown.
func (s Step) Next() (Step, bool) {
	pos := s.Position()
	if pos == 0 || pos >= len(Steps) {
		return s, false
	}
	return Steps[pos], true
}

// ParseStep recognizes a step name such as the value of a ?step= query.
func ParseStep(raw string) (Step, bool) {
	step := Step(strings.ToLower(strings.TrimSpace(raw)))
	if !step.Valid() {
		return "", false
	}
	return step, true
}

// StepFromPosition maps a 1-based indicator position back to its step.
func StepFromPosition(position int) (Step, error) {
	if position < 1 || position > len(Steps) {
		return "", ErrUnknownStep
	}
	return Steps[position-1], nil
}

// ResolveInitialStep picks the step a workflow opens on. A requested step is
// honoured unless it needs recipients (fields, subject) and there are none;
// otherwise drafts open on title and everything else on signers.
func ResolveInitialStep(status domain.DocumentStatus, requested *Step, recipientCount int) Step {
	if requested != nil && requested.Valid() {
		needsRecipients := *requested == StepFields || *requested == StepSubject
		if !(needsRecipients && recipientCount == 0) {
			return *requested
		}
	}
	if status == domain.StatusDraft {
		return StepTitle
	}
	return StepSigners
}
