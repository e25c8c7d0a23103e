package frame

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnsupported marks states the protocol was not designed to handle
var ErrUnsupported = errors.New("unsupported state")

// Step names a step of the frame protocol
type Step int

const (
	StepGateWait Step = iota
	StepAcquire
	StepGateReset
	StepRecord
	StepSubmit
	StepPresent
	StepRebuild
	StepCreateSlot
	StepDestroy
)

var stepNames = map[Step]string{
	StepGateWait:   "gate wait",
	StepAcquire:    "acquire",
	StepGateReset:  "gate reset",
	StepRecord:     "record",
	StepSubmit:     "submit",
	StepPresent:    "present",
	StepRebuild:    "rebuild",
	StepCreateSlot: "create slot",
	StepDestroy:    "destroy",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// StepError is a fatal failure of one step, rendering cannot continue after it
type StepError struct {
	Step Step
	Slot int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("frame: %s failed (slot %d): %v", e.Step, e.Slot, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Cause lets errors.Cause see through to the original failure
func (e *StepError) Cause() error {
	return e.Err
}

func fail(step Step, slot int, err error) error {
	return errors.WithStack(&StepError{Step: step, Slot: slot, Err: err})
}

// FailedStep returns the step a fatal error came from
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return 0, false
}
