package scenario

import (
	"errors"
	"fmt"
	"log"
)

// AssertionMode controls whether failed expectations stop a scenario.
type AssertionMode int

const (
	// AssertionStrict fails the scenario on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs unmet expectations and keeps going.
	AssertionLogOnly
)

// ErrAssertion marks a failed expectation.
var ErrAssertion = errors.New("assertion failed")

// Assertions reports expectation results according to Mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf always returns an error. It is used for script mistakes, not for
// unmet expectations.
func (a Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports an unmet expectation. In log-only mode it is written to the
// logger and nil is returned.
func (a Assertions) Assertf(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrAssertion, fmt.Sprintf(format, args...))
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("expectation: %v", err)
		}
		return nil
	}
	return err
}
