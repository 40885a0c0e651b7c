package tracker

import (
	"fmt"
	"math"
	"time"
)

// The four failure kinds every tracker operation can produce. All of them are
// rejections with prior state intact; none is fatal. The HTTP layer recovers
// each kind into a structured response.

// NotFoundError means the referenced entity does not exist.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// ForbiddenError means the referenced entity exists but belongs to another
// user.
type ForbiddenError struct {
	Resource string
}

func (e *ForbiddenError) Error() string {
	return e.Resource + " does not belong to you"
}

// CooldownActiveError rejects a rule-violation attempt inside the 24h window.
// It is expected and recoverable; the message is shown to the user as
// guidance, with the remaining wait rounded up to whole hours.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("you already recorded a slip-up for this rule, try again in %d hour(s)", e.RemainingHours())
}

// RemainingHours is the remaining wait rounded up to whole hours for display.
func (e *CooldownActiveError) RemainingHours() int {
	return int(math.Ceil(e.Remaining.Hours()))
}

// InvalidDayError rejects a challenge-day check-off outside the valid,
// already-elapsed range.
type InvalidDayError struct {
	Day     int
	Elapsed int
}

func (e *InvalidDayError) Error() string {
	return fmt.Sprintf("day %d cannot be checked off yet (the challenge is on day %d)", e.Day, e.Elapsed)
}

// ValidationError rejects malformed input to a create or update call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}
