package normalize

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPositionData means the position record is missing or carries
	// unparseable, non-finite or out-of-range coordinates.
	ErrInvalidPositionData = errors.New("invalid position data")

	// ErrMalformedUpstreamShape means the body is not JSON or lacks the field
	// the request kind expects.
	ErrMalformedUpstreamShape = errors.New("malformed upstream shape")

	// ErrEmptyResult is a valid but empty answer. Views render it as
	// "none scheduled" rather than as a failure.
	ErrEmptyResult = errors.New("empty result")

	// ErrNoUpcomingPasses is the empty result of a visual passes query.
	ErrNoUpcomingPasses = fmt.Errorf("no upcoming passes: %w", ErrEmptyResult)
)

// ReportedError is an error message the upstream API returned inside a
// successful response body, e.g. an invalid key or an exhausted quota.
type ReportedError struct {
	Message string
}

func (e *ReportedError) Error() string {
	return "upstream reported error: " + e.Message
}
