package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/kimxines02/AstroNext/internal/n2yo"
	"github.com/kimxines02/AstroNext/internal/normalize"
)

// reason turns a fetch or normalization error into the message a view
// displays. Messages never include request URLs.
func reason(err error) string {
	var (
		reported *normalize.ReportedError
		transErr *n2yo.TransportError
		status   *n2yo.UpstreamStatusError
	)
	switch {
	case errors.As(err, &reported):
		return "Satellite service error: " + reported.Message
	case errors.As(err, &transErr) && transErr.Timeout, errors.Is(err, context.DeadlineExceeded):
		return "Satellite service timed out."
	case errors.As(err, &transErr):
		return "Could not reach the satellite service."
	case errors.As(err, &status):
		if status.Message != "" {
			return fmt.Sprintf("Satellite service returned %d: %s", status.StatusCode, status.Message)
		}
		return fmt.Sprintf("Satellite service returned %d.", status.StatusCode)
	case errors.Is(err, normalize.ErrInvalidPositionData):
		return "Received invalid position data."
	case errors.Is(err, normalize.ErrMalformedUpstreamShape):
		return "Received an unexpected response from the satellite service."
	case errors.Is(err, n2yo.ErrInvalidRequest):
		return "Invalid dashboard parameters."
	default:
		return "Failed to fetch data."
	}
}
