package adapters

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/bidmesh/auctioncore/internal/models"
)

// StatusError encodes a non-2xx HTTP response from an adapter endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return models.NoBidStatusPrefix + itoa3(e.Code)
}

func itoa3(n int) string {
	// status codes are always three digits
	return string([]byte{byte('0' + n/100), byte('0' + n/10%10), byte('0' + n%10)})
}

// IsTransient classifies an error as transient. Transient failures are the
// ones the waterfall may reasonably retry on a later adapter without
// suspecting a systemic problem: timeouts, cancellations, network errors and
// 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return false
}

// NoBidReason maps an adapter call error to the normalized no-bid taxonomy
// used for breaker accounting and landscape analytics.
func NoBidReason(err error) string {
	if err == nil {
		return models.NoBidNoFill
	}
	if errors.Is(err, ErrNoBid) {
		return models.NoBidNoFill
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NoBidTimeout
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return models.NoBidTimeout
		}
		return models.NoBidNetworkError
	}
	if strings.HasPrefix(err.Error(), models.NoBidStatusPrefix) {
		return err.Error()
	}
	return models.NoBidError
}

// IsFailure reports whether an adapter call outcome counts against the
// adapter's circuit breaker. Explicit no-bids are healthy responses and do
// not count; everything else does.
func IsFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrNoBid)
}
