package trends

import (
	"errors"
	"net"
	"net/url"
)

// ErrNetwork marks a raw-fetch failure that is recovered with synthetic data.
var ErrNetwork = errors.New("network failure")

// IsNetworkError reports whether err should be treated as a recoverable
// network failure rather than a fatal one.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
