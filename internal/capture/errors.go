package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidURL is returned by NormalizeURL for empty or blank input.
var ErrInvalidURL = errors.New("invalid or empty URL")

// ErrBrowserSetup wraps failures to launch the browser or create its browsing context.
var ErrBrowserSetup = errors.New("browser setup failed")

// PageError is raised by a browser driver while navigating or capturing a page.
type PageError struct {
	Op      string
	URL     string
	Timeout bool
	Err     error
}

func (e *PageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s failed", e.Op, e.URL)
	}
	return e.Err.Error()
}

func (e *PageError) Unwrap() error {
	return e.Err
}

const (
	invalidURLMessage = "Invalid or empty URL"
	networkErrorCode  = "net::ERR_"
)

// conciseReason turns a per-URL failure into the message returned to clients.
func conciseReason(err error, navTimeout time.Duration) string {
	var pageErr *PageError
	if !errors.As(err, &pageErr) {
		return fmt.Sprintf("Unexpected error: %v", err)
	}
	text := pageErr.Error()
	switch {
	case strings.Contains(text, networkErrorCode):
		first, _, _ := strings.Cut(text, "\n")
		return strings.TrimSpace(first)
	case pageErr.Timeout:
		return timeoutMessage(navTimeout)
	default:
		return text
	}
}

func timeoutMessage(navTimeout time.Duration) string {
	return fmt.Sprintf("Timeout (%s) exceeded while loading.", navTimeout)
}

func setupFailureMessage(cause error) string {
	return fmt.Sprintf("Browser setup failed: %v", cause)
}

func abortedMessage(cause error) string {
	return fmt.Sprintf("Batch aborted: %v", cause)
}
