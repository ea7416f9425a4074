package capture

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	maxBaseNameLen = 100
	localHost      = "local"
	imageExt       = ".png"
)

var invalidFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*$`)

// SanitizeFilename derives a filesystem-safe PNG name from a normalized URL and a timestamp.
// The URL is split as written, so hosts that fail strict parsing and
// percent-escapes in the path still shape the name.
func SanitizeFilename(normalized string, ts time.Time) string {
	host, path := splitURL(normalized)
	if host == "" {
		host = localHost
	}
	path = strings.Trim(path, "/")
	base := host
	if path != "" {
		base = host + "_" + path
	}
	safe := invalidFilenameChars.ReplaceAllString(base, "_")
	if len(safe) > maxBaseNameLen {
		safe = safe[:maxBaseNameLen]
	}
	return fmt.Sprintf("%s_%s%s", safe, formatStamp(ts), imageExt)
}

// splitURL returns the authority and path of a URL without unescaping or
// validating either. Query, fragment and trailing ;params are dropped.
func splitURL(raw string) (authority, path string) {
	rest := raw
	if i := strings.IndexByte(rest, ':'); i > 0 && schemePattern.MatchString(rest[:i]) {
		rest = rest[i+1:]
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		authority, rest = rest[:end], rest[end:]
	}
	if end := strings.IndexAny(rest, "?#"); end >= 0 {
		rest = rest[:end]
	}
	last := strings.LastIndexByte(rest, '/') + 1
	if i := strings.IndexByte(rest[last:], ';'); i >= 0 {
		rest = rest[:last+i]
	}
	return authority, rest
}

func formatStamp(ts time.Time) string {
	return fmt.Sprintf("%s_%06d", ts.Format("20060102_150405"), ts.Nanosecond()/int(time.Microsecond))
}

// Stamper hands out strictly increasing microsecond timestamps so filenames
// never repeat within the process, even for identical URLs captured concurrently.
type Stamper struct {
	clock Clock
	mu    sync.Mutex
	last  time.Time
}

// NewStamper wraps the clock.
func NewStamper(clock Clock) *Stamper {
	return &Stamper{clock: clock}
}

// Next returns the current time truncated to microseconds, bumped past the previous stamp.
func (s *Stamper) Next() time.Time {
	now := s.clock.Now().Truncate(time.Microsecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}
