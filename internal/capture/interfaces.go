package capture

import (
	"context"
	"io"
	"time"
)

// Launcher starts a browser session scoped to a single batch.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one browser process plus the browsing context its pages share.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab.
type Page interface {
	// Goto navigates and waits for the load event, bounded by timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	// Screenshot captures the full scrollable page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// BlobStore persists screenshot bytes and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ResultRecorder persists the per-URL outcome of a finished batch.
type ResultRecorder interface {
	RecordBatch(ctx context.Context, batch Batch) error
}

// Publisher pushes batch completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces batch IDs.
type IDGenerator interface {
	NewID() (string, error)
}
