package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type fakeIDGen struct {
	id  string
	err error
}

func (g fakeIDGen) NewID() (string, error) {
	return g.id, g.err
}

// pageScript decides how a fake page behaves for a given URL.
type pageScript struct {
	gotoErr   error
	shotErr   error
	panicMsg  string
	blockOnGo chan struct{}
}

type fakeLauncher struct {
	mu       sync.Mutex
	err      error
	scripts  map[string]pageScript
	launches int
	sessions []*fakeSession
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{scripts: map[string]pageScript{}}
}

func (l *fakeLauncher) Launch(_ context.Context) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	s := &fakeSession{launcher: l}
	l.sessions = append(l.sessions, s)
	return s, nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

type fakeSession struct {
	launcher *fakeLauncher
	mu       sync.Mutex
	pages    []*fakePage
	closed   bool
	open     int
	maxOpen  int
	visited  []string
}

func (s *fakeSession) NewPage(_ context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &fakePage{session: s}
	s.pages = append(s.pages, p)
	s.open++
	if s.open > s.maxOpen {
		s.maxOpen = s.open
	}
	return p, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) allPagesClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if !p.closed {
			return false
		}
	}
	return true
}

type fakePage struct {
	session *fakeSession
	url     string
	closed  bool
}

func (p *fakePage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	p.url = url
	p.session.mu.Lock()
	p.session.visited = append(p.session.visited, url)
	p.session.mu.Unlock()

	script := p.session.launcher.scriptFor(url)
	if script.panicMsg != "" {
		panic(script.panicMsg)
	}
	if script.blockOnGo != nil {
		select {
		case <-script.blockOnGo:
		case <-ctx.Done():
			return &PageError{Op: "navigate", URL: url, Err: ctx.Err()}
		}
	}
	if script.gotoErr != nil {
		var pageErr *PageError
		if errors.As(script.gotoErr, &pageErr) {
			return script.gotoErr
		}
		return &PageError{Op: "navigate", URL: url, Err: script.gotoErr}
	}
	_ = timeout
	return nil
}

func (p *fakePage) Screenshot(_ context.Context) ([]byte, error) {
	script := p.session.launcher.scriptFor(p.url)
	if script.shotErr != nil {
		return nil, &PageError{Op: "screenshot", URL: p.url, Err: script.shotErr}
	}
	return []byte("png:" + p.url), nil
}

func (p *fakePage) Close() error {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.session.open--
	}
	return nil
}

func (l *fakeLauncher) visitedCount() int {
	l.mu.Lock()
	sessions := append([]*fakeSession(nil), l.sessions...)
	l.mu.Unlock()
	total := 0
	for _, s := range sessions {
		s.mu.Lock()
		total += len(s.visited)
		s.mu.Unlock()
	}
	return total
}

func (l *fakeLauncher) scriptFor(url string) pageScript {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scripts[url]
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = buf.Bytes()
	return "memory://" + path, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeRecorder struct {
	mu      sync.Mutex
	batches []Batch
	err     error
}

func (r *fakeRecorder) RecordBatch(_ context.Context, batch Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	return r.err
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []any
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("msg-%d", len(p.payloads)), nil
}
