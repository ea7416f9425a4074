// Package mirror fans screenshot writes out to a primary store and best-effort replicas.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/webshot/internal/capture"
)

// BlobStore writes to the primary store first. Replica failures are logged and
// never fail the write, so the local copy stays the source of truth.
type BlobStore struct {
	primary  capture.BlobStore
	replicas []capture.BlobStore
	logger   *zap.Logger
}

// New builds a mirrored store. Nil replicas are skipped.
func New(primary capture.BlobStore, logger *zap.Logger, replicas ...capture.BlobStore) (*BlobStore, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	live := make([]capture.BlobStore, 0, len(replicas))
	for _, r := range replicas {
		if r != nil {
			live = append(live, r)
		}
	}
	return &BlobStore{primary: primary, replicas: live, logger: logger}, nil
}

// PutObject buffers data once and writes it to every store.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, data io.Reader) (string, error) {
	if len(s.replicas) == 0 {
		return s.primary.PutObject(ctx, name, contentType, data)
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	uri, err := s.primary.PutObject(ctx, name, contentType, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	for _, replica := range s.replicas {
		replicaURI, rerr := replica.PutObject(ctx, name, contentType, bytes.NewReader(buf))
		if rerr != nil {
			s.logger.Warn("replica write failed", zap.String("object", name), zap.Error(rerr))
			continue
		}
		s.logger.Debug("replica written", zap.String("uri", replicaURI))
	}
	return uri, nil
}
