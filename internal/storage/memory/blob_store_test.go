package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "b.png", "image/png", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://b.png", uri)

	payload[0] = 'C'
	got, ok := store.Get("b.png")
	require.True(t, ok)
	assert.Equal(t, "content", string(got))

	got[0] = 'X'
	again, _ := store.Get("b.png")
	assert.Equal(t, "content", string(again))
}

func TestBlobStoreKeysSorted(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	for _, k := range []string{"c.png", "a.png", "b.png"} {
		_, err := store.PutObject(ctx, k, "image/png", bytes.NewReader([]byte(k)))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, store.Keys())

	_, ok := store.Get("missing.png")
	assert.False(t, ok)
	_, err := store.PutObject(ctx, "", "image/png", bytes.NewReader(nil))
	assert.Error(t, err)
}
