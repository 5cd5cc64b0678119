package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "ideas/abc/plan.pdf", strings.NewReader("pdf bytes"), 9, "application/pdf"))

	rc, err := store.Get(ctx, "ideas/abc/plan.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(body))

	require.NoError(t, store.Delete(ctx, "ideas/abc/plan.pdf"))
	_, err = store.Get(ctx, "ideas/abc/plan.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.NoError(t, store.Delete(ctx, "ideas/abc/plan.pdf"))
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	err = store.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)
}
