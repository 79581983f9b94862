package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "imports/org-1/a.csv", strings.NewReader("sku,name\n"), "text/csv"))
	require.NoError(t, store.Put(ctx, "imports/org-2/b.csv", strings.NewReader("x"), "text/csv"))

	rc, err := store.Get(ctx, "imports/org-1/a.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "sku,name\n", string(data))

	objs, err := store.List(ctx, "imports/org-1/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	require.Equal(t, "imports/org-1/a.csv", objs[0].Key)
	require.EqualValues(t, 9, objs[0].Size)

	require.NoError(t, store.Delete(ctx, "imports/org-1/a.csv"))
	require.NoError(t, store.Delete(ctx, "imports/org-1/a.csv"))
	_, err = store.Get(ctx, "imports/org-1/a.csv")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.csv", strings.NewReader("x"), "")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = store.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestCleanKey(t *testing.T) {
	key, err := CleanKey(" /imports//org/file.xlsx ")
	require.NoError(t, err)
	require.Equal(t, "imports/org/file.xlsx", key)

	_, err = CleanKey("imports/../../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidKey)
}
