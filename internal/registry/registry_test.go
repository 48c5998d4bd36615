package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/habit-ml/internal/utils"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "models"))
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "m.model.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "m.model.json", []byte(`{"v":1}`)))
	require.NoError(t, store.Put(ctx, "m.model.json", []byte(`{"v":2}`)))

	data, err := store.Get(ctx, "m.model.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	size, err := ArtifactSize(ctx, store, "m.model.json")
	require.NoError(t, err)
	assert.EqualValues(t, 7, size)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "m.model.json", entries[0].Name())
}

func TestFileStoreMissingArtifact(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "absent_metadata.json")
	assert.True(t, errors.Is(err, utils.ErrArtifactNotFound))

	_, err = store.Size(context.Background(), "absent_metadata.json")
	assert.True(t, errors.Is(err, utils.ErrArtifactNotFound))
}

func TestStoresRejectPathNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape", "a/b", ".."} {
		err := store.Put(ctx, name, []byte("x"))
		assert.True(t, errors.Is(err, utils.ErrInvalidInput), "name %q", name)
		err = NewMemoryStore().Put(ctx, name, []byte("x"))
		assert.True(t, errors.Is(err, utils.ErrInvalidInput), "name %q", name)
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	payload := []byte("abc")
	require.NoError(t, store.Put(ctx, "a", payload))
	payload[0] = 'z'

	data, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.True(t, errors.Is(err, utils.ErrArtifactNotFound))
}

func TestVersionedNames(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	name := VersionedName(at)
	assert.Equal(t, "habit_success_model_20240310", name)
	assert.Equal(t, "habit_success_model_20240310.model.json", ModelArtifact(name))
	assert.Equal(t, "habit_success_model_20240310_metadata.json", MetadataArtifact(name))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "m.model.json", objectKey("", "m.model.json"))
	assert.Equal(t, "models/prod/m.model.json", objectKey("models/prod", "m.model.json"))
	assert.Equal(t, "models/m.model.json", objectKey("models/", "m.model.json"))
}

type recordingWriter struct {
	writeErr        error
	closed          bool
	cancelledBefore bool
	cancelled       *bool
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return len(p), nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	w.cancelledBefore = *w.cancelled
	return nil
}

func TestUploadCancelsBeforeCloseOnCopyFailure(t *testing.T) {
	cancelled := false
	w := &recordingWriter{writeErr: errors.New("connection reset"), cancelled: &cancelled}

	err := upload(w, func() { cancelled = true }, strings.NewReader("payload"))
	require.Error(t, err)
	assert.True(t, w.closed)
	assert.True(t, w.cancelledBefore, "writer must be cancelled before Close on a failed copy")

	cancelled = false
	w = &recordingWriter{cancelled: &cancelled}
	require.NoError(t, upload(w, func() { cancelled = true }, strings.NewReader("payload")))
	assert.True(t, w.closed)
	assert.False(t, w.cancelledBefore)
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a", []byte("x")))
	require.NoError(t, store.Delete(ctx, "a"))
	ok, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "a"), "deleting a missing artifact is not an error")
	assert.True(t, errors.Is(store.Delete(ctx, "../a"), utils.ErrInvalidInput))
}
