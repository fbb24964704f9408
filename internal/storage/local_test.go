package storage

import (
	"context"
	"testing"

	"socialapp/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	valid := []string{"a3f1.webp", "images/2024/a3f1.webp", "Abc-1_2.png"}
	for _, key := range valid {
		assert.NoError(t, ValidateKey(key), key)
	}

	invalid := []string{"", "/etc/passwd", "../secret", "images/../../x", "a//b", "a\\b", "./a", "a b"}
	for _, key := range invalid {
		assert.ErrorIs(t, ValidateKey(key), ErrInvalidKey, key)
	}
}

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("\x89PNG\r\n\x1a\nrest-of-image")
	require.NoError(t, store.Put(ctx, "images/one.png", data, "image/png"))

	blob, err := store.Get(ctx, "images/one.png")
	require.NoError(t, err)
	assert.Equal(t, data, blob.Data)
	assert.Equal(t, "image/png", blob.ContentType)

	require.NoError(t, store.Delete(ctx, "images/one.png"))
	_, err = store.Get(ctx, "images/one.png")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key succeeds.
	assert.NoError(t, store.Delete(ctx, "images/one.png"))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNew_SelectsDriver(t *testing.T) {
	store, err := New(context.Background(), &config.Config{BlobDriver: "local", BlobLocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(context.Background(), &config.Config{BlobDriver: "ftp"})
	assert.Error(t, err)

	s3, err := New(context.Background(), &config.Config{
		BlobDriver:    "s3",
		BlobBucket:    "images",
		BlobRegion:    "us-east-1",
		BlobEndpoint:  "http://localhost:9000",
		BlobAccessKey: "key",
		BlobSecretKey: "secret",
	})
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, s3)
}
