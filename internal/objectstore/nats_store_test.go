// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/variation-service/internal/objectstore"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func setupJetStream(t *testing.T) nats.JetStreamContext {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	return jetstreamContext
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store, err := objectstore.New(setupJetStream(t), "VARIATIONS")
	require.NoError(t, err)

	ctx := context.Background()
	key := "0b6d3c2e-6f0e-4c53-9f55-5b8f3f6a2d10.wav"
	uploadData := []byte("RIFF....WAVEfmt final variation")

	require.NoError(t, store.Upload(ctx, key, uploadData))

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uploadData, downloadData)
}

func TestNatsObjectStore_BindsToExistingBucket(t *testing.T) {
	t.Parallel()

	jetstreamContext := setupJetStream(t)
	ctx := context.Background()

	first, err := objectstore.New(jetstreamContext, "VARIATIONS")
	require.NoError(t, err)
	require.NoError(t, first.Upload(ctx, "kept.wav", []byte("kept")))

	second, err := objectstore.New(jetstreamContext, "VARIATIONS")
	require.NoError(t, err)

	data, err := second.Download(ctx, "kept.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("kept"), data)
}

func TestNatsObjectStore_DownloadMissing(t *testing.T) {
	t.Parallel()

	store, err := objectstore.New(setupJetStream(t), "VARIATIONS")
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "missing.wav")
	require.ErrorIs(t, err, nats.ErrObjectNotFound)
}
