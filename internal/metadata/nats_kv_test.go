// Package metadata_test tests the NATS KV metadata store against an
// in-process server.
package metadata_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/langbridge/speech-service/internal/core"
	"github.com/langbridge/speech-service/internal/metadata"
)

func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func TestNatsKVStore_Record(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := metadata.NewNatsKVStore(jetstreamContext, "upload-metadata")
	require.NoError(t, err)

	rec := core.UploadRecord{
		FileKey:          "20240102T030405Z_ab12.mp3",
		OriginalFilename: "talk.mp3",
		Status:           "uploaded",
		UploadTime:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Stage:            "upload",
	}

	err = store.Record(context.Background(), rec)
	require.NoError(t, err)

	keyValue, err := jetstreamContext.KeyValue("upload-metadata")
	require.NoError(t, err)

	entry, err := keyValue.Get(rec.FileKey)
	require.NoError(t, err)

	var stored core.UploadRecord

	require.NoError(t, json.Unmarshal(entry.Value(), &stored))
	require.Equal(t, rec, stored)
}

func TestNatsKVStore_BindsToExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	_, err = metadata.NewNatsKVStore(jetstreamContext, "upload-metadata")
	require.NoError(t, err)

	second, err := metadata.NewNatsKVStore(jetstreamContext, "upload-metadata")
	require.NoError(t, err)

	err = second.Record(context.Background(), core.UploadRecord{
		FileKey:    "key.mp3",
		Status:     "uploaded",
		UploadTime: time.Now().UTC(),
		Stage:      "upload",
	})
	require.NoError(t, err)
}
