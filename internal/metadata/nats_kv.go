package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/langbridge/speech-service/internal/core"
)

// NatsKVStore implements core.MetadataStore on a NATS JetStream key-value
// bucket, storing each record as JSON under its file key.
type NatsKVStore struct {
	bucket string
	kv     nats.KeyValue
}

// NewNatsKVStore creates the KV bucket if needed, binding to it when it
// already exists.
func NewNatsKVStore(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsKVStore, error) {
	keyValue, err := jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Upload metadata for the %s bucket.", bucketName),
		History:     1,
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		keyValue, err = jetstreamContext.KeyValue(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to create or bind KV bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsKVStore{
		bucket: bucketName,
		kv:     keyValue,
	}, nil
}

// Record writes one upload metadata record.
func (n *NatsKVStore) Record(_ context.Context, rec core.UploadRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata record for '%s': %w", rec.FileKey, err)
	}

	_, err = n.kv.Put(rec.FileKey, data)
	if err != nil {
		return fmt.Errorf("failed to put metadata record for '%s' to bucket '%s': %w", rec.FileKey, n.bucket, err)
	}

	return nil
}
