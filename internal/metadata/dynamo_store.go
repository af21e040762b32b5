// Package metadata provides the upload metadata record stores: DynamoDB and
// NATS JetStream KV. Callers treat writes as best-effort.
package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/langbridge/speech-service/internal/core"
)

// dynamoAPI is the subset of the DynamoDB client used by the store, extracted
// so tests can substitute a double.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// dynamoItem is the table row shape. The upload time is stored as an RFC 3339
// string rather than a native time value.
type dynamoItem struct {
	FileKey          string `dynamodbav:"file_key"`
	OriginalFilename string `dynamodbav:"original_filename"`
	Status           string `dynamodbav:"status"`
	UploadTime       string `dynamodbav:"upload_time"`
	Stage            string `dynamodbav:"stage"`
}

// DynamoStore implements core.MetadataStore on a DynamoDB table keyed by
// file_key.
type DynamoStore struct {
	client dynamoAPI
	table  string
}

// NewDynamoStore creates a store writing to the given table.
func NewDynamoStore(client *dynamodb.Client, table string) *DynamoStore {
	return newDynamoStore(client, table)
}

func newDynamoStore(client dynamoAPI, table string) *DynamoStore {
	return &DynamoStore{
		client: client,
		table:  table,
	}
}

// Record writes one upload metadata item.
func (d *DynamoStore) Record(ctx context.Context, rec core.UploadRecord) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		FileKey:          rec.FileKey,
		OriginalFilename: rec.OriginalFilename,
		Status:           rec.Status,
		UploadTime:       rec.UploadTime.UTC().Format(time.RFC3339),
		Stage:            rec.Stage,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata item for '%s': %w", rec.FileKey, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put metadata item for '%s' to table '%s': %w", rec.FileKey, d.table, err)
	}

	return nil
}
