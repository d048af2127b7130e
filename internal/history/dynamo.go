package history

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// DynamoDB key layout: one item per storage key.
const (
	pkPrefix = "HISTORY#"
	skList   = "LIST"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoBackend.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoBackend stores each key as a single zstd-compressed item.
// DynamoDB caps items at 400 KB, so it suits histories of small images;
// use S3Backend for full-resolution photos.
type DynamoBackend struct {
	client    DynamoAPI
	tableName string
	enc       *zstd.Encoder
	dec       *zstd.Decoder
}

var _ Backend = (*DynamoBackend)(nil)

// historyItem is the stored shape; PK and SK are added by putItem.
type historyItem struct {
	Payload   []byte `dynamodbav:"payload"`
	Encoding  string `dynamodbav:"encoding"`
	UpdatedAt int64  `dynamodbav:"updatedAt"`
}

func NewDynamoBackend(client DynamoAPI, tableName string) (*DynamoBackend, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &DynamoBackend{client: client, tableName: tableName, enc: enc, dec: dec}, nil
}

func historyPK(key string) string {
	return pkPrefix + key
}

func (d *DynamoBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pk := historyPK(key)
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &d.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skList},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skList, err)
	}
	if result.Item == nil {
		return nil, false, nil
	}

	var item historyItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skList, err)
	}
	if item.Encoding != "zstd" {
		return item.Payload, true, nil
	}
	data, err := d.dec.DecodeAll(item.Payload, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress PK=%s: %w", pk, err)
	}
	return data, true, nil
}

func (d *DynamoBackend) Put(ctx context.Context, key string, value []byte) error {
	pk := historyPK(key)
	compressed := d.enc.EncodeAll(value, nil)

	item, err := attributevalue.MarshalMap(historyItem{
		Payload:   compressed,
		Encoding:  "zstd",
		UpdatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: skList}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &d.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skList, err)
	}

	log.Debug().
		Str("table", d.tableName).
		Str("pk", pk).
		Int("raw_bytes", len(value)).
		Int("stored_bytes", len(compressed)).
		Msg("History written to DynamoDB")
	return nil
}
