package receipt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoDB
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoDB implements the Table interface on a DynamoDB table keyed by receipt_id
type DynamoDB struct {
	client DynamoAPI
	table  string
}

// NewDynamoDB creates a DynamoDB table from an AWS config
func NewDynamoDB(cfg aws.Config, table string) *DynamoDB {
	return NewDynamoDBWithClient(dynamodb.NewFromConfig(cfg), table)
}

// NewDynamoDBWithClient creates a DynamoDB table with a custom client for testing
func NewDynamoDBWithClient(client DynamoAPI, table string) *DynamoDB {
	return &DynamoDB{client: client, table: table}
}

// Put writes the receipt as a single item
func (d *DynamoDB) Put(ctx context.Context, receipt *Receipt) error {
	item, err := attributevalue.MarshalMap(receipt)
	if err != nil {
		return fmt.Errorf("marshaling receipt: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("putting item: %w", err)
	}
	return nil
}

// Scan reads one page of the table. Rows past the first 1 MB page are not returned.
func (d *DynamoDB) Scan(ctx context.Context) ([]*Receipt, error) {
	out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.table),
	})
	if err != nil {
		return nil, fmt.Errorf("scanning table: %w", err)
	}

	if len(out.LastEvaluatedKey) > 0 {
		slog.Warn("Receipt scan truncated to first page", "table", d.table, "returned", len(out.Items))
	}

	var rows []Receipt
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling items: %w", err)
	}

	receipts := make([]*Receipt, 0, len(rows))
	for i := range rows {
		receipts = append(receipts, &rows[i])
	}
	return receipts, nil
}

// Close is a no-op; the AWS client holds no resources
func (d *DynamoDB) Close() error {
	return nil
}
