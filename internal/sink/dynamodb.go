package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"fanout/pkg/models"
)

// DynamoDBSink writes one item per record with PutItem, which replaces any
// item with the same primary key. The table's partition key must be the
// configured key field.
type DynamoDBSink struct {
	client   dynamodbiface.DynamoDBAPI
	keyField string
	// pingTable is the table described by Ping.
	pingTable string
}

func NewDynamoDBSink(client dynamodbiface.DynamoDBAPI, keyField, pingTable string) *DynamoDBSink {
	return &DynamoDBSink{client: client, keyField: keyField, pingTable: pingTable}
}

func (s *DynamoDBSink) Name() string {
	return "dynamodb"
}

func (s *DynamoDBSink) Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error {
	if err := checkRecord(table, rec); err != nil {
		return err
	}

	item, err := dynamodbattribute.MarshalMap(models.MapNumbers(rec.Item, toDynamoNumber))
	if err != nil {
		return permanent(ErrMalformedRecord, err)
	}

	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return classifyDynamoDBError(fmt.Errorf("put item into %s failed: %w", table, err))
	}
	return nil
}

func (s *DynamoDBSink) Get(ctx context.Context, table, key string) (map[string]interface{}, bool, error) {
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]*dynamodb.AttributeValue{
			s.keyField: {S: aws.String(key)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("get item from %s failed: %w", table, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	dec := dynamodbattribute.NewDecoder(func(d *dynamodbattribute.Decoder) {
		d.UseNumber = true
	})
	var item map[string]interface{}
	if err := dec.Decode(&dynamodb.AttributeValue{M: out.Item}, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return models.MapLeaves(item, fromDynamoNumber).(map[string]interface{}), true, nil
}

// toDynamoNumber keeps the exact digits in the N attribute.
func toDynamoNumber(n json.Number) interface{} {
	return dynamodbattribute.Number(n.String())
}

func fromDynamoNumber(v interface{}) interface{} {
	if n, ok := v.(dynamodbattribute.Number); ok {
		return json.Number(n.String())
	}
	return v
}

func (s *DynamoDBSink) Ping(ctx context.Context) error {
	out, err := s.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.pingTable),
	})
	if err != nil {
		return err
	}
	if status := aws.StringValue(out.Table.TableStatus); status != dynamodb.TableStatusActive &&
		status != dynamodb.TableStatusUpdating {
		return fmt.Errorf("table %s is %s", s.pingTable, status)
	}
	return nil
}

func (s *DynamoDBSink) Close(context.Context) error {
	return nil
}

func classifyDynamoDBError(err error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return transient(err)
	}

	switch aerr.Code() {
	case dynamodb.ErrCodeResourceNotFoundException:
		return permanent(ErrTargetNotFound, err)
	case "ValidationException", dynamodb.ErrCodeConditionalCheckFailedException:
		return permanent(ErrMalformedRecord, err)
	default:
		return transient(err)
	}
}
