package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zlnvch/notes/store"
)

func newDynamoDBClient(ctx context.Context, devMode bool, dynamodbEndpoint string) (*dynamodb.Client, error) {
	if devMode {
		// Dummy credentials and region for dynamodb-local
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}

		return dynamodb.New(dynamodb.Options{
			Credentials:      cfg.Credentials,
			Region:           cfg.Region,
			EndpointResolver: dynamodb.EndpointResolverFromURL(dynamodbEndpoint),
		}), nil
	}

	// Task role and regional endpoints
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg), nil
}

func getTables(ctx context.Context, client *dynamodb.Client) ([]string, error) {
	var tables []string
	paginator := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		tables = append(tables, page.TableNames...)
	}
	return tables, nil
}

func itemKey(pk string, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// getItem retrieves an item of type T by PK and SK
func getItem[T any](dynamoStore *DynamoNotesStore, ctx context.Context, pk string, sk string, consistentRead bool) (T, error) {
	var zero T

	resp, err := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(dynamoStore.tableName),
		Key:            itemKey(pk, sk),
		ConsistentRead: aws.Bool(consistentRead),
	})
	if err != nil {
		return zero, fmt.Errorf("GetItem failed: %w", err)
	}
	if resp.Item == nil {
		return zero, store.ErrItemNotFound
	}

	var item T
	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return zero, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return item, nil
}

// ensureItem inserts item unless an item with the same PK+SK exists, in which
// case the stored item is returned instead. The bool reports an insert.
func ensureItem[T any](dynamoStore *DynamoNotesStore, ctx context.Context, item T) (T, bool, error) {
	var zero T

	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return zero, false, fmt.Errorf("marshal error: %w", err)
	}
	pkAttr, okPK := avMap["PK"]
	skAttr, okSK := avMap["SK"]
	if !okPK || !okSK {
		return zero, false, errors.New("struct missing PK or SK field")
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Item:                avMap,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err == nil {
		return item, true, nil
	}

	var cce *types.ConditionalCheckFailedException
	if !errors.As(err, &cce) {
		return zero, false, fmt.Errorf("failed to put item: %w", err)
	}

	getResp, err := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Key:       map[string]types.AttributeValue{"PK": pkAttr, "SK": skAttr},
	})
	if err != nil {
		return zero, false, fmt.Errorf("failed to get existing item: %w", err)
	}
	if getResp.Item == nil {
		return zero, false, errors.New("item supposedly exists but GetItem returned nothing")
	}

	var existing T
	if err := attributevalue.UnmarshalMap(getResp.Item, &existing); err != nil {
		return zero, false, fmt.Errorf("failed to unmarshal existing item: %w", err)
	}
	return existing, false, nil
}

// queryAllByPK returns every item of type T under pk, ordered by SK.
func queryAllByPK[T any](dynamoStore *DynamoNotesStore, ctx context.Context, pk string, scanIndexForward bool) ([]T, error) {
	results := []T{}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(dynamoStore.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ScanIndexForward: aws.Bool(scanIndexForward),
	}

	paginator := dynamodb.NewQueryPaginator(dynamoStore.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}

		var pageItems []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page items: %w", err)
		}
		results = append(results, pageItems...)
	}

	return results, nil
}

// writeBatchRequests sends Put or Delete requests, retrying unprocessed items
// with exponential backoff until they all succeed or ctx ends.
func writeBatchRequests(dynamoStore *DynamoNotesStore, ctx context.Context, requests []types.WriteRequest) error {
	if len(requests) == 0 {
		return nil
	}

	backoff := 50 * time.Millisecond

	for {
		resp, err := dynamoStore.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				dynamoStore.tableName: requests,
			},
		})
		if err != nil {
			return fmt.Errorf("BatchWriteItem failed: %w", err)
		}

		requests = resp.UnprocessedItems[dynamoStore.tableName]
		if len(requests) == 0 {
			return nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%d writes left unprocessed: %w", len(requests), ctx.Err())
		case <-timer.C:
		}

		if backoff < time.Second {
			backoff *= 2
		}
	}
}

// deleteItemWithCondition deletes an item by PK and SK, only if conditionField
// equals expectedValue. An empty conditionField only requires the item to exist.
func deleteItemWithCondition(dynamoStore *DynamoNotesStore, ctx context.Context, pk string, sk string, conditionField string, expectedValue string) error {
	key := itemKey(pk, sk)

	input := &dynamodb.DeleteItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Key:                 key,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}
	if conditionField != "" {
		input.ConditionExpression = aws.String("attribute_exists(PK) AND #f = :val")
		input.ExpressionAttributeNames = map[string]string{"#f": conditionField}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":val": &types.AttributeValueMemberS{Value: expectedValue},
		}
	}

	_, err := dynamoStore.client.DeleteItem(ctx, input)
	if err == nil {
		return nil
	}

	var cce *types.ConditionalCheckFailedException
	if !errors.As(err, &cce) {
		return fmt.Errorf("delete failed: %w", err)
	}

	// Either missing or owned by someone else
	getResp, getErr := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Key:       key,
	})
	if getErr != nil {
		return fmt.Errorf("delete failed, and GetItem check also failed: %w", getErr)
	}
	if getResp.Item == nil {
		return store.ErrItemNotFound
	}
	return store.ErrConditionFailed
}

// batchDeletePartitionThrottled deletes every item under pk in 25-item batches,
// pausing so that a large account does not eat the table's write capacity.
func batchDeletePartitionThrottled(dynamoStore *DynamoNotesStore, ctx context.Context, pk string, throttle time.Duration) error {
	const queryPageSize int32 = 200

	var lastEvaluatedKey map[string]types.AttributeValue
	for {
		resp, err := dynamoStore.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(dynamoStore.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
			},
			ProjectionExpression: aws.String("PK, SK"),
			Limit:                aws.Int32(queryPageSize),
			ExclusiveStartKey:    lastEvaluatedKey,
		})
		if err != nil {
			return fmt.Errorf("query partition failed: %w", err)
		}

		delRequests := make([]types.WriteRequest, 0, len(resp.Items))
		for _, item := range resp.Items {
			pkAttr, okPK := item["PK"]
			skAttr, okSK := item["SK"]
			if !okPK || !okSK {
				continue
			}
			delRequests = append(delRequests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{"PK": pkAttr, "SK": skAttr},
				},
			})
		}

		for i := 0; i < len(delRequests); i += 25 {
			end := min(i+25, len(delRequests))

			startTime := time.Now()
			if err := writeBatchRequests(dynamoStore, ctx, delRequests[i:end]); err != nil {
				return fmt.Errorf("batch delete failed: %w", err)
			}

			if elapsed := time.Since(startTime); elapsed < throttle {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(throttle - elapsed):
				}
			}
		}

		lastEvaluatedKey = resp.LastEvaluatedKey
		if lastEvaluatedKey == nil {
			return nil
		}
	}
}

// updateItem overwrites fieldsToUpdate on an existing item and returns the
// item as stored afterwards. Keys are never updated.
func updateItem[T any](dynamoStore *DynamoNotesStore, ctx context.Context, item T, fieldsToUpdate []string) (T, error) {
	var zero T

	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return zero, fmt.Errorf("marshal error: %w", err)
	}
	pkAttr, okPK := avMap["PK"]
	skAttr, okSK := avMap["SK"]
	if !okPK || !okSK {
		return zero, errors.New("struct missing PK or SK field")
	}

	setExprs := ""
	removeExprs := ""
	exprAttrValues := make(map[string]types.AttributeValue)
	exprAttrNames := make(map[string]string)

	for _, field := range fieldsToUpdate {
		if field == "PK" || field == "SK" {
			continue
		}

		exprAttrNames["#"+field] = field
		val, ok := avMap[field]
		if !ok {
			// omitempty dropped it: clear the stored value too
			if removeExprs != "" {
				removeExprs += ", "
			}
			removeExprs += "#" + field
			continue
		}

		if setExprs != "" {
			setExprs += ", "
		}
		setExprs += fmt.Sprintf("#%s = :%s", field, field)
		exprAttrValues[":"+field] = val
	}

	updateExpr := ""
	if setExprs != "" {
		updateExpr = "SET " + setExprs
	}
	if removeExprs != "" {
		updateExpr += " REMOVE " + removeExprs
	}
	if updateExpr == "" {
		return zero, errors.New("no fields to update")
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(dynamoStore.tableName),
		Key:                      map[string]types.AttributeValue{"PK": pkAttr, "SK": skAttr},
		UpdateExpression:         aws.String(updateExpr),
		ExpressionAttributeNames: exprAttrNames,
		ConditionExpression:      aws.String("attribute_exists(PK) AND attribute_exists(SK)"),
		ReturnValues:             types.ReturnValueAllNew,
	}
	if len(exprAttrValues) > 0 {
		input.ExpressionAttributeValues = exprAttrValues
	}

	out, err := dynamoStore.client.UpdateItem(ctx, input)
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return zero, store.ErrItemNotFound
		}
		return zero, fmt.Errorf("update failed: %w", err)
	}

	var updated T
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return zero, fmt.Errorf("failed to unmarshal updated item: %w", err)
	}

	return updated, nil
}

// incrementCounter atomically adds count to a numeric field of an existing
// item. Missing items are not created, so a late update cannot resurrect a
// deleted user as a partial record.
func incrementCounter(dynamoStore *DynamoNotesStore, ctx context.Context, pk string, sk string, counterField string, count int) error {
	_, err := dynamoStore.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(dynamoStore.tableName),
		Key:              itemKey(pk, sk),
		UpdateExpression: aws.String("SET #c = if_not_exists(#c, :zero) + :val"),
		ExpressionAttributeNames: map[string]string{
			"#c": counterField,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":val":  &types.AttributeValueMemberN{Value: strconv.Itoa(count)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return fmt.Errorf("%w: PK=%s, SK=%s", store.ErrItemNotFound, pk, sk)
		}
		return fmt.Errorf("increment counter failed: %w", err)
	}

	return nil
}
