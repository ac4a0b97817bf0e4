package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/digital-marketplace/internal/aws"
	"github.com/imrishuroy/digital-marketplace/internal/moderation"
)

const (
	batchGetLimit    = 100
	batchGetAttempts = 5
)

var (
	// ErrProductNotFound is returned when no product matches (or the caller
	// does not own it, for owner-scoped writes).
	ErrProductNotFound = errors.New("product not found")
	// ErrStatusMismatch is returned when a conditional status update lost
	// against a concurrent change.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
)

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	backoff   time.Duration
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		backoff:   50 * time.Millisecond,
	}
}

// Create stores a new product listing. Listings always start pending and
// not terminated; ProductID is generated when empty.
func (s *Store) Create(ctx context.Context, p Product) (*Product, error) {
	if p.ProductID == "" {
		p.ProductID = uuid.NewString()
	}
	now := s.nowFunc().UTC()
	p.Status = moderation.ProductPending
	p.Terminated = false
	p.CreatedAt = now
	p.UpdatedAt = now

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(product_id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}
	return &p, nil
}

// Get fetches a product by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       productKey(productID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// BatchGet fetches the current state of every given product id with
// consistent reads. Missing ids are absent from the result map.
func (s *Store) BatchGet(ctx context.Context, productIDs []string) (map[string]Product, error) {
	seen := make(map[string]struct{}, len(productIDs))
	keys := make([]map[string]types.AttributeValue, 0, len(productIDs))
	for _, id := range productIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, productKey(id))
	}

	result := make(map[string]Product, len(keys))
	for start := 0; start < len(keys); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.batchGetChunk(ctx, keys[start:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) batchGetChunk(ctx context.Context, keys []map[string]types.AttributeValue, into map[string]Product) error {
	request := map[string]types.KeysAndAttributes{
		s.tableName: {Keys: keys, ConsistentRead: awsBool(true)},
	}
	for attempt := 0; attempt < batchGetAttempts && len(request) > 0; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}
		out, err := s.client.BatchGetItem(ctx, &dyn.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return fmt.Errorf("batch get items: %w", err)
		}
		var products []Product
		if err := attributevalue.UnmarshalListOfMaps(out.Responses[s.tableName], &products); err != nil {
			return fmt.Errorf("unmarshal products: %w", err)
		}
		for _, p := range products {
			into[p.ProductID] = p
		}
		request = out.UnprocessedKeys
	}
	if len(request) > 0 {
		return fmt.Errorf("batch get items: %d keys still unprocessed", len(request[s.tableName].Keys))
	}
	return nil
}

// ListApproved returns approved, non-terminated products filtered by
// category, ordered by creation time and truncated to the query limit.
func (s *Store) ListApproved(ctx context.Context, q ListQuery) ([]Product, error) {
	filter := "#s = :approved AND terminated <> :true"
	values := map[string]types.AttributeValue{
		":approved": &types.AttributeValueMemberS{Value: string(moderation.ProductApproved)},
		":true":     &types.AttributeValueMemberBOOL{Value: true},
	}
	if q.Category != "" {
		filter += " AND category = :cat"
		values[":cat"] = &types.AttributeValueMemberS{Value: string(q.Category)}
	}

	var (
		products []Product
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:                 &s.tableName,
			FilterExpression:          &filter,
			ExpressionAttributeNames:  map[string]string{"#s": "status"},
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		var page []Product
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		products = append(products, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.SliceStable(products, func(i, j int) bool {
		if q.Sort == SortAsc {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// UpdateStatus conditionally moves a live product from expected to next.
// Returns ErrStatusMismatch if the stored status differs, the product is
// terminated or it does not exist.
func (s *Store) UpdateStatus(ctx context.Context, productID string, expected, next moderation.ProductStatus) error {
	ua, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      productKey(productID),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ConditionExpression:      awsString("#s = :expected AND terminated <> :true"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(next)},
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
			":true":     &types.AttributeValueMemberBOOL{Value: true},
			":ua":       ua,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item (status): %w", err)
	}
	return nil
}

// Terminate removes a product from sale for good: it is flagged terminated
// and denied, which also drops it from listings.
func (s *Store) Terminate(ctx context.Context, productID string) error {
	ua, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      productKey(productID),
		UpdateExpression:         awsString("SET terminated = :true, #s = :denied, updated_at = :ua"),
		ConditionExpression:      awsString("attribute_exists(product_id)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":   &types.AttributeValueMemberBOOL{Value: true},
			":denied": &types.AttributeValueMemberS{Value: string(moderation.ProductDenied)},
			":ua":     ua,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrProductNotFound
		}
		return fmt.Errorf("update item (terminate): %w", err)
	}
	return nil
}

// Rename changes the name of a product owned by sellerID.
func (s *Store) Rename(ctx context.Context, productID, sellerID, name string) error {
	ua, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      productKey(productID),
		UpdateExpression:         awsString("SET #n = :name, updated_at = :ua"),
		ConditionExpression:      awsString("attribute_exists(product_id) AND seller_id = :sid"),
		ExpressionAttributeNames: map[string]string{"#n": "name"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name": &types.AttributeValueMemberS{Value: name},
			":sid":  &types.AttributeValueMemberS{Value: sellerID},
			":ua":   ua,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrProductNotFound
		}
		return fmt.Errorf("update item (rename): %w", err)
	}
	return nil
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
