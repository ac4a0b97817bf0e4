package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/digital-marketplace/internal/aws"
)

// MaxLineItems keeps order creation inside one TransactWriteItems call
// (100 actions, one of which is the order row).
const MaxLineItems = 99

var (
	// ErrOrderNotFound is returned when no order matches the id (and owner).
	ErrOrderNotFound = errors.New("order not found")
	// ErrAlreadyPaid is returned by MarkPaid when the order was paid before.
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrTooManyItems is returned when an order exceeds MaxLineItems.
	ErrTooManyItems = errors.New("too many line items")
)

// Store encapsulates operations on the orders and order_items tables.
type Store struct {
	client     aws.DynamoDBAPI
	tableName  string
	itemsTable string
	nowFunc    func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName, itemsTable string) *Store {
	return &Store{
		client:     client,
		tableName:  tableName,
		itemsTable: itemsTable,
		nowFunc:    time.Now,
	}
}

// CreateWithLineItems atomically creates an unpaid order and one line item per
// product id in a single TransactWriteItems call: either every row is written
// or none is. order.OrderID must be set by the caller; payment fields are
// cleared.
func (s *Store) CreateWithLineItems(ctx context.Context, order Order, productIDs []string) (*Order, error) {
	if len(productIDs) > MaxLineItems {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(productIDs), MaxLineItems)
	}

	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.IsPaid = false
	order.CustomerEmail = ""
	order.BillingAddress = nil
	order.ShippingAddress = nil
	order.PaidAt = nil
	order.NotifiedAt = nil

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order item: %w", err)
	}

	transactItems := make([]types.TransactWriteItem, 0, len(productIDs)+1)
	transactItems = append(transactItems, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	})
	for i, productID := range productIDs {
		lineMap, err := attributevalue.MarshalMap(LineItem{
			OrderID:   order.OrderID,
			ProductID: productID,
			Position:  i,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal line item: %w", err)
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName: &s.itemsTable,
				Item:      lineMap,
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return nil, fmt.Errorf("transaction canceled (order id collision?): %w", err)
		}
		return nil, fmt.Errorf("transact write: %w", err)
	}
	return &order, nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// GetForUser fetches an order only if it belongs to userID. An order owned by
// someone else is reported exactly like a missing one: (nil, nil).
func (s *Store) GetForUser(ctx context.Context, orderID, userID string) (*Order, error) {
	if orderID == "" || userID == "" {
		return nil, nil
	}
	o, err := s.Get(ctx, orderID)
	if err != nil || o == nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, nil
	}
	return o, nil
}

// LineItems returns the line items of an order in creation order.
func (s *Store) LineItems(ctx context.Context, orderID string) ([]LineItem, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.itemsTable,
		KeyConditionExpression: awsString("order_id = :oid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":oid": &types.AttributeValueMemberS{Value: orderID},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	var items []LineItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

// MarkPaid performs the unpaid -> paid transition. Payment flag, addresses,
// customer email and timestamps are written by one conditional UpdateItem
// guarded by is_paid = false, so concurrent or repeated deliveries cannot
// write the addresses twice.
//
// If the order was already paid the stored order is returned together with
// ErrAlreadyPaid. A missing order yields ErrOrderNotFound.
func (s *Store) MarkPaid(ctx context.Context, orderID string, d PaidDetails) (*Order, error) {
	now := s.nowFunc().UTC()
	billing, err := attributevalue.Marshal(d.BillingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal billing address: %w", err)
	}
	shipping, err := attributevalue.Marshal(d.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	ts, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 orderKey(orderID),
		UpdateExpression:    awsString("SET is_paid = :true, billing_address = :ba, shipping_address = :sa, customer_email = :em, paid_at = :ts, updated_at = :ts"),
		ConditionExpression: awsString("attribute_exists(order_id) AND is_paid = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":ba":    billing,
			":sa":    shipping,
			":em":    &types.AttributeValueMemberS{Value: d.CustomerEmail},
			":ts":    ts,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, fmt.Errorf("update item (mark paid): %w", err)
		}
		// either missing or paid by an earlier delivery
		existing, getErr := s.Get(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return existing, fmt.Errorf("%w: %s", ErrAlreadyPaid, orderID)
	}

	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// MarkNotified records that the order-received notification was accepted.
// It is a no-op if the order was already marked.
func (s *Store) MarkNotified(ctx context.Context, orderID string) error {
	ts, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 orderKey(orderID),
		UpdateExpression:    awsString("SET notified_at = :ts, updated_at = :ts"),
		ConditionExpression: awsString("attribute_exists(order_id) AND attribute_not_exists(notified_at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts": ts,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("update item (mark notified): %w", err)
	}
	return nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
