// Package accounts stores marketplace users and their seller status.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/digital-marketplace/internal/aws"
	"github.com/imrishuroy/digital-marketplace/internal/moderation"
)

var (
	// ErrUserNotFound is returned when no user matches the id.
	ErrUserNotFound = errors.New("user not found")
	// ErrStatusMismatch is returned when the stored seller status changed
	// since it was read.
	ErrStatusMismatch = errors.New("seller status mismatch")
)

// User represents the item stored in the users table.
type User struct {
	UserID       string                  `dynamodbav:"user_id" json:"id"` // PK
	Email        string                  `dynamodbav:"email" json:"email"`
	SellerStatus moderation.SellerStatus `dynamodbav:"seller_status" json:"sellerStatus"`
	CreatedAt    time.Time               `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt    time.Time               `dynamodbav:"updated_at" json:"updatedAt"`
}

// IsSeller reports whether the user may list products.
func (u User) IsSeller() bool {
	return u.SellerStatus == moderation.SellerApproved
}

// Store encapsulates operations on the users table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new users Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

// Ensure creates the user row on first sight and returns the stored user.
// Existing rows are returned untouched.
func (s *Store) Ensure(ctx context.Context, userID, email string) (*User, error) {
	now := s.nowFunc().UTC()
	u := User{
		UserID:       userID,
		Email:        email,
		SellerStatus: moderation.SellerNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(user_id)"),
	})
	if err == nil {
		return &u, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return nil, fmt.Errorf("put item: %w", err)
	}
	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return existing, nil
}

// Get fetches a user by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, userID string) (*User, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       userKey(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var u User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if u.SellerStatus == "" {
		u.SellerStatus = moderation.SellerNone
	}
	return &u, nil
}

// UpdateSellerStatus conditionally moves a user's seller status from
// expected to next.
func (s *Store) UpdateSellerStatus(ctx context.Context, userID string, expected, next moderation.SellerStatus) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 userKey(userID),
		UpdateExpression:    awsString("SET seller_status = :new, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(user_id) AND seller_status = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(next)},
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
			":ua":       &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return fmt.Errorf("update item (seller status): %w", err)
	}
	existing, getErr := s.Get(ctx, userID)
	if getErr != nil {
		return getErr
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return fmt.Errorf("%w: %s is %s", ErrStatusMismatch, userID, existing.SellerStatus)
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func awsString(s string) *string { return &s }
