package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/digital-marketplace/internal/aws/awstest"
)

const table = "idempotency"

func newTestStore(t *testing.T) (*Store, *awstest.Dynamo) {
	t.Helper()
	mock := awstest.NewDynamo()
	mock.CreateTable(table, "idempotency_key", "")
	s := NewStore(mock, table, 48*time.Hour)
	s.nowFunc = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestCreateIfNotExists_Get_MarkDone(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()
	key := OrderReceivedKey("order-123")

	created, err := s.CreateIfNotExists(ctx, key, "order-123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateIfNotExists(ctx, key, "order-123")
	require.NoError(t, err)
	assert.False(t, created, "duplicate create must report the existing record")

	rec, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, "order-123", rec.Subject)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC).Unix(), rec.ExpiresAt)

	require.NoError(t, s.MarkDone(ctx, key, "ses-1"))

	item := mock.Item(table, recordKey(key))
	require.NotNil(t, item)
	st, ok := item["status"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, StatusDone, st.Value)

	// a done record cannot be failed afterwards
	err = s.MarkFailed(ctx, key, "late failure")
	assert.True(t, errors.Is(err, ErrConditionFailed))
}

func TestMarkFailed_Reclaim(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := OrderReceivedKey("o1")

	_, err := s.CreateIfNotExists(ctx, key, "o1")
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, key, "ses throttled"))

	rec, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "ses throttled", rec.Note)

	require.NoError(t, s.Reclaim(ctx, key, rec.Attempts+1))
	assert.True(t, errors.Is(s.Reclaim(ctx, key, 3), ErrConditionFailed), "only one consumer wins the reclaim")

	rec, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
}

func TestGet_Missing(t *testing.T) {
	s, _ := newTestStore(t)
	rec, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCreateIfNotExists_StoreError(t *testing.T) {
	s, mock := newTestStore(t)
	mock.Errs["PutItem"] = errors.New("throttled")
	_, err := s.CreateIfNotExists(context.Background(), "k", "o")
	require.Error(t, err)
}
