package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/digital-marketplace/internal/aws/awstest"
)

const (
	ordersTable = "orders"
	itemsTable  = "order_items"
)

func newTestStore(t *testing.T) (*Store, *awstest.Dynamo) {
	t.Helper()
	mock := awstest.NewDynamo()
	mock.CreateTable(ordersTable, "order_id", "")
	mock.CreateTable(itemsTable, "order_id", "product_id")
	store := NewStore(mock, ordersTable, itemsTable)
	store.nowFunc = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }
	return store, mock
}

func berlin() PaidDetails {
	return PaidDetails{
		CustomerEmail:   "buyer@example.com",
		BillingAddress:  Address{Name: "Ada", Street: "Unter den Linden 1", City: "Berlin", Country: "DE", PostalCode: "10117"},
		ShippingAddress: Address{Name: "Ada", Street: "Unter den Linden 1", City: "Berlin", Country: "DE", PostalCode: "10117"},
	}
}

func TestCreateWithLineItems_Success(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateWithLineItems(ctx, Order{OrderID: "o1", UserID: "u1", Total: "16.00", IsPaid: true}, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.False(t, created.IsPaid, "new orders always start unpaid")
	assert.Nil(t, created.ShippingAddress)
	assert.Nil(t, created.BillingAddress)

	got, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, got.IsPaid)
	assert.Nil(t, got.ShippingAddress)

	items, err := store.LineItems(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, "p2", items[1].ProductID)
	assert.Equal(t, 1, mock.Calls["TransactWriteItems"])
}

func TestCreateWithLineItems_FailureLeavesNothing(t *testing.T) {
	store, mock := newTestStore(t)
	mock.Errs["TransactWriteItems"] = errors.New("service unavailable")

	_, err := store.CreateWithLineItems(context.Background(), Order{OrderID: "o1", UserID: "u1"}, []string{"p1", "p2"})
	require.Error(t, err)
	assert.Empty(t, mock.Items(ordersTable))
	assert.Empty(t, mock.Items(itemsTable))
}

func TestCreateWithLineItems_DuplicateOrderID(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateWithLineItems(ctx, Order{OrderID: "o1", UserID: "u1"}, []string{"p1"})
	require.NoError(t, err)

	_, err = store.CreateWithLineItems(ctx, Order{OrderID: "o1", UserID: "u2"}, []string{"p9"})
	require.Error(t, err)
	assert.Len(t, mock.Items(itemsTable), 1, "line items of the rejected order must not be written")
}

func TestCreateWithLineItems_TooMany(t *testing.T) {
	store, _ := newTestStore(t)
	ids := make([]string, MaxLineItems+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
	}
	_, err := store.CreateWithLineItems(context.Background(), Order{OrderID: "o1", UserID: "u1"}, ids)
	assert.True(t, errors.Is(err, ErrTooManyItems))
}

func TestGetForUser_NotOwner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.CreateWithLineItems(ctx, Order{OrderID: "o1", UserID: "u1"}, []string{"p1"})
	require.NoError(t, err)

	got, err := store.GetForUser(ctx, "o1", "u2")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetForUser(ctx, "o1", "u1")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = store.GetForUser(ctx, "missing", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarkPaid_Transition(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.CreateWithLineItems(ctx, Order{OrderID: "o1", UserID: "u1"}, []string{"p1"})
	require.NoError(t, err)

	paid, err := store.MarkPaid(ctx, "o1", berlin())
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.ShippingAddress)
	assert.Equal(t, "Berlin", paid.ShippingAddress.City)
	require.NotNil(t, paid.BillingAddress)
	assert.Equal(t, "buyer@example.com", paid.CustomerEmail)
	require.NotNil(t, paid.PaidAt)

	got, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, "Berlin", got.ShippingAddress.City)
}

func TestMarkPaid_Twice(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.CreateWithLineItems(ctx, Order{OrderID: "o1", UserID: "u1"}, []string{"p1"})
	require.NoError(t, err)

	_, err = store.MarkPaid(ctx, "o1", berlin())
	require.NoError(t, err)

	second := berlin()
	second.ShippingAddress.City = "Hamburg"
	existing, err := store.MarkPaid(ctx, "o1", second)
	require.True(t, errors.Is(err, ErrAlreadyPaid), "got %v", err)
	require.NotNil(t, existing)
	assert.Equal(t, "Berlin", existing.ShippingAddress.City, "the first delivery's addresses are kept")
}

func TestMarkPaid_Concurrent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.CreateWithLineItems(ctx, Order{OrderID: "o1", UserID: "u1"}, []string{"p1"})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.MarkPaid(ctx, "o1", berlin())
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners, "exactly one delivery performs the transition")
}

func TestMarkPaid_NotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.MarkPaid(context.Background(), "nope", berlin())
	assert.True(t, errors.Is(err, ErrOrderNotFound), "got %v", err)
}

func TestMarkNotified_Once(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()
	_, err := store.CreateWithLineItems(ctx, Order{OrderID: "o1", UserID: "u1"}, []string{"p1"})
	require.NoError(t, err)

	require.NoError(t, store.MarkNotified(ctx, "o1"))
	require.NoError(t, store.MarkNotified(ctx, "o1"))

	got, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got.NotifiedAt)
	assert.Equal(t, 2, mock.Calls["UpdateItem"])
}

func TestGet_StoreError(t *testing.T) {
	store, mock := newTestStore(t)
	mock.Errs["GetItem"] = errors.New("dynamodb unavailable")
	_, err := store.Get(context.Background(), "o1")
	require.Error(t, err)
}
