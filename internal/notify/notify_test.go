package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPNotifier_OrderReceived(t *testing.T) {
	var got EmailData
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "tok", r.Header.Get(TokenHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, "tok", time.Second)
	err := n.OrderReceived(context.Background(), EmailData{
		OrderID:             "o1",
		EmailTo:             "ada@example.com",
		OrderDate:           "2026-10-01T12:00:00Z",
		ShippingAddressCity: "Berlin",
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", got.OrderID)
	assert.Equal(t, "Berlin", got.ShippingAddressCity)
}

func TestHTTPNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPNotifier(srv.URL, "", time.Second).OrderReceived(context.Background(), EmailData{OrderID: "o1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPNotifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTPNotifier(url, "", time.Second).OrderReceived(context.Background(), EmailData{OrderID: "o1"})
	require.Error(t, err)
}
