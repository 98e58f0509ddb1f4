package history

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestFetchHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions/history", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "CUST-1", req.CustomerID)
		assert.Equal(t, "0123456789", req.AccountNo)
		assert.Equal(t, 50, req.Limit)

		// amounts arrive as numbers and strings interchangeably
		w.Write([]byte(`{
			"success": true,
			"transactions": [
				{"type":"payout","reference":"R1","transactionDate":"2024-01-01T10:00:00Z","amount":100,"debitCreditIndicator":"Debit"},
				{"type":"internalfees","reference":"R1","transactionDate":"2024-01-01T10:00:00Z","amount":"100"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), ClientConfig{BaseURL: server.URL})
	resp, err := client.FetchHistory(context.Background(), Request{
		CustomerID: "CUST-1",
		AccountNo:  "0123456789",
		Limit:      50,
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Transactions, 2)
	assert.Equal(t, "100", resp.Transactions[0].Amount)
	assert.Equal(t, "internalfees", resp.Transactions[1].Type)
}

func TestFetchHistoryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success":true,"transactions":[]}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), ClientConfig{BaseURL: server.URL, RetryAttempts: 3})
	resp, err := client.FetchHistory(context.Background(), Request{CustomerID: "CUST-1", Limit: 10})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchHistoryDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testLogger(), ClientConfig{BaseURL: server.URL, RetryAttempts: 3})
	_, err := client.FetchHistory(context.Background(), Request{CustomerID: "CUST-1", Limit: 10})
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchHistoryBackendFailureEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"account not found","errorDetail":{"code":"AC01"}}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), ClientConfig{BaseURL: server.URL})
	resp, err := client.FetchHistory(context.Background(), Request{CustomerID: "CUST-1", Limit: 10})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, "account not found", resp.Error)
	assert.JSONEq(t, `{"code":"AC01"}`, string(resp.ErrorDetail))
}

func TestFetchAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.AccountNo == "111" {
			w.Write([]byte(`{"success":true,"transactions":[]}`))
			return
		}
		w.Write([]byte(`{"success":true,"transactions":[{"type":"payout","reference":"` + req.AccountNo + `","amount":"1"}]}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), ClientConfig{BaseURL: server.URL})
	feeds, err := client.FetchAll(context.Background(), "CUST-1", []string{"111", "222", "333"}, 10, nil)
	require.NoError(t, err)

	require.Len(t, feeds, 3)
	assert.Empty(t, feeds["111"])
	require.Len(t, feeds["222"], 1)
	assert.Equal(t, "222", feeds["222"][0].Reference)
}

func TestFetchAllPropagatesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"session expired"}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), ClientConfig{BaseURL: server.URL})
	_, err := client.FetchAll(context.Background(), "CUST-1", []string{"111"}, 10, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
}
