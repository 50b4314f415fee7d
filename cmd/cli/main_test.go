package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method         string
	Path           string
	Query          string
	IdempotencyKey string
	Body           map[string]any
}

// newTestAPI serves a canned response and records the last request it saw.
func newTestAPI(t *testing.T, status int, response string) (*httptest.Server, *recordedRequest) {
	t.Helper()

	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method = r.Method
		rec.Path = r.URL.Path
		rec.Query = r.URL.RawQuery
		rec.IdempotencyKey = r.Header.Get("Idempotency-Key")

		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			_ = json.Unmarshal(body, &rec.Body)
		}

		if response != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	return srv, rec
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--url", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1})
	require.NoError(t, err)

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}
}

func TestAccountsCreate(t *testing.T) {
	srv, rec := newTestAPI(t, http.StatusCreated, `{"id":"acc-1","code":"1000","status":"open"}`)

	out, err := runCLI(t, srv, "--idempotency-key", "k-1", "accounts", "create",
		"--owner-id", "org-1", "--code", "1000", "--name", "Cash", "--type", "asset", "--currency", "usd")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/api/v1/accounts", rec.Path)
	assert.Equal(t, "k-1", rec.IdempotencyKey)
	assert.Equal(t, "organization", rec.Body["owner_kind"])
	assert.Equal(t, "usd", rec.Body["currency"])
	assert.NotContains(t, rec.Body, "parent_id")
	assert.Contains(t, out, `"id": "acc-1"`)
}

func TestAccountsList(t *testing.T) {
	srv, rec := newTestAPI(t, http.StatusOK,
		`{"accounts":[{"id":"acc-1","code":"1000","name":"Operating cash account for payouts","type":"asset","currency":"USD","status":"open"}],"limit":5,"offset":0}`)

	out, err := runCLI(t, srv, "accounts", "list", "--owner-id", "org-1", "--limit", "5")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/accounts", rec.Path)
	assert.Contains(t, rec.Query, "owner_id=org-1")
	assert.Contains(t, rec.Query, "limit=5")
	assert.Contains(t, out, "acc-1")
	assert.Contains(t, out, "Operating cash accoun...")
}

func TestAccountsClose_APIError(t *testing.T) {
	srv, rec := newTestAPI(t, http.StatusConflict,
		`{"error":"account balance is not zero","code":"non_zero_balance","message":"account acc-1 has non-zero balance 10"}`)

	_, err := runCLI(t, srv, "accounts", "close", "acc-1")
	require.Error(t, err)

	assert.Equal(t, "/api/v1/accounts/acc-1/close", rec.Path)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "non-zero balance")
}

func TestTxAppend(t *testing.T) {
	srv, rec := newTestAPI(t, http.StatusCreated, `{"id":"ent-1","amount":"12.5"}`)

	_, err := runCLI(t, srv, "tx", "append", "txn-1",
		"--account", "acc-1", "--direction", "debit", "--amount", "12.50", "--currency", "USD")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/transactions/txn-1/entries", rec.Path)
	assert.Equal(t, "12.50", rec.Body["amount"])
	assert.Equal(t, "debit", rec.Body["direction"])
}

func TestTxRemove(t *testing.T) {
	srv, rec := newTestAPI(t, http.StatusNoContent, "")

	out, err := runCLI(t, srv, "tx", "remove", "txn-1", "ent-1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, rec.Method)
	assert.Equal(t, "/api/v1/transactions/txn-1/entries/ent-1", rec.Path)
	assert.Contains(t, out, "Entry ent-1 removed")
}

func TestTxPost(t *testing.T) {
	srv, rec := newTestAPI(t, http.StatusOK, `{"id":"txn-1","status":"posted"}`)

	out, err := runCLI(t, srv, "tx", "post", "txn-1")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/transactions/txn-1/post", rec.Path)
	assert.Empty(t, rec.IdempotencyKey)
	assert.Contains(t, out, `"status": "posted"`)
}

func TestTxReverseRequiresCreatedBy(t *testing.T) {
	srv, _ := newTestAPI(t, http.StatusCreated, `{}`)

	_, err := runCLI(t, srv, "tx", "reverse", "txn-1")
	assert.Error(t, err)
}

func TestLedgerConsistency(t *testing.T) {
	t.Run("passed", func(t *testing.T) {
		srv, _ := newTestAPI(t, http.StatusOK,
			`{"consistent":true,"totals":[{"currency":"USD","debits":"100","credits":"100","net":"0"}]}`)

		out, err := runCLI(t, srv, "ledger", "consistency")
		require.NoError(t, err)
		assert.Contains(t, out, "PASSED")
		assert.Contains(t, out, "USD: debits=100 credits=100 net=0")
	})

	t.Run("failed", func(t *testing.T) {
		srv, _ := newTestAPI(t, http.StatusConflict,
			`{"consistent":false,"totals":[{"currency":"USD","debits":"100","credits":"90","net":"10"}]}`)

		out, err := runCLI(t, srv, "ledger", "consistency")
		require.Error(t, err)
		assert.True(t, strings.Contains(out, "FAILED"), out)
		assert.Contains(t, out, "net=10")
	})
}
