package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertSendsKeyedRowWithAuth(t *testing.T) {
	var got upsertRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upsert", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "bridge-token")
	err := c.Upsert(context.Background(), "tx-1", map[string]any{
		"sheet":  "Доходи",
		"amount": 2400.5,
	})
	require.NoError(t, err)

	require.Equal(t, "Bearer bridge-token", auth)
	require.Equal(t, "tx-1", got.Key)
	require.Equal(t, "Доходи", got.Fields["sheet"])
	require.Equal(t, 2400.5, got.Fields["amount"])
}

func TestUpsertNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.Upsert(context.Background(), "tx-1", map[string]any{"a": "b"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestSanitizeCellDefusesFormulas(t *testing.T) {
	require.Equal(t, "'=SUM(A1:A9)", sanitizeCell("=SUM(A1:A9)"))
	require.Equal(t, "'+380501234567", sanitizeCell("+380501234567"))
	require.Equal(t, "'@import", sanitizeCell("@import"))
	require.Equal(t, "Олена", sanitizeCell("Олена"))
	require.Equal(t, "", sanitizeCell(""))
	require.Equal(t, 2400.5, sanitizeCell(2400.5), "numbers pass through")
}
