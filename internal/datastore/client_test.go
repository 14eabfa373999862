package datastore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetteClient_BatchInsert_Success(t *testing.T) {
	var gotPath, gotAuth, gotPK string
	var body struct {
		Rows []map[string]any `json:"rows"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotPK = r.URL.Query().Get("pk")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewDatasetteClient(ts.URL+"/", "testtoken")
	require.NoError(t, client.Connect())

	records := []map[string]any{{"id": "p1", "doi": "10.1000/x"}}
	require.NoError(t, client.BatchInsert(context.Background(), "bibsync", "publications", records))

	assert.Equal(t, "/-/insert/bibsync/publications", gotPath)
	assert.Equal(t, "Bearer testtoken", gotAuth)
	assert.Equal(t, "id", gotPK)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "p1", body.Rows[0]["id"])
}

func TestDatasetteClient_BatchInsert_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "forbidden"})
	}))
	defer ts.Close()

	client := NewDatasetteClient(ts.URL, "")
	require.NoError(t, client.Connect())

	err := client.BatchInsert(context.Background(), "bibsync", "publications", []map[string]any{{"id": "p1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "forbidden")
}

func TestDatasetteClient_ConnectRejectsBadURL(t *testing.T) {
	assert.Error(t, NewDatasetteClient("ftp://example.org", "").Connect())
	assert.Error(t, NewDatasetteClient("::not a url", "").Connect())
}
