package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowline-app/rowline/internal/config"
	"github.com/rowline-app/rowline/internal/database"
	"github.com/rowline-app/rowline/internal/records"
)

type stubResolver struct {
	schema *records.TableSchema
	err    error
}

func (s *stubResolver) ResolveTable(ctx context.Context, databaseID int64, tableOID uint32) (*records.TableSchema, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.schema, nil
}

type stubStore struct {
	rows []records.Record
	err  error
}

func (s *stubStore) SelectRows(ctx context.Context, databaseID int64, schema *records.TableSchema, pred *records.Predicate, orderBy string, limit, offset *int) ([]records.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func (s *stubStore) CountRows(ctx context.Context, databaseID int64, schema *records.TableSchema, pred *records.Predicate) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.rows)), nil
}

func peopleSchema() *records.TableSchema {
	return &records.TableSchema{
		OID:    1234,
		Schema: "public",
		Name:   "people",
		Columns: map[int]records.Column{
			1: {Attnum: 1, Name: "name", DataType: "text", TypeCategory: 'S'},
			2: {Attnum: 2, Name: "age", DataType: "integer", TypeCategory: 'N'},
		},
		PrimaryKey: []int{2},
	}
}

func testServer(resolver records.SchemaResolver, store records.RowExecutor) *Server {
	cfg := &config.Config{
		API: config.APIConfig{MaxPageSize: 500, DefaultSearchLimit: 10},
	}
	service := records.NewService(resolver, store)
	return NewServer(cfg, &database.Provider{}, service, nil)
}

func postJSON(t *testing.T, s *Server, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return resp.StatusCode, decoded
}

func TestRecordsListHandler(t *testing.T) {
	t.Run("lists records", func(t *testing.T) {
		s := testServer(
			&stubResolver{schema: peopleSchema()},
			&stubStore{rows: []records.Record{{1: "Bob", 2: int64(25)}}},
		)
		status, body := postJSON(t, s, "/api/rpc/records.list", `{
			"table_oid": 1234,
			"database_id": 1,
			"filter": {"type":"equal","args":[{"type":"attnum","value":2},{"type":"literal","value":25}]}
		}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, float64(1), body["count"])
		results := body["results"].([]interface{})
		require.Len(t, results, 1)
		row := results[0].(map[string]interface{})
		assert.Equal(t, "Bob", row["1"])
		assert.NotNil(t, body["preview_data"])
	})

	t.Run("missing table_oid", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.list", `{"database_id": 1}`)
		assert.Equal(t, 400, status)
		assert.Equal(t, "MISSING_TABLE", body["code"])
	})

	t.Run("invalid json body", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.list", `{not json`)
		assert.Equal(t, 400, status)
		assert.Equal(t, "INVALID_JSON", body["code"])
	})

	t.Run("limit above maximum", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.list", `{"table_oid":1234,"database_id":1,"limit":1000}`)
		assert.Equal(t, 400, status)
		assert.Equal(t, "INVALID_LIMIT", body["code"])
	})

	t.Run("malformed filter carries its path", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.list", `{
			"table_oid": 1234,
			"database_id": 1,
			"filter": {"type":"equal","args":[{"type":"attnum","value":"two"},{"type":"literal","value":25}]}
		}`)
		assert.Equal(t, 400, status)
		assert.Equal(t, "MALFORMED_EXPRESSION", body["code"])
		assert.Equal(t, "filter.args[0].value", body["path"])
	})

	t.Run("unknown column", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.list", `{
			"table_oid": 1234,
			"database_id": 1,
			"filter": {"type":"null","args":[{"type":"attnum","value":99}]}
		}`)
		assert.Equal(t, 400, status)
		assert.Equal(t, "UNKNOWN_COLUMN", body["code"])
	})

	t.Run("unknown operator", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.list", `{
			"table_oid": 1234,
			"database_id": 1,
			"filter": {"type":"fuzzy","args":[]}
		}`)
		assert.Equal(t, 400, status)
		assert.Equal(t, "UNKNOWN_OPERATOR", body["code"])
	})

	t.Run("table not found", func(t *testing.T) {
		s := testServer(&stubResolver{err: database.ErrTableNotFound}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.list", `{"table_oid":1234,"database_id":1}`)
		assert.Equal(t, 404, status)
		assert.Equal(t, "TABLE_NOT_FOUND", body["code"])
	})

	t.Run("unknown database", func(t *testing.T) {
		s := testServer(&stubResolver{err: database.ErrUnknownDatabase}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.list", `{"table_oid":1234,"database_id":7}`)
		assert.Equal(t, 404, status)
		assert.Equal(t, "UNKNOWN_DATABASE", body["code"])
	})

	t.Run("storage failure", func(t *testing.T) {
		s := testServer(
			&stubResolver{schema: peopleSchema()},
			&stubStore{err: records.StorageError(errors.New("timeout"), "query on people failed")},
		)
		status, body := postJSON(t, s, "/api/rpc/records.list", `{"table_oid":1234,"database_id":1}`)
		assert.Equal(t, 502, status)
		assert.Equal(t, "STORAGE_FAILURE", body["code"])
	})
}

func TestRecordsSearchHandler(t *testing.T) {
	t.Run("searches records", func(t *testing.T) {
		s := testServer(
			&stubResolver{schema: peopleSchema()},
			&stubStore{rows: []records.Record{{1: "Alice", 2: int64(30)}}},
		)
		status, body := postJSON(t, s, "/api/rpc/records.search", `{
			"table_oid": 1234,
			"database_id": 1,
			"search_params": [{"attnum":1,"literal":"ali"}]
		}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, float64(1), body["count"])
		results := body["results"].([]interface{})
		require.Len(t, results, 1)
	})

	t.Run("empty params return an empty result", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{rows: []records.Record{{1: "Alice"}}})
		status, body := postJSON(t, s, "/api/rpc/records.search", `{"table_oid":1234,"database_id":1,"search_params":[]}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, float64(0), body["count"])
		assert.Empty(t, body["results"])
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.search", `{"table_oid":1234,"database_id":1,"limit":0}`)
		assert.Equal(t, 400, status)
		assert.Equal(t, "INVALID_LIMIT", body["code"])
	})

	t.Run("malformed search params", func(t *testing.T) {
		s := testServer(&stubResolver{schema: peopleSchema()}, &stubStore{})
		status, body := postJSON(t, s, "/api/rpc/records.search", `{"table_oid":1234,"database_id":1,"search_params":[{"attnum":1}]}`)
		assert.Equal(t, 400, status)
		assert.Equal(t, "MALFORMED_EXPRESSION", body["code"])
	})
}
