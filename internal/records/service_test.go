package records

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	schema *TableSchema
	err    error
}

func (f *fakeResolver) ResolveTable(ctx context.Context, databaseID int64, tableOID uint32) (*TableSchema, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.schema, nil
}

// fakeStore evaluates predicates against in-memory rows just enough
// for the tests: it applies limit/offset and remembers the calls it
// received.
type fakeStore struct {
	rows      []Record
	selectErr error
	countErr  error

	lastPredicate *Predicate
	lastOrderBy   string
	selectCalls   int
}

func (f *fakeStore) SelectRows(ctx context.Context, databaseID int64, schema *TableSchema, pred *Predicate, orderBy string, limit, offset *int) ([]Record, error) {
	f.selectCalls++
	f.lastPredicate = pred
	f.lastOrderBy = orderBy
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	rows := f.rows
	if offset != nil && *offset < len(rows) {
		rows = rows[*offset:]
	} else if offset != nil {
		rows = nil
	}
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows, nil
}

func (f *fakeStore) CountRows(ctx context.Context, databaseID int64, schema *TableSchema, pred *Predicate) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.rows)), nil
}

func intPtr(v int) *int { return &v }

func TestServiceList(t *testing.T) {
	schema := testSchema()

	t.Run("returns rows with count and empty preview data", func(t *testing.T) {
		store := &fakeStore{rows: []Record{
			{1: "Alice", 2: int64(30)},
			{1: "Bob", 2: int64(25)},
		}}
		svc := NewService(&fakeResolver{schema: schema}, store)

		result, err := svc.List(context.Background(), ListRequest{TableOID: 1234, DatabaseID: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Count)
		assert.Len(t, result.Results, 2)
		assert.Nil(t, result.Grouping)
		assert.NotNil(t, result.PreviewData)
		assert.Empty(t, result.PreviewData)
		assert.Equal(t, `"age" ASC`, store.lastOrderBy)
	})

	t.Run("filter reaches the store as a bound predicate", func(t *testing.T) {
		store := &fakeStore{rows: []Record{{1: "Bob", 2: int64(25)}}}
		svc := NewService(&fakeResolver{schema: schema}, store)

		filter := &Expression{Kind: ExprOperator, Op: "equal", Args: []Expression{
			{Kind: ExprColumn, Attnum: 2},
			{Kind: ExprLiteral, Value: 25},
		}}
		result, err := svc.List(context.Background(), ListRequest{TableOID: 1234, DatabaseID: 1, Filter: filter})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Count)
		require.NotNil(t, store.lastPredicate)
		assert.Equal(t, `"age" = $1`, store.lastPredicate.Clause)
		assert.Equal(t, []interface{}{25}, store.lastPredicate.Args)
	})

	t.Run("count ignores the page window", func(t *testing.T) {
		store := &fakeStore{rows: []Record{{2: int64(1)}, {2: int64(2)}, {2: int64(3)}}}
		svc := NewService(&fakeResolver{schema: schema}, store)

		result, err := svc.List(context.Background(), ListRequest{
			TableOID: 1234, DatabaseID: 1, Limit: intPtr(1), Offset: intPtr(1),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Count)
		assert.Len(t, result.Results, 1)
	})

	t.Run("grouping covers the returned page", func(t *testing.T) {
		store := &fakeStore{rows: []Record{
			{1: "a", 2: int64(25)},
			{1: "b", 2: int64(25)},
			{1: "c", 2: int64(30)},
		}}
		svc := NewService(&fakeResolver{schema: schema}, store)

		result, err := svc.List(context.Background(), ListRequest{
			TableOID: 1234, DatabaseID: 1, Grouping: &Grouping{Columns: []int{2}},
		})
		require.NoError(t, err)
		require.NotNil(t, result.Grouping)
		require.Len(t, result.Grouping.Groups, 2)
		assert.Equal(t, 2, result.Grouping.Groups[0].Count)
		assert.Equal(t, 1, result.Grouping.Groups[1].Count)
	})

	t.Run("invalid inputs fetch no rows", func(t *testing.T) {
		cases := []struct {
			name string
			req  ListRequest
			kind ErrorKind
		}{
			{
				name: "unknown filter column",
				req: ListRequest{TableOID: 1234, DatabaseID: 1, Filter: &Expression{
					Kind: ExprOperator, Op: "null", Args: []Expression{{Kind: ExprColumn, Attnum: 99}},
				}},
				kind: KindUnknownColumn,
			},
			{
				name: "unknown grouping column",
				req:  ListRequest{TableOID: 1234, DatabaseID: 1, Grouping: &Grouping{Columns: []int{99}}},
				kind: KindUnknownColumn,
			},
			{
				name: "unknown preproc built directly by the caller",
				req: ListRequest{TableOID: 1234, DatabaseID: 1, Grouping: &Grouping{
					Columns: []int{1}, Preproc: []string{"bogus_preproc"},
				}},
				kind: KindMalformedExpression,
			},
			{
				name: "preproc length mismatch built directly by the caller",
				req: ListRequest{TableOID: 1234, DatabaseID: 1, Grouping: &Grouping{
					Columns: []int{1, 2}, Preproc: []string{"lowercase"},
				}},
				kind: KindMalformedExpression,
			},
			{
				name: "unknown order column",
				req:  ListRequest{TableOID: 1234, DatabaseID: 1, Order: []OrderBy{{Attnum: 99}}},
				kind: KindUnknownColumn,
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				store := &fakeStore{rows: []Record{{2: int64(1)}}}
				svc := NewService(&fakeResolver{schema: schema}, store)
				_, err := svc.List(context.Background(), tc.req)
				require.Error(t, err)
				assert.Equal(t, tc.kind, KindOf(err))
				assert.Zero(t, store.selectCalls)
			})
		}
	})

	t.Run("resolver errors pass through", func(t *testing.T) {
		boom := errors.New("connection refused")
		svc := NewService(&fakeResolver{err: boom}, &fakeStore{})
		_, err := svc.List(context.Background(), ListRequest{TableOID: 1234, DatabaseID: 1})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("store errors pass through", func(t *testing.T) {
		boom := StorageError(errors.New("timeout"), "query on people failed")
		svc := NewService(&fakeResolver{schema: schema}, &fakeStore{selectErr: boom})
		_, err := svc.List(context.Background(), ListRequest{TableOID: 1234, DatabaseID: 1})
		assert.Equal(t, KindStorageFailure, KindOf(err))
	})

	t.Run("empty table", func(t *testing.T) {
		svc := NewService(&fakeResolver{schema: schema}, &fakeStore{})
		result, err := svc.List(context.Background(), ListRequest{TableOID: 1234, DatabaseID: 1})
		require.NoError(t, err)
		assert.Zero(t, result.Count)
		assert.Empty(t, result.Results)
	})
}

func TestServiceSearch(t *testing.T) {
	schema := testSchema()

	t.Run("ranks and excludes non-matching rows", func(t *testing.T) {
		store := &fakeStore{rows: []Record{
			{1: "Alice", 2: int64(30)},
		}}
		svc := NewService(&fakeResolver{schema: schema}, store)

		result, err := svc.Search(context.Background(), SearchRequest{
			TableOID: 1234, DatabaseID: 1,
			Params: []SearchParam{{Attnum: 1, Literal: "ali"}},
			Limit:  10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Count)
		require.Len(t, result.Results, 1)
		assert.Equal(t, "Alice", result.Results[0][1])

		require.NotNil(t, store.lastPredicate)
		assert.Equal(t, `(strpos(lower("name"), lower($1)) > 0)`, store.lastPredicate.Clause)
		assert.Equal(t, `"age" ASC`, store.lastOrderBy)
	})

	t.Run("empty params match nothing without touching storage", func(t *testing.T) {
		store := &fakeStore{rows: []Record{{1: "Alice"}}}
		svc := NewService(&fakeResolver{schema: schema}, store)

		result, err := svc.Search(context.Background(), SearchRequest{TableOID: 1234, DatabaseID: 1})
		require.NoError(t, err)
		assert.Zero(t, result.Count)
		assert.Empty(t, result.Results)
		assert.NotNil(t, result.Results)
		assert.Zero(t, store.selectCalls)
	})

	t.Run("default limit applies when unset", func(t *testing.T) {
		rows := make([]Record, 15)
		for i := range rows {
			rows[i] = Record{1: "match", 2: int64(i)}
		}
		svc := NewService(&fakeResolver{schema: schema}, &fakeStore{rows: rows})

		result, err := svc.Search(context.Background(), SearchRequest{
			TableOID: 1234, DatabaseID: 1,
			Params: []SearchParam{{Attnum: 1, Literal: "match"}},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(15), result.Count)
		assert.Len(t, result.Results, DefaultSearchLimit)
	})

	t.Run("unknown search column", func(t *testing.T) {
		store := &fakeStore{}
		svc := NewService(&fakeResolver{schema: schema}, store)
		_, err := svc.Search(context.Background(), SearchRequest{
			TableOID: 1234, DatabaseID: 1,
			Params: []SearchParam{{Attnum: 99, Literal: "x"}},
		})
		require.Error(t, err)
		assert.Equal(t, KindUnknownColumn, KindOf(err))
		assert.Zero(t, store.selectCalls)
	})
}
