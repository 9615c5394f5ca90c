package records

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Record is one result row, keyed by attnum.
type Record map[int]interface{}

// RecordList is the assembled response for both list and search:
// pagination-independent total count, the page of rows, optional
// grouping metadata, and a preview-data placeholder that is always
// empty (foreign key previews are deferred to callers).
type RecordList struct {
	Count       int64                    `json:"count"`
	Results     []Record                 `json:"results"`
	Grouping    *GroupingResponse        `json:"grouping,omitempty"`
	PreviewData []map[string]interface{} `json:"preview_data"`
}

// SchemaResolver resolves a table's current column set. Implemented by
// the database layer; fixture schemas stand in for it in tests.
type SchemaResolver interface {
	ResolveTable(ctx context.Context, databaseID int64, tableOID uint32) (*TableSchema, error)
}

// RowExecutor runs the compiled query against storage and hands back
// rows already decoded to typed scalars. The executor owns connection
// scoping; the core never retains a handle.
type RowExecutor interface {
	SelectRows(ctx context.Context, databaseID int64, schema *TableSchema, pred *Predicate, orderBy string, limit, offset *int) ([]Record, error)
	CountRows(ctx context.Context, databaseID int64, schema *TableSchema, pred *Predicate) (int64, error)
}

// DefaultSearchLimit caps search results when the caller does not ask
// for a specific page size.
const DefaultSearchLimit = 10

// ListRequest carries the validated inputs of a list operation.
type ListRequest struct {
	TableOID   uint32
	DatabaseID int64
	Limit      *int
	Offset     *int
	Order      []OrderBy
	Filter     *Expression
	Grouping   *Grouping
}

// SearchRequest carries the validated inputs of a search operation.
type SearchRequest struct {
	TableOID   uint32
	DatabaseID int64
	Params     []SearchParam
	Limit      int
}

// Service implements the record listing and searching operations on
// top of the schema and storage collaborators. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	resolver SchemaResolver
	store    RowExecutor
}

// NewService creates a record service.
func NewService(resolver SchemaResolver, store RowExecutor) *Service {
	return &Service{resolver: resolver, store: store}
}

// List returns a page of records with their pagination-independent
// total count and optional page-scoped grouping. All validation
// failures happen before any row is fetched; a failed compile never
// yields partial results.
func (s *Service) List(ctx context.Context, req ListRequest) (*RecordList, error) {
	schema, err := s.resolver.ResolveTable(ctx, req.DatabaseID, req.TableOID)
	if err != nil {
		return nil, err
	}

	if err := validateGrouping(schema, req.Grouping); err != nil {
		return nil, err
	}

	pred, err := Compile(schema, req.Filter)
	if err != nil {
		return nil, err
	}
	orderBy, err := CompileOrder(schema, req.Order)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.SelectRows(ctx, req.DatabaseID, schema, pred, orderBy, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountRows(ctx, req.DatabaseID, schema, pred)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Uint32("table_oid", req.TableOID).
		Int64("database_id", req.DatabaseID).
		Int("rows", len(rows)).
		Int64("count", count).
		Msg("Listed records")

	return &RecordList{
		Count:       count,
		Results:     rows,
		Grouping:    GroupRecords(rows, req.Grouping),
		PreviewData: []map[string]interface{}{},
	}, nil
}

// Search returns the rows most similar to the search parameters,
// ranked by score. The candidate predicate restricts the fetch to rows
// that can score above zero; ranking and truncation happen here, and
// the reported count is the full number of matches. An empty parameter
// list matches nothing.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*RecordList, error) {
	schema, err := s.resolver.ResolveTable(ctx, req.DatabaseID, req.TableOID)
	if err != nil {
		return nil, err
	}

	empty := &RecordList{Results: []Record{}, PreviewData: []map[string]interface{}{}}
	pred, err := BuildSearchPredicate(schema, req.Params)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return empty, nil
	}

	// Candidates arrive in primary-key order, which becomes the
	// deterministic tie-break between equal scores.
	orderBy, err := CompileOrder(schema, nil)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.SelectRows(ctx, req.DatabaseID, schema, pred, orderBy, nil, nil)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	ranked, count, err := RankRecords(schema, req.Params, rows, limit)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Uint32("table_oid", req.TableOID).
		Int64("database_id", req.DatabaseID).
		Int("candidates", len(rows)).
		Int("matches", count).
		Msg("Searched records")

	return &RecordList{
		Count:       int64(count),
		Results:     ranked,
		PreviewData: []map[string]interface{}{},
	}, nil
}

// validateGrouping resolves grouping columns against the schema and
// re-checks preproc names before any query runs. ParseGrouping already
// validates wire input, but the request structs are public, so a
// grouping built directly by a caller gets the same checks.
func validateGrouping(schema *TableSchema, g *Grouping) error {
	if g == nil {
		return nil
	}
	for _, attnum := range g.Columns {
		if _, ok := schema.Column(attnum); !ok {
			return unknownColumnErr(attnum)
		}
	}
	if len(g.Preproc) != 0 && len(g.Preproc) != len(g.Columns) {
		return malformedErr("grouping.preproc", "preproc list must be empty or match columns length (%d vs %d)", len(g.Preproc), len(g.Columns))
	}
	for i, name := range g.Preproc {
		if !KnownPreproc(name) {
			return malformedErr(fmt.Sprintf("grouping.preproc[%d]", i), "unsupported preprocessing function %q", name)
		}
	}
	return nil
}
