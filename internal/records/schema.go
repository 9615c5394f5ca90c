package records

import (
	"sort"
	"strings"
)

// Column describes one column of a table as discovered at runtime.
type Column struct {
	Attnum       int    `json:"attnum"`
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	TypeCategory byte   `json:"type_category"` // pg_type.typcategory
	IsNullable   bool   `json:"is_nullable"`
}

// IsStringLike reports whether the column holds string data for the
// purposes of search scoring (typcategory 'S' covers text, varchar,
// char and citext).
func (c Column) IsStringLike() bool {
	return c.TypeCategory == 'S'
}

// TableSchema is the discovered column set of one table, keyed by
// attnum. It is a plain value passed explicitly into compilation and
// scoring, so the core carries no live-schema dependency.
type TableSchema struct {
	OID        uint32         `json:"oid"`
	Schema     string         `json:"schema"`
	Name       string         `json:"name"`
	Columns    map[int]Column `json:"columns"`
	PrimaryKey []int          `json:"primary_key"` // attnums, key order
}

// Column returns the column for the given attnum.
func (s *TableSchema) Column(attnum int) (Column, bool) {
	c, ok := s.Columns[attnum]
	return c, ok
}

// Attnums returns all attnums in ascending order. Used to produce a
// deterministic SELECT list.
func (s *TableSchema) Attnums() []int {
	nums := make([]int, 0, len(s.Columns))
	for n := range s.Columns {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// quoteIdentifier safely quotes a PostgreSQL identifier to prevent SQL
// injection. It wraps the identifier in double quotes and escapes any
// embedded double quotes.
func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
