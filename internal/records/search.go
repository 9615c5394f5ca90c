package records

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Scoring weights. The scheme is monotonic: an exact match always
// outranks any partial match (partial contributions stay strictly
// below weightExact), and partial matches rank by the proportion of
// the value the literal covers.
const (
	weightExact   = 1.0
	weightPartial = 0.5
)

// BuildSearchPredicate compiles the candidate predicate pushed to
// storage: for each parameter, case-insensitive containment on
// string-like columns or textual equality on everything else, OR-ed
// together. The candidate set is exactly the set of rows that can
// score above zero, so zero-score rows are never fetched. Fails with
// UnknownColumn before any row is touched; returns nil when no
// parameter can produce a match.
func BuildSearchPredicate(schema *TableSchema, params []SearchParam) (*Predicate, error) {
	var clauses []string
	var args []interface{}
	for _, p := range params {
		col, ok := schema.Column(p.Attnum)
		if !ok {
			return nil, unknownColumnErr(p.Attnum)
		}
		// A null literal scores zero against every row, so it adds no
		// clause.
		if p.Literal == nil {
			continue
		}
		text := valueText(p.Literal)
		args = append(args, text)
		placeholder := fmt.Sprintf("$%d", len(args))
		quoted := quoteIdentifier(col.Name)
		if col.IsStringLike() && text != "" {
			clauses = append(clauses, "strpos(lower("+quoted+"), lower("+placeholder+")) > 0")
		} else {
			// strpos with an empty needle is true for every row, and
			// an empty literal can only match exactly, so empty
			// literals fall through to equality.
			clauses = append(clauses, quoted+"::text = "+placeholder)
		}
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	return &Predicate{Clause: "(" + strings.Join(clauses, " OR ") + ")", Args: args}, nil
}

// RankRecords scores each row against the search parameters, drops
// rows with a zero total score, and returns the surviving rows sorted
// by descending score, truncated to limit. Ties keep the incoming
// order, which the caller guarantees to be the table's primary-key
// order. The returned count is the number of matching rows before
// truncation.
func RankRecords(schema *TableSchema, params []SearchParam, rows []Record, limit int) ([]Record, int, error) {
	for _, p := range params {
		if _, ok := schema.Column(p.Attnum); !ok {
			return nil, 0, unknownColumnErr(p.Attnum)
		}
	}

	type scoredRecord struct {
		record Record
		score  float64
	}
	scored := make([]scoredRecord, 0, len(rows))
	for _, row := range rows {
		total := 0.0
		for _, p := range params {
			col, _ := schema.Column(p.Attnum)
			total += paramScore(col, row[p.Attnum], p.Literal)
		}
		if total > 0 {
			scored = append(scored, scoredRecord{record: row, score: total})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	count := len(scored)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	results := make([]Record, len(scored))
	for i, s := range scored {
		results[i] = s.record
	}
	return results, count, nil
}

// paramScore computes one parameter's contribution to a row's score.
// Exact equality scores highest for every column type; string-like
// columns additionally earn partial credit for case-insensitive
// containment, scaled by how much of the value the literal covers.
// A miss contributes zero without excluding the row.
func paramScore(col Column, value, literal interface{}) float64 {
	if value == nil || literal == nil {
		return 0
	}

	valText := valueText(value)
	litText := valueText(literal)
	if valText == litText {
		return weightExact
	}
	if !col.IsStringLike() || litText == "" || valText == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(valText), strings.ToLower(litText)) {
		return weightPartial * float64(utf8.RuneCountInString(litText)) / float64(utf8.RuneCountInString(valText))
	}
	return 0
}

// valueText renders a decoded scalar in the canonical textual form
// used for equality comparison, matching PostgreSQL's text casts for
// the common types. JSON numbers render without a trailing ".0" so
// they line up with integer column values.
func valueText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
