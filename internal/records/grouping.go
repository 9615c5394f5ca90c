package records

import (
	"encoding/json"
	"strings"
	"time"
)

// Group is one computed partition of the returned page: a locally
// unique id, the member count, and the shared (post-preprocessing)
// key-value tuple.
type Group struct {
	ID        int    `json:"id"`
	Count     int    `json:"count"`
	ResultsEq Record `json:"results_eq"`
}

// GroupingResponse echoes the grouping request plus the computed
// groups for the records being returned.
type GroupingResponse struct {
	Columns []int    `json:"columns"`
	Preproc []string `json:"preproc"`
	Groups  []Group  `json:"groups"`
}

// GroupRecords partitions the already-ordered page of rows by the
// preprocessed values of the grouping columns. Rows are never
// reordered; group ids are 1-based first-seen indexes, so the same key
// always maps to the same id within one response. An empty column list
// yields no grouping response.
func GroupRecords(rows []Record, g *Grouping) *GroupingResponse {
	if g == nil || len(g.Columns) == 0 {
		return nil
	}

	resp := &GroupingResponse{
		Columns: g.Columns,
		Preproc: g.Preproc,
		Groups:  []Group{},
	}

	index := make(map[string]int) // canonical key -> position in resp.Groups
	for _, row := range rows {
		keyVals := make(Record, len(g.Columns))
		for i, attnum := range g.Columns {
			val := row[attnum]
			if len(g.Preproc) > 0 {
				if fn, ok := preprocCatalog[g.Preproc[i]]; ok {
					val = fn(val)
				}
			}
			keyVals[attnum] = normalizeValue(val)
		}

		key := canonicalKey(g.Columns, keyVals)
		if pos, ok := index[key]; ok {
			resp.Groups[pos].Count++
			continue
		}
		index[key] = len(resp.Groups)
		resp.Groups = append(resp.Groups, Group{
			ID:        len(resp.Groups) + 1,
			Count:     1,
			ResultsEq: keyVals,
		})
	}

	return resp
}

// canonicalKey encodes the grouping-key tuple so structurally equal
// values produce identical keys regardless of original representation.
// Values are normalized first; JSON marshaling then sorts object keys
// and strips whitespace.
func canonicalKey(columns []int, vals Record) string {
	tuple := make([]interface{}, len(columns))
	for i, attnum := range columns {
		tuple[i] = vals[attnum]
	}
	encoded, err := json.Marshal(tuple)
	if err != nil {
		// Marshaling decoded row values cannot realistically fail;
		// fall back to the unstructured form rather than panic.
		return strings.Join([]string{"!", err.Error()}, "")
	}
	return string(encoded)
}

// normalizeValue decodes JSON-shaped text so equal structured values
// compare equal. jsonb columns usually arrive already decoded; json
// columns and some drivers hand back raw text or bytes.
func normalizeValue(val interface{}) interface{} {
	switch v := val.(type) {
	case []byte:
		return normalizeJSONText(string(v))
	case string:
		return normalizeJSONText(v)
	default:
		return val
	}
}

func normalizeJSONText(s string) interface{} {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 || (trimmed[0] != '[' && trimmed[0] != '{') {
		return s
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return s
	}
	return decoded
}

func preprocLowercase(val interface{}) interface{} {
	switch v := val.(type) {
	case string:
		return strings.ToLower(v)
	case []byte:
		return strings.ToLower(string(v))
	default:
		return val
	}
}

// timestampLayouts are the textual forms temporal values show up in
// when a driver does not decode them to time.Time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// truncateTo returns a preproc that truncates temporal values to the
// precision expressed by layout (day, month, or year).
func truncateTo(layout string) func(interface{}) interface{} {
	return func(val interface{}) interface{} {
		switch v := val.(type) {
		case time.Time:
			return v.Format(layout)
		case string:
			for _, in := range timestampLayouts {
				if t, err := time.Parse(in, v); err == nil {
					return t.Format(layout)
				}
			}
			return val
		default:
			return val
		}
	}
}
