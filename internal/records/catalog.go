package records

// operatorSpec declares one catalog entry: a fixed arity and a
// renderer that composes already-compiled argument fragments into a
// SQL expression. Renderers only ever see quoted identifiers, bound
// placeholders, or the output of other renderers, so no
// client-controlled text reaches the query string.
type operatorSpec struct {
	arity  int
	render func(args []string) string
}

// operatorCatalog is the fixed, process-wide table of supported filter
// operators. Names follow the wire protocol; arity is validated at
// parse and compile time, never at execution time.
var operatorCatalog = map[string]operatorSpec{
	"and": {2, func(a []string) string { return "(" + a[0] + " AND " + a[1] + ")" }},
	"or":  {2, func(a []string) string { return "(" + a[0] + " OR " + a[1] + ")" }},
	"not": {1, func(a []string) string { return "NOT (" + a[0] + ")" }},

	"equal":            {2, func(a []string) string { return a[0] + " = " + a[1] }},
	"not_equal":        {2, func(a []string) string { return a[0] + " <> " + a[1] }},
	"lesser":           {2, func(a []string) string { return a[0] + " < " + a[1] }},
	"greater":          {2, func(a []string) string { return a[0] + " > " + a[1] }},
	"lesser_or_equal":  {2, func(a []string) string { return a[0] + " <= " + a[1] }},
	"greater_or_equal": {2, func(a []string) string { return a[0] + " >= " + a[1] }},

	"null":     {1, func(a []string) string { return a[0] + " IS NULL" }},
	"not_null": {1, func(a []string) string { return a[0] + " IS NOT NULL" }},

	// String matchers use strpos/starts_with rather than LIKE so the
	// literal keeps no pattern semantics and binds verbatim.
	"contains_case_insensitive": {2, func(a []string) string {
		return "strpos(lower(" + a[0] + "::text), lower(" + a[1] + "::text)) > 0"
	}},
	"starts_with_case_insensitive": {2, func(a []string) string {
		return "starts_with(lower(" + a[0] + "::text), lower(" + a[1] + "::text))"
	}},

	"json_array_length_equals": {2, func(a []string) string {
		return "jsonb_array_length(" + a[0] + "::jsonb) = " + a[1]
	}},
	"element_in_json_array": {2, func(a []string) string {
		return a[0] + "::jsonb @> jsonb_build_array(" + a[1] + ")"
	}},
}

// lookupOperator returns the catalog entry for name.
func lookupOperator(name string) (operatorSpec, bool) {
	spec, ok := operatorCatalog[name]
	return spec, ok
}

// preprocCatalog is the fixed table of value transforms applicable to
// grouping columns before key computation.
var preprocCatalog = map[string]func(interface{}) interface{}{
	"lowercase":         preprocLowercase,
	"truncate_to_day":   truncateTo("2006-01-02"),
	"truncate_to_month": truncateTo("2006-01"),
	"truncate_to_year":  truncateTo("2006"),
}

// KnownPreproc reports whether name is a supported preprocessing
// function.
func KnownPreproc(name string) bool {
	_, ok := preprocCatalog[name]
	return ok
}
