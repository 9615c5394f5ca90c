package records

import (
	"fmt"
	"math"
)

// ExprKind tags the three filter-tree node variants.
type ExprKind int

const (
	// ExprOperator is a function or operator node with child expressions.
	ExprOperator ExprKind = iota
	// ExprColumn is a leaf wrapping a column reference (attnum).
	ExprColumn
	// ExprLiteral is a leaf wrapping a client-supplied scalar or JSON value.
	ExprLiteral
)

// Expression is a node of a filter tree. Exactly one variant is
// populated depending on Kind.
type Expression struct {
	Kind   ExprKind
	Op     string       // operator nodes
	Args   []Expression // operator nodes
	Attnum int          // column leaves
	Value  interface{}  // literal leaves
}

// OrderBy is one entry of an order specification.
type OrderBy struct {
	Attnum int
	Desc   bool
}

// Grouping specifies grouping columns and an optional parallel list of
// preprocessing functions.
type Grouping struct {
	Columns []int
	Preproc []string
}

// SearchParam asks for rows whose value in the referenced column is
// similar to the literal.
type SearchParam struct {
	Attnum  int
	Literal interface{}
}

const (
	directionAsc  = "asc"
	directionDesc = "desc"
)

// ParseFilter turns an untyped JSON structure into a validated filter
// tree. Unknown operators, wrong arity, and malformed leaves are
// rejected here, before anything touches storage. A nil input yields a
// nil tree.
func ParseFilter(raw interface{}) (*Expression, error) {
	if raw == nil {
		return nil, nil
	}
	expr, err := parseExpression(raw, "filter")
	if err != nil {
		return nil, err
	}
	return &expr, nil
}

func parseExpression(raw interface{}, path string) (Expression, error) {
	node, ok := raw.(map[string]interface{})
	if !ok {
		return Expression{}, malformedErr(path, "expected an object, got %T", raw)
	}

	typ, ok := node["type"].(string)
	if !ok {
		return Expression{}, malformedErr(path+".type", "missing or non-string \"type\" key")
	}

	switch typ {
	case "attnum":
		attnum, err := parseAttnum(node["value"], path+".value")
		if err != nil {
			return Expression{}, err
		}
		return Expression{Kind: ExprColumn, Attnum: attnum}, nil

	case "literal":
		if _, present := node["value"]; !present {
			return Expression{}, malformedErr(path+".value", "literal is missing its \"value\" key")
		}
		// Literal values are not validated further; type coercion
		// happens at execution time.
		return Expression{Kind: ExprLiteral, Value: node["value"]}, nil

	default:
		spec, ok := lookupOperator(typ)
		if !ok {
			return Expression{}, unknownOperatorErr(typ)
		}
		rawArgs, ok := node["args"].([]interface{})
		if !ok {
			return Expression{}, malformedErr(path+".args", "operator %q is missing its \"args\" list", typ)
		}
		if len(rawArgs) != spec.arity {
			return Expression{}, arityErr(typ, spec.arity, len(rawArgs))
		}
		args := make([]Expression, len(rawArgs))
		for i, rawArg := range rawArgs {
			arg, err := parseExpression(rawArg, fmt.Sprintf("%s.args[%d]", path, i))
			if err != nil {
				return Expression{}, err
			}
			args[i] = arg
		}
		return Expression{Kind: ExprOperator, Op: typ, Args: args}, nil
	}
}

// ParseOrder turns an untyped JSON list into an order specification.
// List order is the tie-break precedence.
func ParseOrder(raw interface{}) ([]OrderBy, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, malformedErr("order", "expected a list, got %T", raw)
	}
	order := make([]OrderBy, 0, len(list))
	for i, item := range list {
		path := fmt.Sprintf("order[%d]", i)
		node, ok := item.(map[string]interface{})
		if !ok {
			return nil, malformedErr(path, "expected an object, got %T", item)
		}
		attnum, err := parseAttnum(node["attnum"], path+".attnum")
		if err != nil {
			return nil, err
		}
		direction, ok := node["direction"].(string)
		if !ok || (direction != directionAsc && direction != directionDesc) {
			return nil, malformedErr(path+".direction", "direction must be %q or %q", directionAsc, directionDesc)
		}
		order = append(order, OrderBy{Attnum: attnum, Desc: direction == directionDesc})
	}
	return order, nil
}

// ParseGrouping turns an untyped JSON object into a grouping
// specification, enforcing the preproc length invariant and catalog
// membership.
func ParseGrouping(raw interface{}) (*Grouping, error) {
	if raw == nil {
		return nil, nil
	}
	node, ok := raw.(map[string]interface{})
	if !ok {
		return nil, malformedErr("grouping", "expected an object, got %T", raw)
	}
	rawCols, ok := node["columns"].([]interface{})
	if !ok {
		return nil, malformedErr("grouping.columns", "missing or non-list \"columns\" key")
	}
	g := &Grouping{Columns: make([]int, 0, len(rawCols))}
	for i, rawCol := range rawCols {
		attnum, err := parseAttnum(rawCol, fmt.Sprintf("grouping.columns[%d]", i))
		if err != nil {
			return nil, err
		}
		g.Columns = append(g.Columns, attnum)
	}
	if rawPreproc, present := node["preproc"]; present && rawPreproc != nil {
		list, ok := rawPreproc.([]interface{})
		if !ok {
			return nil, malformedErr("grouping.preproc", "expected a list, got %T", rawPreproc)
		}
		for i, item := range list {
			path := fmt.Sprintf("grouping.preproc[%d]", i)
			name, ok := item.(string)
			if !ok {
				return nil, malformedErr(path, "expected a string, got %T", item)
			}
			if !KnownPreproc(name) {
				return nil, malformedErr(path, "unsupported preprocessing function %q", name)
			}
			g.Preproc = append(g.Preproc, name)
		}
	}
	if len(g.Preproc) != 0 && len(g.Preproc) != len(g.Columns) {
		return nil, malformedErr("grouping.preproc", "preproc list must be empty or match columns length (%d vs %d)", len(g.Preproc), len(g.Columns))
	}
	return g, nil
}

// ParseSearchParams turns an untyped JSON list into search parameters.
func ParseSearchParams(raw interface{}) ([]SearchParam, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, malformedErr("search_params", "expected a list, got %T", raw)
	}
	params := make([]SearchParam, 0, len(list))
	for i, item := range list {
		path := fmt.Sprintf("search_params[%d]", i)
		node, ok := item.(map[string]interface{})
		if !ok {
			return nil, malformedErr(path, "expected an object, got %T", item)
		}
		attnum, err := parseAttnum(node["attnum"], path+".attnum")
		if err != nil {
			return nil, err
		}
		if _, present := node["literal"]; !present {
			return nil, malformedErr(path+".literal", "missing \"literal\" key")
		}
		params = append(params, SearchParam{Attnum: attnum, Literal: node["literal"]})
	}
	return params, nil
}

// parseAttnum accepts the numeric shapes JSON decoding produces and
// requires a positive integer.
func parseAttnum(raw interface{}, path string) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v < 1 {
			return 0, malformedErr(path, "attnum must be a positive integer, got %v", v)
		}
		return int(v), nil
	case int:
		if v < 1 {
			return 0, malformedErr(path, "attnum must be a positive integer, got %d", v)
		}
		return v, nil
	default:
		return 0, malformedErr(path, "attnum must be a positive integer, got %T", raw)
	}
}
