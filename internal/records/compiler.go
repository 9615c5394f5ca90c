package records

import (
	"fmt"
	"strings"
)

// Predicate is a compiled, parameter-bound boolean expression ready to
// be handed to the storage layer. Clause references arguments as
// $1..$N positional placeholders; Args holds the literal values in
// order. Client-controlled text never appears in Clause.
type Predicate struct {
	Clause string
	Args   []interface{}
}

type compiler struct {
	schema *TableSchema
	args   []interface{}
}

// Compile lowers a validated filter tree into a parameterized
// predicate against the given table schema. Column references are
// resolved here; literals become bound parameters. A nil expression
// compiles to a nil predicate (no WHERE clause).
func Compile(schema *TableSchema, expr *Expression) (*Predicate, error) {
	if expr == nil {
		return nil, nil
	}
	c := &compiler{schema: schema}
	clause, err := c.compile(*expr)
	if err != nil {
		return nil, err
	}
	return &Predicate{Clause: clause, Args: c.args}, nil
}

func (c *compiler) compile(expr Expression) (string, error) {
	switch expr.Kind {
	case ExprColumn:
		col, ok := c.schema.Column(expr.Attnum)
		if !ok {
			return "", unknownColumnErr(expr.Attnum)
		}
		return quoteIdentifier(col.Name), nil

	case ExprLiteral:
		c.args = append(c.args, expr.Value)
		return fmt.Sprintf("$%d", len(c.args)), nil

	case ExprOperator:
		spec, ok := lookupOperator(expr.Op)
		if !ok {
			return "", unknownOperatorErr(expr.Op)
		}
		if len(expr.Args) != spec.arity {
			return "", arityErr(expr.Op, spec.arity, len(expr.Args))
		}
		fragments := make([]string, len(expr.Args))
		for i, arg := range expr.Args {
			fragment, err := c.compile(arg)
			if err != nil {
				return "", err
			}
			fragments[i] = fragment
		}
		return spec.render(fragments), nil

	default:
		return "", malformedErr("filter", "unrecognized expression kind %d", expr.Kind)
	}
}

// CompileOrder builds the body of an ORDER BY clause from an order
// specification. Primary key columns not already named are appended as
// the final tie-break so row order is never left to storage iteration
// order; tables without a primary key fall back to ordering by every
// column in attnum order.
func CompileOrder(schema *TableSchema, order []OrderBy) (string, error) {
	var parts []string
	seen := make(map[int]bool)

	for _, o := range order {
		col, ok := schema.Column(o.Attnum)
		if !ok {
			return "", unknownColumnErr(o.Attnum)
		}
		part := quoteIdentifier(col.Name)
		if o.Desc {
			part += " DESC"
		} else {
			part += " ASC"
		}
		parts = append(parts, part)
		seen[o.Attnum] = true
	}

	tieBreak := schema.PrimaryKey
	if len(tieBreak) == 0 {
		tieBreak = schema.Attnums()
	}
	for _, attnum := range tieBreak {
		if seen[attnum] {
			continue
		}
		if col, ok := schema.Column(attnum); ok {
			parts = append(parts, tieBreakExpr(col)+" ASC")
		}
	}

	return strings.Join(parts, ", "), nil
}

// tieBreakExpr renders a tie-break column. Types without a default
// ordering operator (json, xml, geometric and other user-defined
// categories) are compared through their text form so a PK-less table
// containing one stays queryable.
func tieBreakExpr(col Column) string {
	quoted := quoteIdentifier(col.Name)
	if !orderableCategory(col.TypeCategory) {
		return quoted + "::text"
	}
	return quoted
}

// orderableCategory reports whether a pg_type.typcategory has a
// default btree ordering operator for all its common members.
func orderableCategory(c byte) bool {
	switch c {
	case 'B', 'D', 'E', 'I', 'N', 'R', 'S', 'T', 'V':
		return true
	default:
		return false
	}
}
