package wire

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/types"
)

// SQLText renders a compiled statement as parameterized SQL for the
// SQLite sink. The rendering is lossy on purpose: refinements erase to
// their base storage class and provenance wrappers flatten to the inner
// value. Values are always parameterized, never interpolated.
//
// SELECT output always carries an ORDER BY so result order is
// deterministic; when the statement declares none, the primary key (or
// the first column) serves as the tiebreaker.
func SQLText(stmt ir.Statement) (string, []any, error) {
	switch s := stmt.(type) {
	case *ir.Insert:
		return insertSQL(s)
	case *ir.Select:
		return selectSQL(s)
	case *ir.Update:
		return updateSQL(s)
	case *ir.Delete:
		return deleteSQL(s)
	case *ir.CreateTable:
		return createSQL(s)
	case *ir.Normalize:
		return "", nil, serr("sql", "NORMALIZE has no SQL rendering; it rewrites the schema, not rows")
	default:
		return "", nil, serr("sql", "unsupported statement %T", stmt)
	}
}

func insertSQL(s *ir.Insert) (string, []any, error) {
	rows := s.Rows()
	cols := make([]string, len(rows[0]))
	for i, cv := range rows[0] {
		cols[i] = cv.Column
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", s.Table(), strings.Join(cols, ", "))
	var params []any
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders(len(row)))
		for _, cv := range row {
			p, err := sqlParam(cv.Value)
			if err != nil {
				return "", nil, err
			}
			params = append(params, p)
		}
	}
	return b.String(), params, nil
}

func selectSQL(s *ir.Select) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Distinct() {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(s.ProjectedColumns(), ", "))
	fmt.Fprintf(&b, " FROM %s", s.Table())

	var params []any
	if s.Where() != nil {
		sql, ps, err := predicateSQL(s.Where())
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(sql)
		params = append(params, ps...)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderClause(s))

	if s.Limit() >= 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, s.Limit())
	}
	return b.String(), params, nil
}

// orderClause renders the declared keys plus a stable tiebreaker.
func orderClause(s *ir.Select) string {
	var keys []string
	ordered := make(map[string]bool)
	for _, k := range s.OrderBy() {
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		keys = append(keys, k.Column+dir)
		ordered[k.Column] = true
	}
	tie := tiebreaker(s)
	if !ordered[tie] {
		keys = append(keys, tie+" ASC")
	}
	return strings.Join(keys, ", ")
}

func tiebreaker(s *ir.Select) string {
	for _, c := range s.Schema().Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return s.Schema().Columns[0].Name
}

func updateSQL(s *ir.Update) (string, []any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET ", s.Table())
	var params []any
	for i, cv := range s.Sets() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = ?", cv.Column)
		p, err := sqlParam(cv.Value)
		if err != nil {
			return "", nil, err
		}
		params = append(params, p)
	}
	sql, ps, err := predicateSQL(s.Where())
	if err != nil {
		return "", nil, err
	}
	b.WriteString(" WHERE ")
	b.WriteString(sql)
	return b.String(), append(params, ps...), nil
}

func deleteSQL(s *ir.Delete) (string, []any, error) {
	sql, params, err := predicateSQL(s.Where())
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", s.Table(), sql), params, nil
}

func createSQL(s *ir.CreateTable) (string, []any, error) {
	def := s.Definition()
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		col := fmt.Sprintf("%s %s NOT NULL", c.Name, storageClass(c.Type))
		if c.PrimaryKey {
			col += " PRIMARY KEY"
		} else if c.Unique {
			col += " UNIQUE"
		}
		cols[i] = col
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", def.Name, strings.Join(cols, ", ")), nil, nil
}

// storageClass maps a type expression to the SQLite storage class of
// its base primitive. Vectors, scores and provenance wrappers of
// non-scalar shape store as TEXT holding canonical JSON.
func storageClass(t types.TypeExpr) string {
	switch t.(type) {
	case types.Vector, types.CompositeScore:
		return "TEXT"
	}
	switch types.BaseOf(t) {
	case types.Nat, types.Int, types.Bool:
		return "INTEGER"
	case types.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}

func predicateSQL(p ir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case ir.Compare:
		param, err := sqlParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		op := string(pred.Op)
		if pred.Op == ir.OpNeq {
			op = "<>"
		}
		return fmt.Sprintf("%s %s ?", pred.Column, op), []any{param}, nil
	case ir.And:
		return joinSQL(pred.Predicates, " AND ")
	case ir.Or:
		return joinSQL(pred.Predicates, " OR ")
	case ir.Not:
		sql, params, err := predicateSQL(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("NOT (%s)", sql), params, nil
	case ir.Between:
		low, err := sqlParam(pred.Low)
		if err != nil {
			return "", nil, err
		}
		high, err := sqlParam(pred.High)
		if err != nil {
			return "", nil, err
		}
		kw := "BETWEEN"
		if pred.Negated {
			kw = "NOT BETWEEN"
		}
		return fmt.Sprintf("%s %s ? AND ?", pred.Column, kw), []any{low, high}, nil
	case ir.In:
		var params []any
		for _, v := range pred.Set {
			p, err := sqlParam(v)
			if err != nil {
				return "", nil, err
			}
			params = append(params, p)
		}
		kw := "IN"
		if pred.Negated {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s %s", pred.Column, kw, placeholders(len(pred.Set))), params, nil
	case ir.IsNull:
		if pred.Negated {
			return pred.Column + " IS NOT NULL", nil, nil
		}
		return pred.Column + " IS NULL", nil, nil
	default:
		return "", nil, serr("sql", "unsupported predicate %T", p)
	}
}

func joinSQL(preds []ir.Predicate, sep string) (string, []any, error) {
	parts := make([]string, len(preds))
	var params []any
	for i, p := range preds {
		sql, ps, err := predicateSQL(p)
		if err != nil {
			return "", nil, err
		}
		parts[i] = "(" + sql + ")"
		params = append(params, ps...)
	}
	return strings.Join(parts, sep), params, nil
}

func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return "(" + strings.Join(marks, ", ") + ")"
}

// sqlParam flattens a typed value to a driver-compatible parameter.
func sqlParam(v types.TypedValue) (any, error) {
	switch raw := v.Raw().(type) {
	case int64, float64, string, bool:
		return raw, nil
	case uuid.UUID:
		return raw.String(), nil
	case time.Time:
		return raw.UTC().Format(time.RFC3339Nano), nil
	case types.ProvValue:
		// Provenance flattens to the wrapped value. The audit metadata
		// lives in the statement's provenance record, not the cell.
		return sqlParam(raw.Inner)
	case []types.TypedValue, types.ScoreValue:
		var buf bytes.Buffer
		if err := writeRawJSON(&buf, v); err != nil {
			return nil, err
		}
		return buf.String(), nil
	default:
		return nil, serr("sql", "unsupported representation %T", raw)
	}
}
