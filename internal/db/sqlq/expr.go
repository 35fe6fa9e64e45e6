// Package sqlq is a typed PostgreSQL expression tree and SELECT builder.
// Values always travel as $n parameters; identifiers are quoted with pgx.
package sqlq

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Expr is a renderable SQL expression.
type Expr interface {
	render(b *buffer)
}

// buffer accumulates SQL text and positional arguments.
type buffer struct {
	sb   strings.Builder
	args []any
}

func (b *buffer) write(s string) { b.sb.WriteString(s) }

func (b *buffer) param(v any) {
	b.args = append(b.args, v)
	b.sb.WriteByte('$')
	b.sb.WriteString(strconv.Itoa(len(b.args)))
}

func (b *buffer) list(sep string, exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			b.write(sep)
		}
		e.render(b)
	}
}

// Ident quotes a possibly schema-qualified name ("public.content").
func Ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

type column struct{ table, name string }

// Col references a column of a table alias.
func Col(table, name string) Expr { return column{table: table, name: name} }

func (c column) render(b *buffer) {
	if c.table == "" {
		b.write(pgx.Identifier{c.name}.Sanitize())
		return
	}
	b.write(pgx.Identifier{c.table, c.name}.Sanitize())
}

// Name references an output column by alias (ORDER BY cnt).
func Name(name string) Expr { return column{name: name} }

type param struct{ v any }

// Param binds a value as a positional parameter.
func Param(v any) Expr { return param{v: v} }

func (p param) render(b *buffer) { b.param(p.v) }

type intLit int64

// Int renders an integer literal inline.
func Int(n int64) Expr { return intLit(n) }

func (n intLit) render(b *buffer) { b.write(strconv.FormatInt(int64(n), 10)) }

type keyword string

// Null is the SQL NULL literal.
var Null Expr = keyword("NULL")

// True is the SQL TRUE literal.
var True Expr = keyword("TRUE")

func (k keyword) render(b *buffer) { b.write(string(k)) }

type call struct {
	fn   string
	args []Expr
}

func (c call) render(b *buffer) {
	b.write(c.fn)
	b.write("(")
	b.list(", ", c.args)
	b.write(")")
}

// Lower is LOWER(e).
func Lower(e Expr) Expr { return call{fn: "LOWER", args: []Expr{e}} }

// Coalesce is COALESCE(exprs...).
func Coalesce(exprs ...Expr) Expr { return call{fn: "COALESCE", args: exprs} }

// NullIf is NULLIF(a, b).
func NullIf(a, b Expr) Expr { return call{fn: "NULLIF", args: []Expr{a, b}} }

// Floor is FLOOR(e).
func Floor(e Expr) Expr { return call{fn: "FLOOR", args: []Expr{e}} }

// Min is MIN(e).
func Min(e Expr) Expr { return call{fn: "MIN", args: []Expr{e}} }

// Max is MAX(e).
func Max(e Expr) Expr { return call{fn: "MAX", args: []Expr{e}} }

// CountDistinct is COUNT(DISTINCT e).
func CountDistinct(e Expr) Expr { return countExpr{arg: e, distinct: true} }

type countExpr struct {
	arg      Expr
	distinct bool
}

// CountAll is COUNT(*).
var CountAll Expr = countExpr{}

func (c countExpr) render(b *buffer) {
	if c.arg == nil {
		b.write("COUNT(*)")
		return
	}
	b.write("COUNT(")
	if c.distinct {
		b.write("DISTINCT ")
	}
	c.arg.render(b)
	b.write(")")
}

// Type is a cast target.
type Type string

// Cast targets.
const (
	Text    Type = "TEXT"
	BigInt  Type = "BIGINT"
	Numeric Type = "NUMERIC"
)

type cast struct {
	e Expr
	t Type
}

// Cast is CAST(e AS t).
func Cast(e Expr, t Type) Expr { return cast{e: e, t: t} }

func (c cast) render(b *buffer) {
	b.write("CAST(")
	c.e.render(b)
	b.write(" AS ")
	b.write(string(c.t))
	b.write(")")
}

type binary struct {
	op   string
	l, r Expr
}

func (x binary) render(b *buffer) {
	b.write("(")
	x.l.render(b)
	b.write(" ")
	b.write(x.op)
	b.write(" ")
	x.r.render(b)
	b.write(")")
}

// Eq is a = b.
func Eq(a, c Expr) Expr { return binary{op: "=", l: a, r: c} }

// Ne is a <> b.
func Ne(a, c Expr) Expr { return binary{op: "<>", l: a, r: c} }

// Ge is a >= b.
func Ge(a, c Expr) Expr { return binary{op: ">=", l: a, r: c} }

// Gt is a > b.
func Gt(a, c Expr) Expr { return binary{op: ">", l: a, r: c} }

// Le is a <= b.
func Le(a, c Expr) Expr { return binary{op: "<=", l: a, r: c} }

// Mul is a * b.
func Mul(a, c Expr) Expr { return binary{op: "*", l: a, r: c} }

// Div is a / b.
func Div(a, c Expr) Expr { return binary{op: "/", l: a, r: c} }

// Matches is a ~ pattern (POSIX regex).
func Matches(a Expr, pattern string) Expr { return binary{op: "~", l: a, r: Param(pattern)} }

// Any is e = ANY($n) over a slice parameter.
func Any(e Expr, values any) Expr {
	return binary{op: "=", l: e, r: call{fn: "ANY", args: []Expr{Param(values)}}}
}

type like struct {
	e       Expr
	pattern string
}

// Like is e LIKE pattern ESCAPE '\'.
func Like(e Expr, pattern string) Expr { return like{e: e, pattern: pattern} }

func (l like) render(b *buffer) {
	b.write("(")
	l.e.render(b)
	b.write(" LIKE ")
	b.param(l.pattern)
	b.write(` ESCAPE '\'`)
	b.write(")")
}

// EscapeLike escapes LIKE metacharacters so s matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Contains returns a %s% LIKE pattern with s escaped.
func Contains(s string) string { return "%" + EscapeLike(s) + "%" }

type in struct {
	e      Expr
	values []any
}

// In is e IN ($1, $2, ...). An empty list renders FALSE.
func In[T any](e Expr, values ...T) Expr {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return in{e: e, values: vs}
}

func (x in) render(b *buffer) {
	if len(x.values) == 0 {
		b.write("FALSE")
		return
	}
	b.write("(")
	x.e.render(b)
	b.write(" IN (")
	for i, v := range x.values {
		if i > 0 {
			b.write(", ")
		}
		b.param(v)
	}
	b.write("))")
}

type postfix struct {
	e  Expr
	op string
}

func (p postfix) render(b *buffer) {
	b.write("(")
	p.e.render(b)
	b.write(p.op)
	b.write(")")
}

// IsNull is e IS NULL.
func IsNull(e Expr) Expr { return postfix{e: e, op: " IS NULL"} }

// IsNotNull is e IS NOT NULL.
func IsNotNull(e Expr) Expr { return postfix{e: e, op: " IS NOT NULL"} }

type junction struct {
	op    string
	exprs []Expr
}

// And joins exprs with AND. An empty And renders TRUE.
func And(exprs ...Expr) Expr { return junction{op: " AND ", exprs: exprs} }

// Or joins exprs with OR. An empty Or renders FALSE.
func Or(exprs ...Expr) Expr { return junction{op: " OR ", exprs: exprs} }

func (j junction) render(b *buffer) {
	switch len(j.exprs) {
	case 0:
		if j.op == " AND " {
			b.write("TRUE")
		} else {
			b.write("FALSE")
		}
		return
	case 1:
		j.exprs[0].render(b)
		return
	}
	b.write("(")
	b.list(j.op, j.exprs)
	b.write(")")
}

type exists struct{ sel *Select }

// Exists is EXISTS (subquery).
func Exists(sel *Select) Expr { return exists{sel: sel} }

func (x exists) render(b *buffer) {
	b.write("EXISTS (")
	x.sel.render(b)
	b.write(")")
}

type caseWhen struct {
	when, then, els Expr
}

// CaseWhen is CASE WHEN cond THEN then ELSE els END. A nil els renders NULL.
func CaseWhen(cond, then, els Expr) Expr { return caseWhen{when: cond, then: then, els: els} }

func (c caseWhen) render(b *buffer) {
	b.write("CASE WHEN ")
	c.when.render(b)
	b.write(" THEN ")
	c.then.render(b)
	b.write(" ELSE ")
	if c.els == nil {
		b.write("NULL")
	} else {
		c.els.render(b)
	}
	b.write(" END")
}

// When is one branch of a Case.
type When struct {
	Cond Expr
	Then Expr
}

type caseExpr struct {
	whens []When
	els   Expr
}

// Case is CASE WHEN ... THEN ... [WHEN ...] ELSE els END. The first matching branch wins.
// With no branches it renders els alone.
func Case(els Expr, whens ...When) Expr { return caseExpr{whens: whens, els: els} }

func (c caseExpr) render(b *buffer) {
	if len(c.whens) == 0 {
		c.els.render(b)
		return
	}
	b.write("CASE")
	for _, w := range c.whens {
		b.write(" WHEN ")
		w.Cond.render(b)
		b.write(" THEN ")
		w.Then.render(b)
	}
	b.write(" ELSE ")
	c.els.render(b)
	b.write(" END")
}

// Render renders a standalone expression, for tests and debugging.
func Render(e Expr) (string, []any) {
	var b buffer
	e.render(&b)
	return b.sb.String(), b.args
}
