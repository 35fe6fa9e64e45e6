package sqlq

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// JoinKind is the join type.
type JoinKind string

// Join kinds.
const (
	InnerJoin       JoinKind = "JOIN"
	LeftJoinLateral JoinKind = "LEFT JOIN LATERAL"
)

type selectItem struct {
	expr  Expr
	alias string
	star  string // alias.* when set
}

type join struct {
	kind  JoinKind
	table string
	sub   *Select
	alias string
	on    Expr
}

type orderItem struct {
	expr Expr
	desc bool
}

// Select is a fluent SELECT builder. Builders are not safe for concurrent mutation; Clone before branching.
type Select struct {
	items   []selectItem
	table   string
	alias   string
	joins   []join
	where   []Expr
	groupBy []int
	orderBy []orderItem
	limit   int
	offset  int
}

// From starts a SELECT over table AS alias.
func From(table, alias string) *Select {
	return &Select{table: table, alias: alias}
}

// Column adds e AS alias to the select list. An empty alias omits AS.
func (s *Select) Column(e Expr, alias string) *Select {
	s.items = append(s.items, selectItem{expr: e, alias: alias})
	return s
}

// Star adds alias.* to the select list.
func (s *Select) Star(alias string) *Select {
	s.items = append(s.items, selectItem{star: alias})
	return s
}

// ClearColumns drops the select list.
func (s *Select) ClearColumns() *Select {
	s.items = nil
	return s
}

// Join adds an inner join on a table.
func (s *Select) Join(table, alias string, on Expr) *Select {
	s.joins = append(s.joins, join{kind: InnerJoin, table: table, alias: alias, on: on})
	return s
}

// LeftJoinLateral adds LEFT JOIN LATERAL (sub) AS alias ON TRUE.
func (s *Select) LeftJoinLateral(sub *Select, alias string) *Select {
	s.joins = append(s.joins, join{kind: LeftJoinLateral, sub: sub, alias: alias, on: True})
	return s
}

// HasJoin reports whether a join with alias already exists.
func (s *Select) HasJoin(alias string) bool {
	return slices.ContainsFunc(s.joins, func(j join) bool { return j.alias == alias })
}

// Where ANDs conditions onto the WHERE clause.
func (s *Select) Where(conds ...Expr) *Select {
	s.where = append(s.where, conds...)
	return s
}

// GroupBy groups by 1-based select list positions.
func (s *Select) GroupBy(positions ...int) *Select {
	s.groupBy = append(s.groupBy, positions...)
	return s
}

// OrderBy appends an ordering term.
func (s *Select) OrderBy(e Expr, desc bool) *Select {
	s.orderBy = append(s.orderBy, orderItem{expr: e, desc: desc})
	return s
}

// Limit sets LIMIT; zero or negative omits it.
func (s *Select) Limit(n int) *Select {
	s.limit = n
	return s
}

// Offset sets OFFSET; zero or negative omits it.
func (s *Select) Offset(n int) *Select {
	s.offset = n
	return s
}

// Clone returns an independent copy. Expression nodes are immutable and shared.
func (s *Select) Clone() *Select {
	c := *s
	c.items = slices.Clone(s.items)
	c.joins = slices.Clone(s.joins)
	c.where = slices.Clone(s.where)
	c.groupBy = slices.Clone(s.groupBy)
	c.orderBy = slices.Clone(s.orderBy)
	return &c
}

// Validate checks structural correctness.
func (s *Select) Validate() error {
	if s.table == "" {
		return errors.New("sqlq: select without table")
	}
	if len(s.items) == 0 {
		return errors.New("sqlq: select without columns")
	}
	for _, p := range s.groupBy {
		if p < 1 || p > len(s.items) {
			return fmt.Errorf("sqlq: group by position %d out of range", p)
		}
	}
	for _, j := range s.joins {
		if j.alias == "" {
			return errors.New("sqlq: join without alias")
		}
		if j.sub != nil {
			if err := j.sub.Validate(); err != nil {
				return fmt.Errorf("sqlq: lateral %s: %w", j.alias, err)
			}
		}
	}
	return nil
}

// Build renders the statement and its positional arguments.
func (s *Select) Build() (string, []any, error) {
	if err := s.Validate(); err != nil {
		return "", nil, err
	}
	var b buffer
	s.render(&b)
	return b.sb.String(), b.args, nil
}

// String renders the SQL text without arguments, for logging.
func (s *Select) String() string {
	var b buffer
	s.render(&b)
	return b.sb.String()
}

func (s *Select) render(b *buffer) {
	b.write("SELECT ")
	for i, it := range s.items {
		if i > 0 {
			b.write(", ")
		}
		switch {
		case it.star != "":
			b.write(pgx.Identifier{it.star}.Sanitize())
			b.write(".*")
		default:
			it.expr.render(b)
			if it.alias != "" {
				b.write(" AS ")
				b.write(pgx.Identifier{it.alias}.Sanitize())
			}
		}
	}

	b.write(" FROM ")
	b.write(Ident(s.table))
	if s.alias != "" {
		b.write(" AS ")
		b.write(pgx.Identifier{s.alias}.Sanitize())
	}

	for _, j := range s.joins {
		b.write(" ")
		b.write(string(j.kind))
		b.write(" ")
		if j.sub != nil {
			b.write("(")
			j.sub.render(b)
			b.write(")")
		} else {
			b.write(Ident(j.table))
		}
		b.write(" AS ")
		b.write(pgx.Identifier{j.alias}.Sanitize())
		b.write(" ON ")
		j.on.render(b)
	}

	if len(s.where) > 0 {
		b.write(" WHERE ")
		b.list(" AND ", s.where)
	}

	if len(s.groupBy) > 0 {
		b.write(" GROUP BY ")
		for i, p := range s.groupBy {
			if i > 0 {
				b.write(", ")
			}
			b.write(strconv.Itoa(p))
		}
	}

	if len(s.orderBy) > 0 {
		b.write(" ORDER BY ")
		for i, o := range s.orderBy {
			if i > 0 {
				b.write(", ")
			}
			o.expr.render(b)
			if o.desc {
				b.write(" DESC")
			} else {
				b.write(" ASC")
			}
		}
	}

	if s.limit > 0 {
		b.write(" LIMIT ")
		b.write(strconv.Itoa(s.limit))
	}
	if s.offset > 0 {
		b.write(" OFFSET ")
		b.write(strconv.Itoa(s.offset))
	}
}
