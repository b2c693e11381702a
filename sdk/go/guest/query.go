package guest

import (
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/query"
)

// QueryBuilder assembles a query.Spec.
type QueryBuilder struct {
	spec query.Spec
}

// NewQuery starts a Frame query projecting components in the given order.
func NewQuery(components ...models.ComponentIndex) *QueryBuilder {
	return &QueryBuilder{spec: query.Spec{Components: components}}
}

func (q *QueryBuilder) Include(indices ...models.ComponentIndex) *QueryBuilder {
	q.spec.Include = append(q.spec.Include, indices...)
	return q
}

func (q *QueryBuilder) Exclude(indices ...models.ComponentIndex) *QueryBuilder {
	q.spec.Exclude = append(q.spec.Exclude, indices...)
	return q
}

func (q *QueryBuilder) Changed(indices ...models.ComponentIndex) *QueryBuilder {
	q.spec.Changed = append(q.spec.Changed, indices...)
	return q
}

func (q *QueryBuilder) On(event query.Event) *QueryBuilder {
	q.spec.Event = event
	return q
}

func (q *QueryBuilder) Spec() query.Spec {
	return q.spec
}

// Build compiles the query on the host.
func (q *QueryBuilder) Build(g *Guest) Query {
	return Query{g: g, Handle: g.Compile(q.spec)}
}

// Query is a compiled handle bound to a guest.
type Query struct {
	g      *Guest
	Handle query.Handle
}

// Eval evaluates the query once, advancing its change state.
func (q Query) Eval() []query.Row {
	return q.g.Eval(q.Handle)
}

// Each evaluates the query and calls fn per row.
func (q Query) Each(fn func(row query.Row)) {
	for _, row := range q.Eval() {
		fn(row)
	}
}
