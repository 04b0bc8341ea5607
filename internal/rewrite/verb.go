package rewrite

// Verb names an operation kind.
type Verb string

// Client-facing verbs.
const (
	FetchOne          Verb = "fetchOne"
	FetchOneOrThrow   Verb = "fetchOneOrThrow"
	FetchFirst        Verb = "fetchFirst"
	FetchFirstOrThrow Verb = "fetchFirstOrThrow"
	FetchMany         Verb = "fetchMany"
	Create            Verb = "create"
	CreateMany        Verb = "createMany"
	Delete            Verb = "delete"
	DeleteMany        Verb = "deleteMany"
	Update            Verb = "update"
	UpdateMany        Verb = "updateMany"
	Upsert            Verb = "upsert"
	Count             Verb = "count"
	Aggregate         Verb = "aggregate"
	GroupBy           Verb = "groupBy"
)

// Recursion targets used while walking nested filter and shape trees.
// They are never sent to a store.
const (
	FilterClause  Verb = "filterClause"
	IncludeClause Verb = "includeClause"
	SelectClause  Verb = "selectClause"
)

var clientVerbs = []Verb{
	FetchOne, FetchOneOrThrow, FetchFirst, FetchFirstOrThrow, FetchMany,
	Create, CreateMany, Delete, DeleteMany, Update, UpdateMany, Upsert,
	Count, Aggregate, GroupBy,
}

// ClientVerbs returns every verb a host may be asked to execute.
func ClientVerbs() []Verb {
	out := make([]Verb, len(clientVerbs))
	copy(out, clientVerbs)
	return out
}

// ParseVerb resolves a client-facing verb name.
func ParseVerb(s string) (Verb, bool) {
	for _, v := range clientVerbs {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// ReturnsRecords reports whether the verb yields a record or a list of
// records (as opposed to a count, aggregate or batch summary).
func (v Verb) ReturnsRecords() bool {
	switch v {
	case FetchOne, FetchOneOrThrow, FetchFirst, FetchFirstOrThrow, FetchMany,
		Create, Delete, Update, Upsert:
		return true
	}
	return false
}

// IsClause reports whether v is an internal recursion target.
func (v Verb) IsClause() bool {
	return v == FilterClause || v == IncludeClause || v == SelectClause
}

// Modifier is the relation-filter keyword under which a nested filter
// clause was found. The zero value means none (to-one or plain filter).
type Modifier string

const (
	ModifierNone  Modifier = ""
	ModifierSome  Modifier = "some"
	ModifierEvery Modifier = "every"
	ModifierNo    Modifier = "none"
)
