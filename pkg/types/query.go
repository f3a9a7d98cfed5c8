package types

// Row is one raw result row keyed by column name.
type Row map[string]any

// JoinKind identifies the join operation recorded in a join ledger.
type JoinKind string

// Supported join kinds.
const (
	JoinPlain JoinKind = "join"
	JoinInner JoinKind = "joinInner"
	JoinLeft  JoinKind = "joinLeft"
)

// SQL returns the join keyword for the kind.
func (k JoinKind) SQL() string {
	switch k {
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	default:
		return "JOIN"
	}
}

// Part names a clause category of a select statement. Reset and Part lookups
// on the statement builder take one of these values.
type Part string

// Clause categories.
const (
	PartDistinct    Part = "distinct"
	PartColumns     Part = "columns"
	PartFrom        Part = "from"
	PartWhere       Part = "where"
	PartGroup       Part = "group"
	PartHaving      Part = "having"
	PartOrder       Part = "order"
	PartLimitCount  Part = "limitcount"
	PartLimitOffset Part = "limitoffset"
)

// Parts lists every clause category in rendering order.
var Parts = []Part{
	PartDistinct,
	PartColumns,
	PartFrom,
	PartWhere,
	PartGroup,
	PartHaving,
	PartOrder,
	PartLimitCount,
	PartLimitOffset,
}

// ParsePart returns the Part named by s and whether it is known.
func ParsePart(s string) (Part, bool) {
	for _, p := range Parts {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}
