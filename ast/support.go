package ast

// Positioned is implemented by any AST node carrying a source position.
type Positioned interface {
	Position() Position
}

// Stateful is implemented by AST nodes whose presence affects derived sets
// tracked during enrichment (currencies seen, accounts referenced, ...).
type Stateful interface {
	AffectedNodes() []string
}

// DirectiveKind identifies the concrete type of a Directive without a type
// switch, so a handler registry can be keyed on it directly.
type DirectiveKind int

const (
	KindOpen DirectiveKind = iota
	KindClose
	KindBalance
	KindPad
	KindNote
	KindDocument
	KindPrice
	KindCommodity
	KindEvent
	KindCustom
	KindTransaction
	KindPnl
)

func (k DirectiveKind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindBalance:
		return "balance"
	case KindPad:
		return "pad"
	case KindNote:
		return "note"
	case KindDocument:
		return "document"
	case KindPrice:
		return "price"
	case KindCommodity:
		return "commodity"
	case KindEvent:
		return "event"
	case KindCustom:
		return "custom"
	case KindTransaction:
		return "transaction"
	case KindPnl:
		return "pnl"
	default:
		return "unknown"
	}
}

// AccountType identifies which of the five root categories an Account
// belongs to, per its first colon-separated segment.
type AccountType int

const (
	AccountTypeAssets AccountType = iota
	AccountTypeLiabilities
	AccountTypeEquity
	AccountTypeIncome
	AccountTypeExpenses
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeAssets:
		return "Assets"
	case AccountTypeLiabilities:
		return "Liabilities"
	case AccountTypeEquity:
		return "Equity"
	case AccountTypeIncome:
		return "Income"
	case AccountTypeExpenses:
		return "Expenses"
	default:
		return "Unknown"
	}
}

// RawString preserves both the exact source text of a quoted string literal
// (Raw, including surrounding quotes and any escape sequences) and its
// unescaped logical value (Value). Raw is empty when the string was built
// programmatically rather than parsed from source.
type RawString struct {
	Raw   string
	Value string
}

// NewRawString builds a RawString with no source text, for programmatic
// construction (e.g. the builders in this package).
func NewRawString(value string) RawString {
	return RawString{Value: value}
}

// NewRawStringWithRaw builds a RawString that remembers its original quoted
// source text alongside the unescaped value, for round-tripping.
func NewRawStringWithRaw(raw, value string) RawString {
	return RawString{Raw: raw, Value: value}
}

// HasRaw reports whether the original source text was preserved.
func (r RawString) HasRaw() bool {
	return r.Raw != ""
}

func (r RawString) String() string {
	return r.Value
}
