package fact

import "fmt"

type Kind int

const (
	// Text is the default kind for unprefixed tokens.
	Text Kind = iota
	// ID is a literal flagged as an identifier, e.g. the program that claimed a fact.
	ID
	// Variable binds whatever concrete term sits in the same position.
	Variable
	// Postfix binds the rest of a concrete fact, from its position to the end.
	Postfix
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case ID:
		return "id"
	case Variable:
		return "variable"
	case Postfix:
		return "postfix"
	}
	panic(fmt.Sprintf("unknown term kind %d", int(k)))
}

func (k Kind) sigil() string {
	switch k {
	case ID:
		return "#"
	case Variable:
		return "$"
	case Postfix:
		return "%"
	}
	return ""
}

// Term is an atomic value inside a fact. Terms are compared by value:
// same kind and same payload.
type Term struct {
	Kind  Kind
	Value string
}

func NewText(value string) Term { return Term{Kind: Text, Value: value} }
func NewID(value string) Term { return Term{Kind: ID, Value: value} }
func NewVariable(name string) Term { return Term{Kind: Variable, Value: name} }
func NewPostfix(name string) Term { return Term{Kind: Postfix, Value: name} }

// ParseTerm reads a single token. The first character selects the kind.
func ParseTerm(token string) Term {
	if token == "" {
		return NewText("")
	}
	switch token[0] {
	case '$':
		return NewVariable(token[1:])
	case '%':
		return NewPostfix(token[1:])
	case '#':
		return NewID(token[1:])
	}
	return NewText(token)
}

func (t Term) String() string {
	return t.Kind.sigil() + t.Value
}

// IsPattern is true for variables and postfix terms.
func (t Term) IsPattern() bool {
	return t.Kind == Variable || t.Kind == Postfix
}

// IsWildcard is true for unnamed pattern terms, which match anything and bind nothing.
func (t Term) IsWildcard() bool {
	return t.IsPattern() && t.Value == ""
}
