package parse

import (
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
)

// Words are anything between whitespace and semicolons, so fact sigils
// ($, %, #) and punctuation pass through untouched.
var (
	stmtLexer = lexer.Must(
		lexer.Regexp(`(\s+)` +
			`|(?P<Semi>;)` +
			`|(?P<Word>[^\s;]+)`,
		),
	)
	stmtParser = participle.MustBuild(&Statement{}, stmtLexer)
)

type Verb string

const (
	Claim    Verb = "CLAIM"
	Retract  Verb = "RETRACT"
	Select   Verb = "SELECT"
	When     Verb = "WHEN"
	Evaluate Verb = "EVALUATE"
	Facts    Verb = "FACTS"
)

type Statement struct {
	RawVerb string    `parser:"@Word"`
	Clauses []*Clause `parser:"[ @@ { \";\" @@ } ]"`
}

type Clause struct {
	Words []string `parser:"@Word { @Word }"`
}

func (c *Clause) String() string {
	return strings.Join(c.Words, " ")
}

// Verb is case insensitive; the parser can't tell verbs from fact words.
func (s *Statement) Verb() Verb {
	return Verb(strings.ToUpper(s.RawVerb))
}

// QueryParts renders each clause back to fact text.
func (s *Statement) QueryParts() []string {
	parts := make([]string, len(s.Clauses))
	for idx, clause := range s.Clauses {
		parts[idx] = clause.String()
	}
	return parts
}

// Parse parses a protocol statement: a verb followed by clauses separated by semicolons.
func Parse(stmt string) (*Statement, error) {
	result := &Statement{}
	err := stmtParser.ParseString(stmt, result)
	return result, err
}
