package fact

import "strings"

// Fact is an ordered tuple of terms. Position is the join key.
type Fact struct {
	Terms []Term
}

func New(terms ...Term) *Fact {
	return &Fact{Terms: append([]Term(nil), terms...)}
}

// Parse tokenizes whitespace separated text. It never fails: text that
// isn't meant as a pattern still becomes a fact.
func Parse(input string) *Fact {
	tokens := strings.Fields(input)
	terms := make([]Term, len(tokens))
	for idx, token := range tokens {
		terms[idx] = ParseTerm(token)
	}
	return &Fact{Terms: terms}
}

// ParseAll parses each query part into a pattern fact.
func ParseAll(parts []string) []*Fact {
	facts := make([]*Fact, len(parts))
	for idx, part := range parts {
		facts[idx] = Parse(part)
	}
	return facts
}

func (f *Fact) Len() int {
	return len(f.Terms)
}

func (f *Fact) String() string {
	return render(f.Terms)
}

func (f *Fact) Equal(other *Fact) bool {
	if len(f.Terms) != len(other.Terms) {
		return false
	}
	for idx, term := range f.Terms {
		if term != other.Terms[idx] {
			return false
		}
	}
	return true
}

func render(terms []Term) string {
	parts := make([]string, len(terms))
	for idx, term := range terms {
		parts[idx] = term.String()
	}
	return strings.Join(parts, " ")
}
