package fact

import "strings"

type Binding struct {
	Name string
	Term Term
}

// Env is a binding environment: variable names mapped to the terms they
// resolved to, in the order they were first bound. A name is bound at most once.
type Env struct {
	bindings []Binding
}

func NewEnv() *Env {
	return &Env{}
}

func (e *Env) Lookup(name string) (Term, bool) {
	for _, b := range e.bindings {
		if b.Name == name {
			return b.Term, true
		}
	}
	return Term{}, false
}

// bind must only be called for names that aren't bound yet.
func (e *Env) bind(name string, term Term) {
	e.bindings = append(e.bindings, Binding{Name: name, Term: term})
}

func (e *Env) Clone() *Env {
	return &Env{bindings: append([]Binding(nil), e.bindings...)}
}

func (e *Env) Len() int {
	return len(e.bindings)
}

// Bindings returns a copy of the bindings in binding order.
func (e *Env) Bindings() []Binding {
	return append([]Binding(nil), e.bindings...)
}

// Get returns the rendered text of a bound variable, or "" if unbound.
func (e *Env) Get(name string) string {
	term, ok := e.Lookup(name)
	if !ok {
		return ""
	}
	return term.String()
}

func (e *Env) String() string {
	parts := make([]string, len(e.bindings))
	for idx, b := range e.bindings {
		parts[idx] = b.Name + ": " + b.Term.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
