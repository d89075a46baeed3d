package fact

// MatchTerm unifies a pattern term with a concrete term, extending env.
// A variable that is already bound is checked against its binding rather
// than re-bound, so repeated names enforce equality.
func MatchTerm(pattern Term, concrete Term, env *Env) bool {
	return matchTerm(pattern, concrete, env, nil)
}

// seen holds the names followed so far. Stored facts may carry variables as
// ground data, which can make a binding chain loop back on itself; on a
// revisit the bound term is compared literally.
func matchTerm(pattern Term, concrete Term, env *Env, seen map[string]bool) bool {
	if !pattern.IsPattern() {
		return pattern == concrete
	}
	if pattern.Value == "" {
		return true
	}
	bound, ok := env.Lookup(pattern.Value)
	if !ok {
		env.bind(pattern.Value, concrete)
		return true
	}
	if seen[pattern.Value] {
		return bound == concrete
	}
	if seen == nil {
		seen = map[string]bool{}
	}
	seen[pattern.Value] = true
	return matchTerm(bound, concrete, env, seen)
}

// MatchFact matches a pattern fact against a concrete one position by
// position. A postfix term ends the scan: it captures the rendering of the
// remaining concrete terms, and pattern positions after it are ignored.
func MatchFact(pattern *Fact, concrete *Fact, env *Env) bool {
	if len(pattern.Terms) == 0 {
		return false
	}
	if pattern.Terms[len(pattern.Terms)-1].Kind == Postfix {
		if len(pattern.Terms) > len(concrete.Terms) {
			return false
		}
	} else if len(pattern.Terms) != len(concrete.Terms) {
		return false
	}
	for idx, term := range pattern.Terms {
		if term.Kind == Postfix {
			rest := NewText(render(concrete.Terms[idx:]))
			return MatchTerm(term, rest, env)
		}
		if !MatchTerm(term, concrete.Terms[idx], env) {
			return false
		}
	}
	return true
}
