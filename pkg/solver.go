package roomdb

import (
	"time"

	"github.com/vilterp/roomdb/pkg/fact"
)

// collectSolutions solves a conjunctive query depth first: clauses are joined
// in the order given, and each clause tries facts in store order. Identical
// solutions reached through different facts are all kept.
// Must be called with db.mu held.
func (db *Database) collectSolutions(query []*fact.Fact, env *fact.Env) []*fact.Env {
	if len(query) == 0 {
		return []*fact.Env{env}
	}
	var solutions []*fact.Env
	for _, f := range db.mu.facts {
		newEnv := env.Clone()
		if !fact.MatchFact(query[0], f, newEnv) {
			continue
		}
		solutions = append(solutions, db.collectSolutions(query[1:], newEnv)...)
	}
	return solutions
}

// Select returns every binding environment that satisfies all query parts.
func (db *Database) Select(queryParts []string) []*fact.Env {
	startTime := time.Now()
	query := fact.ParseAll(queryParts)

	db.mu.RLock()
	solutions := db.collectSolutions(query, fact.NewEnv())
	db.mu.RUnlock()

	db.metrics.selectLatency.Observe(float64(time.Since(startTime).Nanoseconds()))
	return solutions
}

// SelectResults is Select with each solution rendered for external callers.
func (db *Database) SelectResults(queryParts []string) []Result {
	return toResults(db.Select(queryParts))
}
