package roomdb

import (
	"fmt"
	"io"
	"time"

	"github.com/vilterp/roomdb/pkg/fact"
)

// Claim appends a fact. No validation, no deduplication.
func (db *Database) Claim(f *fact.Fact) {
	startTime := time.Now()
	db.mu.Lock()
	db.mu.facts = append(db.mu.facts, f)
	db.mu.Unlock()
	db.metrics.claimLatency.Observe(float64(time.Since(startTime).Nanoseconds()))
}

func (db *Database) ClaimString(text string) {
	db.Claim(fact.Parse(text))
}

// Retract removes every fact the pattern matches and returns how many were
// removed. The survivors keep their order.
func (db *Database) Retract(pattern string) int {
	startTime := time.Now()
	query := fact.Parse(pattern)

	db.mu.Lock()
	removed := db.retractLocked(query)
	db.mu.Unlock()

	db.metrics.retractLatency.Observe(float64(time.Since(startTime).Nanoseconds()))
	return removed
}

// Replace retracts pattern and claims facts without letting readers observe
// the store in between.
func (db *Database) Replace(pattern string, facts []*fact.Fact) int {
	startTime := time.Now()
	query := fact.Parse(pattern)

	db.mu.Lock()
	removed := db.retractLocked(query)
	db.mu.facts = append(db.mu.facts, facts...)
	db.mu.Unlock()

	db.metrics.replaceLatency.Observe(float64(time.Since(startTime).Nanoseconds()))
	return removed
}

// retractLocked tests each candidate with its own environment, so bindings
// made while matching one fact can't affect the next.
func (db *Database) retractLocked(query *fact.Fact) int {
	kept := db.mu.facts[:0]
	for _, f := range db.mu.facts {
		if fact.MatchFact(query, f, fact.NewEnv()) {
			continue
		}
		kept = append(kept, f)
	}
	removed := len(db.mu.facts) - len(kept)
	// Drop references held by the tail of the old backing array.
	for idx := len(kept); idx < len(db.mu.facts); idx++ {
		db.mu.facts[idx] = nil
	}
	db.mu.facts = kept
	return removed
}

// Facts returns a snapshot of the store in store order.
func (db *Database) Facts() []*fact.Fact {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*fact.Fact(nil), db.mu.facts...)
}

func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.mu.facts)
}

// Print writes the store as canonical fact text, one per line.
func (db *Database) Print(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "DATABASE:"); err != nil {
		return err
	}
	for _, f := range db.Facts() {
		if _, err := fmt.Fprintln(w, f.String()); err != nil {
			return err
		}
	}
	return nil
}
