package roomdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vilterp/roomdb/pkg/fact"
	clog "github.com/vilterp/roomdb/pkg/log"
	"go.uber.org/multierr"
)

// Callback is the handle a subscription invokes with its results. The
// database never looks inside it.
type Callback interface {
	Call(ctx context.Context, results []Result) error
}

type CallbackFunc func(ctx context.Context, results []Result) error

func (f CallbackFunc) Call(ctx context.Context, results []Result) error {
	return f(ctx, results)
}

type SubscriptionID = uuid.UUID

// Subscription is a standing query owned by a program or connection.
type Subscription struct {
	ID    SubscriptionID
	Owner string
	Query []string

	query       []*fact.Fact
	callback    Callback
	lastResults []Result
}

// When registers a subscription. Duplicates are allowed.
func (db *Database) When(owner string, queryParts []string, callback Callback) SubscriptionID {
	sub := newSubscription(owner, queryParts, callback)
	db.mu.Lock()
	db.mu.subscriptions = append(db.mu.subscriptions, sub)
	db.mu.Unlock()
	return sub.ID
}

// WhenSelect registers a subscription and returns the query's current
// results, both under one lock. No claim can land between the two, so every
// change after the returned results reaches the callback.
func (db *Database) WhenSelect(
	owner string, queryParts []string, callback Callback,
) (SubscriptionID, []Result) {
	sub := newSubscription(owner, queryParts, callback)
	db.mu.Lock()
	defer db.mu.Unlock()
	results := toResults(db.collectSolutions(sub.query, fact.NewEnv()))
	db.mu.subscriptions = append(db.mu.subscriptions, sub)
	return sub.ID, results
}

func newSubscription(owner string, queryParts []string, callback Callback) *Subscription {
	return &Subscription{
		ID:       uuid.New(),
		Owner:    owner,
		Query:    append([]string(nil), queryParts...),
		query:    fact.ParseAll(queryParts),
		callback: callback,
	}
}

// RemoveByOwner drops every subscription owned by owner and returns how many
// were dropped.
func (db *Database) RemoveByOwner(owner string) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	kept := db.mu.subscriptions[:0]
	for _, sub := range db.mu.subscriptions {
		if sub.Owner != owner {
			kept = append(kept, sub)
		}
	}
	removed := len(db.mu.subscriptions) - len(kept)
	for idx := len(kept); idx < len(db.mu.subscriptions); idx++ {
		db.mu.subscriptions[idx] = nil
	}
	db.mu.subscriptions = kept
	return removed
}

func (db *Database) NumSubscriptions() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.mu.subscriptions)
}

// LastResults returns what the subscription was last dispatched with.
func (db *Database) LastResults(id SubscriptionID) ([]Result, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, sub := range db.mu.subscriptions {
		if sub.ID == id {
			return sub.lastResults, true
		}
	}
	return nil, false
}

type dispatch struct {
	id       SubscriptionID
	owner    string
	callback Callback
	results  []Result
}

// EvaluateSubscriptions re-runs every subscription's query and hands each
// callback its full result set, in registration order. Results are computed
// under the lock; callbacks run after it is released. A failing callback
// doesn't stop the others; the failures are returned together.
func (db *Database) EvaluateSubscriptions(ctx context.Context) error {
	startTime := time.Now()
	pending := db.computeDispatches()

	var errs error
	for _, d := range pending {
		if err := invoke(ctx, d); err != nil {
			db.metrics.callbackFailures.Inc()
			clog.Errorf(clog.From(ctx), "subscription %s (owner %s): %v", d.id, d.owner, err)
			errs = multierr.Append(errs, err)
		}
	}
	db.metrics.evaluateLatency.Observe(float64(time.Since(startTime).Nanoseconds()))
	return errs
}

func (db *Database) computeDispatches() []dispatch {
	db.mu.Lock()
	defer db.mu.Unlock()

	pending := make([]dispatch, 0, len(db.mu.subscriptions))
	for _, sub := range db.mu.subscriptions {
		results := toResults(db.collectSolutions(sub.query, fact.NewEnv()))
		sub.lastResults = results
		pending = append(pending, dispatch{
			id:       sub.ID,
			owner:    sub.Owner,
			callback: sub.callback,
			results:  results,
		})
	}
	return pending
}

func invoke(ctx context.Context, d dispatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &callbackPanic{value: fmt.Sprint(r)}
		}
	}()
	return errors.Wrapf(d.callback.Call(ctx, d.results), "subscription %s", d.id)
}
