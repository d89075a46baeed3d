package roomdb

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type recordingCallback struct {
	mu    sync.Mutex
	calls [][]Result
}

func (r *recordingCallback) Call(_ context.Context, results []Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, results)
	return nil
}

func (r *recordingCallback) last() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func resultMaps(results []Result) []map[string]string {
	out := make([]map[string]string, len(results))
	for idx, r := range results {
		out[idx] = r.Map()
	}
	return out
}

func TestEvaluateDispatchesAllSolutions(t *testing.T) {
	db := newTestDatabase("fox is red", "rock is red", "sky is blue")
	cb := &recordingCallback{}
	db.When("#1", []string{"$x is red"}, cb)

	require.NoError(t, db.EvaluateSubscriptions(context.Background()))
	require.Equal(t, []map[string]string{
		{"x": "fox"},
		{"x": "rock"},
	}, resultMaps(cb.last()))
}

func TestEvaluateAlwaysInvokes(t *testing.T) {
	db := newTestDatabase()
	cb := &recordingCallback{}
	db.When("#1", []string{"$x is red"}, cb)

	ctx := context.Background()
	require.NoError(t, db.EvaluateSubscriptions(ctx))
	require.NoError(t, db.EvaluateSubscriptions(ctx))
	require.Len(t, cb.calls, 2)
	require.Empty(t, cb.calls[0])
	require.Empty(t, cb.calls[1])
}

func TestEvaluateRegistrationOrder(t *testing.T) {
	db := newTestDatabase("fox is red")
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		db.When(name, []string{"$x is red"}, CallbackFunc(func(context.Context, []Result) error {
			order = append(order, name)
			return nil
		}))
	}
	require.NoError(t, db.EvaluateSubscriptions(context.Background()))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestCallbackMayReenterDatabase(t *testing.T) {
	db := newTestDatabase("fox is red")
	db.When("#1", []string{"$x is red"}, CallbackFunc(func(_ context.Context, results []Result) error {
		for _, r := range results {
			x, _ := r.Get("x")
			db.Retract("#1 saw %")
			db.ClaimString("#1 saw " + x)
			db.When("#1", []string{"$y is blue"}, CallbackFunc(func(context.Context, []Result) error {
				return nil
			}))
			db.Select([]string{"%any"})
		}
		return nil
	}))

	require.NoError(t, db.EvaluateSubscriptions(context.Background()))
	require.Equal(t, []string{"fox is red", "#1 saw fox"}, factStrings(db.Facts()))
	require.Equal(t, 2, db.NumSubscriptions())
}

func TestEvaluateCollectsFailures(t *testing.T) {
	db := newTestDatabase("fox is red")
	after := &recordingCallback{}
	db.When("#1", []string{"$x is red"}, CallbackFunc(func(context.Context, []Result) error {
		return errors.New("boom")
	}))
	db.When("#2", []string{"$x is red"}, CallbackFunc(func(context.Context, []Result) error {
		panic("kaboom")
	}))
	db.When("#3", []string{"$x is red"}, after)

	err := db.EvaluateSubscriptions(context.Background())
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	require.Contains(t, errs[0].Error(), "boom")
	var panicErr *callbackPanic
	require.True(t, errors.As(errs[1], &panicErr))
	require.Equal(t, "callback panicked: kaboom", panicErr.Error())

	// Later subscriptions still run, and the store is intact.
	require.Len(t, after.calls, 1)
	require.Equal(t, 1, db.Len())
}

func TestRemoveByOwner(t *testing.T) {
	db := newTestDatabase()
	noop := CallbackFunc(func(context.Context, []Result) error { return nil })
	db.When("#1", []string{"$x"}, noop)
	kept := db.When("#2", []string{"$x"}, noop)
	db.When("#1", []string{"$y"}, noop)

	require.Equal(t, 2, db.RemoveByOwner("#1"))
	require.Equal(t, 1, db.NumSubscriptions())
	require.Equal(t, 0, db.RemoveByOwner("#1"))

	_, ok := db.LastResults(kept)
	require.True(t, ok)
}

func TestLastResults(t *testing.T) {
	db := newTestDatabase("fox is red")
	id := db.When("#1", []string{"$x is red"}, &recordingCallback{})

	results, ok := db.LastResults(id)
	require.True(t, ok)
	require.Nil(t, results)

	require.NoError(t, db.EvaluateSubscriptions(context.Background()))
	results, ok = db.LastResults(id)
	require.True(t, ok)
	require.Equal(t, []map[string]string{{"x": "fox"}}, resultMaps(results))

	db.RemoveByOwner("#1")
	_, ok = db.LastResults(id)
	require.False(t, ok)
}

func TestWhenCopiesQuery(t *testing.T) {
	db := newTestDatabase("fox is red")
	parts := []string{"$x is red"}
	cb := &recordingCallback{}
	db.When("#1", parts, cb)
	parts[0] = "$x is blue"

	require.NoError(t, db.EvaluateSubscriptions(context.Background()))
	require.Len(t, cb.last(), 1)
}

func TestWhenSelect(t *testing.T) {
	db := newTestDatabase("fox is red")
	cb := &recordingCallback{}
	id, initial := db.WhenSelect("#1", []string{"$x is red"}, cb)
	require.Equal(t, []map[string]string{{"x": "fox"}}, resultMaps(initial))
	require.Equal(t, 1, db.NumSubscriptions())
	require.Empty(t, cb.calls)

	db.ClaimString("rock is red")
	require.NoError(t, db.EvaluateSubscriptions(context.Background()))
	results, ok := db.LastResults(id)
	require.True(t, ok)
	require.Equal(t, []map[string]string{{"x": "fox"}, {"x": "rock"}}, resultMaps(results))
}

// A claim racing with WhenSelect shows up either in the initial results or in
// the next evaluation.
func TestWhenSelectMissesNoClaim(t *testing.T) {
	for i := 0; i < 50; i++ {
		db := newTestDatabase()
		claimed := make(chan struct{})
		go func() {
			defer close(claimed)
			db.ClaimString("fox is red")
		}()
		cb := &recordingCallback{}
		_, initial := db.WhenSelect("#1", []string{"$x is red"}, cb)
		<-claimed
		if len(initial) == 1 {
			continue
		}
		require.NoError(t, db.EvaluateSubscriptions(context.Background()))
		require.Len(t, cb.last(), 1)
	}
}
