package programs

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	roomdb "github.com/vilterp/roomdb/pkg"
	"github.com/vilterp/roomdb/pkg/fact"
	"github.com/vilterp/roomdb/pkg/illumination"
	"go.starlark.net/starlark"
)

// builtins is what a program sees besides the Starlark universe.
func (m *Manager) builtins(p *program) starlark.StringDict {
	return starlark.StringDict{
		"me":           starlark.MakeInt(p.id),
		"claim":        starlark.NewBuiltin("claim", m.claimBuiltin(p)),
		"retract":      starlark.NewBuiltin("retract", m.retractBuiltin),
		"when":         starlark.NewBuiltin("when", m.whenBuiltin(p)),
		"draw":         starlark.NewBuiltin("draw", m.drawBuiltin(p)),
		"illumination": illumination.Constructor,
	}
}

type builtinFunc = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

// claim(text) claims text as a fact tagged with the program's id.
func (m *Manager) claimBuiltin(p *program) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var text string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
			return nil, err
		}
		m.db.ClaimString(p.tag() + " " + text)
		return starlark.None, nil
	}
}

// retract(pattern) retracts across all programs and returns how many facts
// went away.
func (m *Manager) retractBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &pattern); err != nil {
		return nil, err
	}
	return starlark.MakeInt(m.db.Retract(pattern)), nil
}

// draw(ill) replaces the program's graphics with ill.
func (m *Manager) drawBuiltin(p *program) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var value starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &value); err != nil {
			return nil, err
		}
		ill, ok := value.(*illumination.Value)
		if !ok {
			return nil, &badArgument{fn: b.Name(), want: "illumination", got: value.Type()}
		}
		m.db.Replace(p.tag()+" draw graphics %", []*fact.Fact{fact.New(
			fact.NewID(strconv.Itoa(p.id)),
			fact.NewText("draw"),
			fact.NewText("graphics"),
			fact.NewText(ill.String()),
		)})
		return starlark.None, nil
	}
}

// when(queries, callback) subscribes callback to queries, a string or a list
// of strings. The callback gets a list of dicts, one per solution.
func (m *Manager) whenBuiltin(p *program) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var queries starlark.Value
		var fn starlark.Callable
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &queries, &fn); err != nil {
			return nil, err
		}
		parts, err := queryParts(b.Name(), queries)
		if err != nil {
			return nil, err
		}
		id := m.db.When(p.tag(), parts, &starlarkCallback{program: p, fn: fn})
		return starlark.String(id.String()), nil
	}
}

func queryParts(fnName string, queries starlark.Value) ([]string, error) {
	if s, ok := starlark.AsString(queries); ok {
		return []string{s}, nil
	}
	iterable, ok := queries.(starlark.Iterable)
	if !ok {
		return nil, &badArgument{fn: fnName, want: "string or list of strings", got: queries.Type()}
	}
	var parts []string
	iter := iterable.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		s, ok := starlark.AsString(elem)
		if !ok {
			return nil, &badArgument{fn: fnName, want: "string query", got: elem.Type()}
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return nil, &badArgument{fn: fnName, want: "at least one query", got: "none"}
	}
	return parts, nil
}

// starlarkCallback runs a program's function on its own thread.
type starlarkCallback struct {
	program *program
	fn      starlark.Callable
}

var _ roomdb.Callback = &starlarkCallback{}

func (c *starlarkCallback) Call(_ context.Context, results []roomdb.Result) error {
	p := c.program
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	_, err := starlark.Call(p.thread, c.fn, starlark.Tuple{resultsValue(results)}, nil)
	return errors.Wrapf(err, "program %d: %s", p.id, c.fn.Name())
}

func resultsValue(results []roomdb.Result) *starlark.List {
	elems := make([]starlark.Value, len(results))
	for idx, result := range results {
		dict := starlark.NewDict(len(result))
		for _, v := range result {
			// Keys are strings, so SetKey can't fail.
			_ = dict.SetKey(starlark.String(v.Name), starlark.String(v.Value))
		}
		elems[idx] = dict
	}
	return starlark.NewList(elems)
}
