package illumination

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// Value exposes an Illumination to Starlark programs. str() of it is the
// JSON encoding, ready to be claimed.
type Value struct {
	il     *Illumination
	frozen bool
}

var _ starlark.HasAttrs = &Value{}

var methods = map[string]func(*Illumination, Options){
	"rectangle": (*Illumination).Rectangle,
	"ellipse":   (*Illumination).Ellipse,
	"line":      (*Illumination).Line,
	"text":      (*Illumination).Text,
	"frame":     (*Illumination).Frame,
	"image":     (*Illumination).Image,
}

// Constructor is the `illumination()` builtin.
var Constructor = starlark.NewBuiltin("illumination", func(
	thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return NewValue(), nil
})

func NewValue() *Value {
	return &Value{il: New()}
}

func (v *Value) Illumination() *Illumination { return v.il }

func (v *Value) String() string { return v.il.String() }
func (v *Value) Type() string { return "illumination" }
func (v *Value) Freeze() { v.frozen = true }
func (v *Value) Truth() starlark.Bool { return starlark.True }
func (v *Value) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: illumination") }

func (v *Value) Attr(name string) (starlark.Value, error) {
	method, ok := methods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(
		thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
	) (starlark.Value, error) {
		if v.frozen {
			return nil, fmt.Errorf("%s: cannot draw on a frozen illumination", b.Name())
		}
		opts, err := optionsFromArgs(b.Name(), args, kwargs)
		if err != nil {
			return nil, err
		}
		method(v.il, opts)
		return starlark.None, nil
	}).BindReceiver(v), nil
}

func (v *Value) AttrNames() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// optionsFromArgs accepts keyword arguments, a single dict, or both.
func optionsFromArgs(fnName string, args starlark.Tuple, kwargs []starlark.Tuple) (Options, error) {
	opts := Options{}
	if len(args) > 1 {
		return nil, fmt.Errorf("%s: got %d positional arguments, want at most 1", fnName, len(args))
	}
	var pairs []starlark.Tuple
	if len(args) == 1 {
		dict, ok := args[0].(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%s: want dict of options, got %s", fnName, args[0].Type())
		}
		pairs = append(pairs, dict.Items()...)
	}
	pairs = append(pairs, kwargs...)
	for _, pair := range pairs {
		key, ok := starlark.AsString(pair[0])
		if !ok {
			return nil, fmt.Errorf("%s: option names must be strings, got %s", fnName, pair[0].Type())
		}
		value, err := toGo(pair[1])
		if err != nil {
			return nil, fmt.Errorf("%s: option %s: %v", fnName, key, err)
		}
		opts[key] = value
	}
	return opts, nil
}

func toGo(v starlark.Value) (interface{}, error) {
	switch v := v.(type) {
	case starlark.Int:
		i, ok := v.Int64()
		if !ok {
			return nil, fmt.Errorf("integer out of range: %s", v)
		}
		return i, nil
	case starlark.Float:
		return float64(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Indexable:
		elems := make([]interface{}, v.Len())
		for idx := range elems {
			elem, err := toGo(v.Index(idx))
			if err != nil {
				return nil, err
			}
			elems[idx] = elem
		}
		return elems, nil
	}
	return nil, fmt.Errorf("unsupported type %s", v.Type())
}
