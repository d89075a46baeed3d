// Package illumination builds graphics descriptors: a kind tag plus a flat
// map of drawing options. The rendering front end owns the schema; nothing
// here validates it beyond filling in defaults.
package illumination

import (
	"encoding/json"
	"strings"
)

type Color [4]int

var White = Color{255, 255, 255, 255}

// Graphic is a single drawing primitive.
type Graphic struct {
	Type    string                 `json:"type"`
	Options map[string]interface{} `json:"options"`
}

// Options are the caller-supplied parameters of one primitive. Values may be
// ints, floats, strings, or lists of numbers for colors.
type Options map[string]interface{}

// Illumination accumulates graphics for one program.
type Illumination struct {
	Graphics []Graphic
}

func New() *Illumination {
	return &Illumination{}
}

func (il *Illumination) add(kind string, options map[string]interface{}) {
	il.Graphics = append(il.Graphics, Graphic{Type: kind, Options: options})
}

func (il *Illumination) Rectangle(opts Options) {
	il.add("rectangle", map[string]interface{}{
		"x":            opts.Int("x", 0),
		"y":            opts.Int("y", 0),
		"w":            opts.Int("w", 10),
		"h":            opts.Int("h", 10),
		"fill":         opts.Color("fill", White),
		"stroke":       opts.Color("stroke", White),
		"stroke_width": opts.Int("stroke_width", 1),
	})
}

func (il *Illumination) Ellipse(opts Options) {
	il.add("ellipse", map[string]interface{}{
		"x":            opts.Int("x", 0),
		"y":            opts.Int("y", 0),
		"w":            opts.Int("w", 10),
		"h":            opts.Int("h", 10),
		"fill":         opts.Color("fill", White),
		"stroke":       opts.Color("stroke", White),
		"stroke_width": opts.Int("stroke_width", 1),
	})
}

func (il *Illumination) Line(opts Options) {
	il.add("line", map[string]interface{}{
		"x1":        opts.Int("x1", 0),
		"y1":        opts.Int("y1", 0),
		"x2":        opts.Int("x2", 0),
		"y2":        opts.Int("y2", 0),
		"color":     opts.Color("color", White),
		"thickness": opts.Int("thickness", 1),
	})
}

func (il *Illumination) Text(opts Options) {
	il.add("text", map[string]interface{}{
		"x":     opts.Int("x", 0),
		"y":     opts.Int("y", 0),
		"text":  opts.String("text", ""),
		"color": opts.Color("color", White),
		"size":  opts.Int("size", 12),
	})
}

// Frame moves and clips the graphics that follow it. A clip size of -1 means
// unclipped.
func (il *Illumination) Frame(opts Options) {
	il.add("frame", map[string]interface{}{
		"x":      opts.Int("x", 0),
		"y":      opts.Int("y", 0),
		"scale":  opts.Float("scale", 1.0),
		"clip_x": opts.Int("clip_x", 0),
		"clip_y": opts.Int("clip_y", 0),
		"clip_w": opts.Int("clip_w", -1),
		"clip_h": opts.Int("clip_h", -1),
	})
}

func (il *Illumination) Image(opts Options) {
	il.add("image", map[string]interface{}{
		"x":        opts.Int("x", 0),
		"y":        opts.Int("y", 0),
		"scale":    opts.Float("scale", 1.0),
		"filepath": opts.String("filepath", ""),
	})
}

// String encodes the graphics as a compact JSON array, suitable for the
// tail of a fact.
func (il *Illumination) String() string {
	graphics := il.Graphics
	if graphics == nil {
		graphics = []Graphic{}
	}
	encoded, err := json.Marshal(graphics)
	if err != nil {
		// Options only ever hold numbers, strings and colors.
		panic(err)
	}
	return string(encoded)
}

// Decode parses what String produced. Fact text collapses whitespace, so
// string options may come back with runs of spaces squeezed to one.
func Decode(text string) ([]Graphic, error) {
	var graphics []Graphic
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&graphics); err != nil {
		return nil, err
	}
	return graphics, nil
}

func (o Options) Int(key string, fallback int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	}
	return fallback
}

func (o Options) Float(key string, fallback float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

func (o Options) String(key string, fallback string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return fallback
}

// Color reads up to four components. Missing components of a given color
// default to opaque black.
func (o Options) Color(key string, fallback Color) Color {
	var components []interface{}
	switch v := o[key].(type) {
	case []interface{}:
		components = v
	case []int:
		for _, c := range v {
			components = append(components, c)
		}
	case Color:
		return v
	default:
		return fallback
	}
	color := Color{0, 0, 0, 255}
	for idx := 0; idx < len(color) && idx < len(components); idx++ {
		color[idx] = Options{"c": components[idx]}.Int("c", color[idx])
	}
	return color
}
