// Package vision is the boundary to the marker-detection pipeline: what a
// detection looks like, how it becomes a fact, and how batches travel from
// the producer to the driver loop.
package vision

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vilterp/roomdb/pkg/fact"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SeenProgram is one detected marker and its four corners.
type SeenProgram struct {
	ID      int      `json:"id"`
	Corners [4]Point `json:"corners"`
}

// Batch is everything detected in one frame.
type Batch []SeenProgram

// FactText renders the detection as
// "#<reserved> program <id> at <x1> <y1> <x2> <y2> <x3> <y3> <x4> <y4>".
func (s SeenProgram) FactText(reservedID string) string {
	parts := []string{"#" + reservedID, "program", strconv.Itoa(s.ID), "at"}
	for _, corner := range s.Corners {
		parts = append(parts, formatCoord(corner.X), formatCoord(corner.Y))
	}
	return strings.Join(parts, " ")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (b Batch) Facts(reservedID string) []*fact.Fact {
	facts := make([]*fact.Fact, len(b))
	for idx, seen := range b {
		facts[idx] = fact.Parse(seen.FactText(reservedID))
	}
	return facts
}

func (b Batch) IDs() []int {
	ids := make([]int, len(b))
	for idx, seen := range b {
		ids[idx] = seen.ID
	}
	return ids
}

// NamespacePattern matches every fact in the reserved namespace.
func NamespacePattern(reservedID string) string {
	return fmt.Sprintf("#%s %%", reservedID)
}
