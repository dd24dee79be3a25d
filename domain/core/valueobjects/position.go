package valueobjects

import "fmt"

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position
func NewPosition(x, y float64) *Position {
	return &Position{X: x, Y: y}
}

// Origin returns a fresh {0,0} position.
func Origin() *Position {
	return &Position{}
}

// Equal compares two positions; nil only equals nil.
func (p *Position) Equal(other *Position) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.X == other.X && p.Y == other.Y
}

func (p *Position) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// ParsePosition accepts the shapes a position arrives in from JSON or an
// interchange graph: a Position, an {x, y} mapping, or a two element list.
func ParsePosition(v any) (*Position, bool) {
	switch p := v.(type) {
	case Position:
		return &Position{X: p.X, Y: p.Y}, true
	case *Position:
		if p == nil {
			return nil, false
		}
		return &Position{X: p.X, Y: p.Y}, true
	case map[string]any:
		x, okx := toFloat(p["x"])
		y, oky := toFloat(p["y"])
		if !okx || !oky {
			return nil, false
		}
		return &Position{X: x, Y: y}, true
	case [2]float64:
		return &Position{X: p[0], Y: p[1]}, true
	case []float64:
		if len(p) < 2 {
			return nil, false
		}
		return &Position{X: p[0], Y: p[1]}, true
	case []any:
		if len(p) < 2 {
			return nil, false
		}
		x, okx := toFloat(p[0])
		y, oky := toFloat(p[1])
		if !okx || !oky {
			return nil, false
		}
		return &Position{X: x, Y: y}, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
