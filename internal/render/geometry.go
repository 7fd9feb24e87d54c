package render

// Rect is an axis-aligned rectangle with its top-left corner at (X, Y).
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Segment is a straight line from (X1, Y1) to (X2, Y2).
type Segment struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Vertex is one polyline point.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// memo holds the last output of a renderer and counts recomputations.
type memo[K comparable, V any] struct {
	key        K
	val        V
	valid      bool
	recomputes int
}

func (m *memo[K, V]) get(key K, build func() V) V {
	if m.valid && m.key == key {
		return m.val
	}
	m.key, m.val, m.valid = key, build(), true
	m.recomputes++
	return m.val
}

func (m *memo[K, V]) reset() {
	var zero V
	m.val, m.valid = zero, false
}
