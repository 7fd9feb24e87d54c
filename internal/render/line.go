package render

import "candlechart/internal/indicator"

// LineBatch is an indicator drawn as polylines. The line breaks wherever the
// result has no value, so each run in Runs is a contiguous defined stretch.
type LineBatch struct {
	ID    string     `json:"id"`
	Range Range      `json:"range"`
	Scale Scale      `json:"scale"`
	Runs  [][]Vertex `json:"runs"`
}

// Glyphs returns the number of drawn vertices.
func (b *LineBatch) Glyphs() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, run := range b.Runs {
		n += len(run)
	}
	return n
}

type resultKey struct {
	res *indicator.Result
	r   Range
	s   Scale
}

// LineRenderer draws one indicator result. Results are replaced rather than
// edited on recompute, so the result pointer is its identity.
type LineRenderer struct {
	cache memo[resultKey, *LineBatch]
}

func NewLineRenderer() *LineRenderer { return &LineRenderer{} }

func (l *LineRenderer) Render(res *indicator.Result, r Range, s Scale) *LineBatch {
	r = r.Clamp(res.Len())
	return l.cache.get(resultKey{res: res, r: r, s: s}, func() *LineBatch { return buildLine(res, r, s) })
}

func (l *LineRenderer) Recomputes() int { return l.cache.recomputes }

func buildLine(res *indicator.Result, r Range, s Scale) *LineBatch {
	b := &LineBatch{Range: r, Scale: s}
	if res == nil {
		return b
	}
	b.ID = res.ID
	var run []Vertex
	for i := r.Start; i < r.End; i++ {
		v, ok := res.At(i)
		if !ok {
			if len(run) > 0 {
				b.Runs = append(b.Runs, run)
				run = nil
			}
			continue
		}
		run = append(run, Vertex{X: s.X(r, i), Y: s.Y(v)})
	}
	if len(run) > 0 {
		b.Runs = append(b.Runs, run)
	}
	return b
}
