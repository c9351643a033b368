// Package vectorindex holds the dense internship vectors and answers exact
// top-k inner-product queries over them. Rows are L2-normalized when they
// are added by the builder, so the inner product is the cosine similarity.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when a row or query has the wrong length.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is one search result. Position is the row number in the index.
type Hit struct {
	Position int
	ID       int64
	Score    float32
}

// Flat is a row-major matrix of vectors with a parallel id list. It is built
// once by a single goroutine and then only read; concurrent Search calls are
// safe once building is finished.
type Flat struct {
	dim  int
	data []float32
	ids  []int64
}

// NewFlat returns an empty index for vectors of length dim.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Add appends row under id. The row is copied.
func (f *Flat) Add(id int64, row []float32) error {
	if len(row) != f.dim {
		return fmt.Errorf("%w: row has %d values, index has %d", ErrDimensionMismatch, len(row), f.dim)
	}
	f.data = append(f.data, row...)
	f.ids = append(f.ids, id)
	return nil
}

// Len is the number of rows.
func (f *Flat) Len() int { return len(f.ids) }

// Dim is the row length.
func (f *Flat) Dim() int { return f.dim }

// IDs returns the id list in row order. Callers must not modify it.
func (f *Flat) IDs() []int64 { return f.ids }

// Row returns row i. Callers must not modify it.
func (f *Flat) Row(i int) []float32 {
	return f.data[i*f.dim : (i+1)*f.dim]
}

// NormalizeL2 scales row to unit length in place. A zero row is left
// unchanged and NormalizeL2 reports false.
func NormalizeL2(row []float32) bool {
	var sum float64
	for _, x := range row {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range row {
		row[i] = float32(float64(x) * inv)
	}
	return true
}

// Dot returns the inner product of a and b, which must have equal length.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// ClampK limits k to [1, n]. It returns 0 when n is 0.
func ClampK(k, n int) int {
	if n == 0 {
		return 0
	}
	if k < 1 {
		return 1
	}
	if k > n {
		return n
	}
	return k
}

// Search returns the k rows with the highest inner product against the
// normalized query, best first. Equal scores keep row order. k is clamped
// to [1, Len]. A zero query, or an empty index, yields no hits.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	q, err := f.prepare(query)
	if err != nil || q == nil {
		return []Hit{}, err
	}
	return f.scan(q, ClampK(k, f.Len()), 0, f.Len()).sorted(), nil
}

func (f *Flat) prepare(query []float32) ([]float32, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if f.Len() == 0 {
		return nil, nil
	}
	q := append([]float32(nil), query...)
	if !NormalizeL2(q) {
		return nil, nil
	}
	return q, nil
}

func (f *Flat) scan(q []float32, k, from, to int) *topK {
	h := newTopK(k)
	for i := from; i < to; i++ {
		h.offer(Hit{Position: i, ID: f.ids[i], Score: Dot(q, f.Row(i))})
	}
	return h
}
