// Package vectorizer fits and applies the TF-IDF term-weight model that maps
// skill and requirement text to vectors. A fitted Model is immutable and is
// shared read-only by the index builder and the search engine.
package vectorizer

import (
	"fmt"
	"hash/crc32"
	"math"
	"sort"
	"strings"

	"github.com/Rajat083/Internship-Recommender/internal/textnorm"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

// Options controls vocabulary construction.
type Options struct {
	// NGramMax is the longest n-gram added to the vocabulary.
	NGramMax int `json:"ngram_max"`
	// MinDF drops terms found in fewer documents.
	MinDF int `json:"min_df"`
	// MaxDF drops terms found in more than this fraction of documents.
	MaxDF float64 `json:"max_df"`
	// MaxFeatures keeps only the most frequent terms. Zero is unlimited.
	MaxFeatures int `json:"max_features"`
}

// DefaultOptions returns unigrams and bigrams with no frequency pruning.
func DefaultOptions() Options {
	return Options{NGramMax: 2, MinDF: 1, MaxDF: 1.0}
}

func (o Options) withDefaults() Options {
	if o.NGramMax < 1 {
		o.NGramMax = 1
	}
	if o.MinDF < 1 {
		o.MinDF = 1
	}
	if o.MaxDF <= 0 || o.MaxDF > 1 {
		o.MaxDF = 1.0
	}
	if o.MaxFeatures < 0 {
		o.MaxFeatures = 0
	}
	return o
}

// SparseVector holds the non-zero weights of a vector. Indices ascend.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Len returns the number of non-zero entries.
func (v SparseVector) Len() int {
	return len(v.Indices)
}

// Norm returns the L2 norm.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Model is a fitted TF-IDF vocabulary.
type Model struct {
	opts      Options
	documents int
	terms     []string
	idf       []float64
	index     map[string]int
}

func newModel(opts Options, documents int, terms []string, idf []float64) *Model {
	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t] = i
	}
	return &Model{
		opts:      opts,
		documents: documents,
		terms:     terms,
		idf:       idf,
		index:     index,
	}
}

// Fit builds a Model from corpus. Each entry is one document. It fails with
// ErrEmptyCorpus when the corpus is empty, when no entry has any usable
// terms, or when pruning removes every term.
func Fit(corpus []string, opts Options) (*Model, error) {
	opts = opts.withDefaults()
	if len(corpus) == 0 {
		return nil, fmt.Errorf("fitting vectorizer: %w", apperrors.ErrEmptyCorpus)
	}

	df := make(map[string]int)
	tf := make(map[string]int)
	usable := 0
	for _, doc := range corpus {
		terms := textnorm.Terms(doc, opts.NGramMax)
		if len(terms) == 0 {
			continue
		}
		usable++
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			tf[t]++
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("fitting vectorizer: every document is empty after normalization: %w", apperrors.ErrEmptyCorpus)
	}

	n := len(corpus)
	maxDocs := int(math.Floor(opts.MaxDF * float64(n)))
	if opts.MaxDF >= 1.0 {
		maxDocs = n
	}
	kept := make([]string, 0, len(df))
	for term, count := range df {
		if count < opts.MinDF || count > maxDocs {
			continue
		}
		kept = append(kept, term)
	}
	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:opts.MaxFeatures]
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("fitting vectorizer: document-frequency pruning left no terms: %w", apperrors.ErrEmptyCorpus)
	}
	sort.Strings(kept)

	idf := make([]float64, len(kept))
	for i, term := range kept {
		idf[i] = smoothIDF(n, df[term])
	}
	return newModel(opts, n, kept, idf), nil
}

func smoothIDF(n, df int) float64 {
	return math.Log(float64(1+n)/float64(1+df)) + 1
}

// Transform maps text to its TF-IDF vector: raw term count times IDF over
// the frozen vocabulary. Out-of-vocabulary terms are ignored, so a text with
// no known terms yields an empty vector.
func (m *Model) Transform(text string) SparseVector {
	counts := make(map[int]int)
	for _, term := range textnorm.Terms(text, m.opts.NGramMax) {
		if i, ok := m.index[term]; ok {
			counts[i]++
		}
	}
	v := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for i := range counts {
		v.Indices = append(v.Indices, i)
	}
	sort.Ints(v.Indices)
	for _, i := range v.Indices {
		v.Values = append(v.Values, float64(counts[i])*m.idf[i])
	}
	return v
}

// TransformBatch transforms each text, preserving order.
func (m *Model) TransformBatch(texts []string) []SparseVector {
	out := make([]SparseVector, len(texts))
	for i, t := range texts {
		out[i] = m.Transform(t)
	}
	return out
}

// Dense materializes v as a row of length Dim.
func (m *Model) Dense(v SparseVector) []float32 {
	row := make([]float32, len(m.terms))
	for k, i := range v.Indices {
		row[i] = float32(v.Values[k])
	}
	return row
}

// Dim is the vocabulary size.
func (m *Model) Dim() int {
	return len(m.terms)
}

// Documents is the corpus size the model was fitted on.
func (m *Model) Documents() int {
	return m.documents
}

// Options returns the settings the model was fitted with.
func (m *Model) Options() Options {
	return m.opts
}

// Terms returns a copy of the vocabulary in index order.
func (m *Model) Terms() []string {
	return append([]string(nil), m.terms...)
}

// IDF returns the weight of term and whether it is in the vocabulary.
func (m *Model) IDF(term string) (float64, bool) {
	i, ok := m.index[term]
	if !ok {
		return 0, false
	}
	return m.idf[i], true
}

// TermIndex returns the dimension of term, or -1.
func (m *Model) TermIndex(term string) int {
	if i, ok := m.index[term]; ok {
		return i
	}
	return -1
}

// Checksum fingerprints the vocabulary. An index built with one model
// records this value so it is never searched with another.
func (m *Model) Checksum() uint32 {
	return crc32.ChecksumIEEE([]byte(strings.Join(m.terms, "\n")))
}
