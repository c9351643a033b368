package vectorizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	modelFormat  = "tfidf"
	modelVersion = 1
)

// ErrCorruptModel is returned by Decode for malformed model bytes.
var ErrCorruptModel = errors.New("corrupt vectorizer model")

type encodedModel struct {
	Format    string    `json:"format"`
	Version   int       `json:"version"`
	Options   Options   `json:"options"`
	Documents int       `json:"documents"`
	Terms     []string  `json:"terms"`
	IDF       []float64 `json:"idf"`
	FittedAt  string    `json:"fitted_at,omitempty"`
}

// Encode serializes m as versioned JSON. float64 IDF values survive the
// round trip exactly.
func Encode(m *Model) ([]byte, error) {
	data, err := json.Marshal(encodedModel{
		Format:    modelFormat,
		Version:   modelVersion,
		Options:   m.opts,
		Documents: m.documents,
		Terms:     m.terms,
		IDF:       m.idf,
		FittedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding vectorizer model: %w", err)
	}
	return data, nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*Model, error) {
	var em encodedModel
	if err := json.Unmarshal(data, &em); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	if em.Format != modelFormat {
		return nil, fmt.Errorf("%w: format %q", ErrCorruptModel, em.Format)
	}
	if em.Version != modelVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptModel, em.Version)
	}
	if len(em.Terms) == 0 || len(em.Terms) != len(em.IDF) {
		return nil, fmt.Errorf("%w: %d terms, %d weights", ErrCorruptModel, len(em.Terms), len(em.IDF))
	}
	for i, t := range em.Terms {
		if i > 0 && em.Terms[i-1] >= t {
			return nil, fmt.Errorf("%w: vocabulary not strictly sorted at %q", ErrCorruptModel, t)
		}
		if w := em.IDF[i]; math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, fmt.Errorf("%w: invalid weight for %q", ErrCorruptModel, t)
		}
	}
	return newModel(em.Options.withDefaults(), em.Documents, em.Terms, em.IDF), nil
}
