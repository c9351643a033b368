package vectorizer

import (
	"errors"
	"math"
	"reflect"
	"testing"

	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

func TestFitVocabulary(t *testing.T) {
	m, err := Fit([]string{"python sql excel", "java spring"}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"excel", "java", "java spring", "python", "python sql", "spring", "sql", "sql excel"}
	if got := m.Terms(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Terms = %v, want %v", got, want)
	}
	if m.Dim() != len(want) || m.Documents() != 2 {
		t.Errorf("Dim=%d Documents=%d", m.Dim(), m.Documents())
	}
	idf, ok := m.IDF("python")
	if !ok {
		t.Fatal("python missing")
	}
	if wantIDF := math.Log(3.0/2.0) + 1; math.Abs(idf-wantIDF) > 1e-12 {
		t.Errorf("IDF(python) = %v, want %v", idf, wantIDF)
	}
	if m.TermIndex("rust") != -1 {
		t.Error("unexpected term index for rust")
	}
}

func TestFitErrors(t *testing.T) {
	tests := []struct {
		name   string
		corpus []string
		opts   Options
	}{
		{"empty", nil, DefaultOptions()},
		{"all blank", []string{"", "  ", "!!!"}, DefaultOptions()},
		{"only stop words", []string{"the and of", "a"}, DefaultOptions()},
		{"pruned away", []string{"python", "java"}, Options{NGramMax: 1, MinDF: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(tt.corpus, tt.opts); !errors.Is(err, apperrors.ErrEmptyCorpus) {
				t.Errorf("err = %v, want ErrEmptyCorpus", err)
			}
		})
	}
}

func TestFitPruning(t *testing.T) {
	corpus := []string{"python sql", "python java", "python excel", "sql go"}
	m, err := Fit(corpus, Options{NGramMax: 1, MinDF: 2, MaxDF: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Terms(); !reflect.DeepEqual(got, []string{"sql"}) {
		t.Errorf("Terms = %v, want [sql]", got)
	}

	m, err = Fit(corpus, Options{NGramMax: 1, MaxFeatures: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Terms(); !reflect.DeepEqual(got, []string{"python", "sql"}) {
		t.Errorf("MaxFeatures Terms = %v", got)
	}
}

func TestTransform(t *testing.T) {
	m, err := Fit([]string{"python sql excel", "java spring"}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	v := m.Transform("Python, Python and Rust")
	if v.Len() != 1 {
		t.Fatalf("Transform = %+v", v)
	}
	idf, _ := m.IDF("python")
	if v.Indices[0] != m.TermIndex("python") || v.Values[0] != 2*idf {
		t.Errorf("Transform = %+v, want count 2 x idf", v)
	}

	if empty := m.Transform("rust haskell"); empty.Len() != 0 || empty.Norm() != 0 {
		t.Errorf("out-of-vocabulary text should be empty, got %+v", empty)
	}

	batch := m.TransformBatch([]string{"java", "", "excel"})
	if len(batch) != 3 || batch[0].Indices[0] != m.TermIndex("java") || batch[1].Len() != 0 {
		t.Errorf("TransformBatch = %+v", batch)
	}

	row := m.Dense(m.Transform("sql excel"))
	if len(row) != m.Dim() {
		t.Fatalf("dense len = %d", len(row))
	}
	for _, term := range []string{"sql", "excel", "sql excel"} {
		if row[m.TermIndex(term)] == 0 {
			t.Errorf("dense[%s] = 0", term)
		}
	}
	for i := 1; i < v.Len(); i++ {
		if v.Indices[i-1] >= v.Indices[i] {
			t.Error("indices not ascending")
		}
	}
}

func TestTransformNormalizesInput(t *testing.T) {
	m, err := Fit([]string{"machine learning python", "web react"}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	a := m.Transform("  MACHINE   Learning!! ")
	b := m.Transform("machine learning")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("%+v != %+v", a, b)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m, err := Fit([]string{"python sql excel", "java spring", "python django"}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Terms(), m.Terms()) || !reflect.DeepEqual(got.idf, m.idf) {
		t.Fatal("vocabulary or weights changed across round trip")
	}
	if got.Checksum() != m.Checksum() {
		t.Error("checksum changed")
	}
	for _, text := range []string{"python", "java spring", "unknown", ""} {
		if a, b := m.Transform(text), got.Transform(text); !reflect.DeepEqual(a, b) {
			t.Errorf("Transform(%q) differs: %+v vs %+v", text, a, b)
		}
	}
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	inputs := []string{
		`not json`,
		`{"format":"bow","version":1,"terms":["a"],"idf":[1]}`,
		`{"format":"tfidf","version":9,"terms":["a"],"idf":[1]}`,
		`{"format":"tfidf","version":1,"terms":["aa","bb"],"idf":[1]}`,
		`{"format":"tfidf","version":1,"terms":["bb","aa"],"idf":[1,1]}`,
		`{"format":"tfidf","version":1,"terms":["aa"],"idf":[0]}`,
	}
	for _, in := range inputs {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrCorruptModel) {
			t.Errorf("Decode(%s) = %v, want ErrCorruptModel", in, err)
		}
	}
}
