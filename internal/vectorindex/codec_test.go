package vectorindex

import (
	"errors"
	"math"
	"reflect"
	"testing"

	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

func TestCodecRoundTrip(t *testing.T) {
	f := NewFlat(3)
	f.Add(10, unitRow(1, 2, 2))
	f.Add(20, []float32{0, 0, 0})
	f.Add(30, unitRow(0, 0, 7))

	indexData := EncodeIndex(f, 42, 0xdeadbeef)
	idsData := EncodeIDs(f.IDs(), 42)

	got, h, err := DecodePair(indexData, idsData)
	if err != nil {
		t.Fatal(err)
	}
	if h.Generation != 42 || h.VocabChecksum != 0xdeadbeef || h.Dim != 3 || h.Count != 3 {
		t.Errorf("header = %+v", h)
	}
	if !reflect.DeepEqual(got.IDs(), []int64{10, 20, 30}) {
		t.Errorf("ids = %v", got.IDs())
	}
	for i := 0; i < f.Len(); i++ {
		if !reflect.DeepEqual(got.Row(i), f.Row(i)) {
			t.Errorf("row %d = %v, want %v", i, got.Row(i), f.Row(i))
		}
	}
	for _, i := range []int{0, 2} {
		var sum float64
		for _, x := range got.Row(i) {
			sum += float64(x) * float64(x)
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("row %d norm^2 = %v", i, sum)
		}
	}
}

func TestDecodePairGenerationMismatch(t *testing.T) {
	f := NewFlat(1)
	f.Add(1, []float32{1})
	_, _, err := DecodePair(EncodeIndex(f, 1, 0), EncodeIDs(f.IDs(), 2))
	if !errors.Is(err, apperrors.ErrArtifactMismatch) {
		t.Errorf("err = %v, want ErrArtifactMismatch", err)
	}
	_, _, err = DecodePair(EncodeIndex(f, 1, 0), EncodeIDs([]int64{1, 2}, 1))
	if !errors.Is(err, apperrors.ErrArtifactMismatch) {
		t.Errorf("count mismatch err = %v", err)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	f := NewFlat(2)
	f.Add(1, unitRow(1, 1))
	good := EncodeIndex(f, 7, 0)

	flipped := append([]byte(nil), good...)
	flipped[IndexHeaderSize] ^= 0xff
	truncated := good[:len(good)-3]
	wrongMagic := append([]byte(nil), good...)
	copy(wrongMagic, "NOPE")

	for name, data := range map[string][]byte{
		"flipped":   flipped,
		"truncated": truncated,
		"magic":     wrongMagic,
		"empty":     nil,
	} {
		if _, _, err := DecodeIndex(data); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: err = %v, want ErrCorrupt", name, err)
		}
	}
	if _, _, err := DecodeIDs(good); !errors.Is(err, ErrCorrupt) {
		t.Errorf("index bytes decoded as ids: %v", err)
	}
}
