package vectorindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

// File layout constants. Both artifacts are little-endian and end with a
// CRC32 (IEEE) of every preceding byte.
const (
	IndexMagic             = "IRIX"
	IDsMagic               = "IRID"
	FormatVersion   uint32 = 1
	IndexHeaderSize        = 40
	IDsHeaderSize          = 24
	FooterSize             = 4
)

// ErrCorrupt is returned for artifacts that fail structural or checksum
// validation.
var ErrCorrupt = errors.New("corrupt index artifact")

// Header describes an encoded index.
type Header struct {
	Version       uint32
	Dim           int
	Count         int
	Generation    uint64
	VocabChecksum uint32
	CreatedAt     time.Time
}

// EncodeIndex serializes the rows of f:
//
//	magic[4] version[4] dim[4] count[4] generation[8] vocab_crc[4] reserved[4] created_unix[8]
//	rows (count*dim float32)
//	crc32[4]
func EncodeIndex(f *Flat, generation uint64, vocabChecksum uint32) []byte {
	size := IndexHeaderSize + len(f.data)*4 + FooterSize
	buf := make([]byte, size)
	copy(buf[0:4], IndexMagic)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(f.dim))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(f.Len()))
	binary.LittleEndian.PutUint64(buf[16:24], generation)
	binary.LittleEndian.PutUint32(buf[24:28], vocabChecksum)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(time.Now().Unix()))

	off := IndexHeaderSize
	for _, x := range f.data {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(x))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return buf
}

// EncodeIDs serializes ids:
//
//	magic[4] version[4] count[4] reserved[4] generation[8]
//	ids (count*int64)
//	crc32[4]
func EncodeIDs(ids []int64, generation uint64) []byte {
	size := IDsHeaderSize + len(ids)*8 + FooterSize
	buf := make([]byte, size)
	copy(buf[0:4], IDsMagic)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(ids)))
	binary.LittleEndian.PutUint64(buf[16:24], generation)

	off := IDsHeaderSize
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(id))
		off += 8
	}
	binary.LittleEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return buf
}

func verifyFooter(data []byte, headerSize int, magic string) error {
	if len(data) < headerSize+FooterSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if string(data[0:4]) != magic {
		return fmt.Errorf("%w: bad magic bytes %q", ErrCorrupt, data[0:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	body := len(data) - FooterSize
	if want, got := binary.LittleEndian.Uint32(data[body:]), crc32.ChecksumIEEE(data[:body]); want != got {
		return fmt.Errorf("%w: checksum %08x, expected %08x", ErrCorrupt, got, want)
	}
	return nil
}

// DecodeIndex parses bytes produced by EncodeIndex, returning the header
// and the row-major values.
func DecodeIndex(data []byte) (Header, []float32, error) {
	if err := verifyFooter(data, IndexHeaderSize, IndexMagic); err != nil {
		return Header{}, nil, err
	}
	h := Header{
		Version:       binary.LittleEndian.Uint32(data[4:8]),
		Dim:           int(binary.LittleEndian.Uint32(data[8:12])),
		Count:         int(binary.LittleEndian.Uint32(data[12:16])),
		Generation:    binary.LittleEndian.Uint64(data[16:24]),
		VocabChecksum: binary.LittleEndian.Uint32(data[24:28]),
		CreatedAt:     time.Unix(int64(binary.LittleEndian.Uint64(data[32:40])), 0).UTC(),
	}
	values := h.Dim * h.Count
	if want := IndexHeaderSize + values*4 + FooterSize; len(data) != want {
		return Header{}, nil, fmt.Errorf("%w: %d bytes, expected %d for %dx%d", ErrCorrupt, len(data), want, h.Count, h.Dim)
	}
	rows := make([]float32, values)
	off := IndexHeaderSize
	for i := range rows {
		rows[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
	}
	return h, rows, nil
}

// DecodeIDs parses bytes produced by EncodeIDs.
func DecodeIDs(data []byte) (uint64, []int64, error) {
	if err := verifyFooter(data, IDsHeaderSize, IDsMagic); err != nil {
		return 0, nil, err
	}
	count := int(binary.LittleEndian.Uint32(data[8:12]))
	generation := binary.LittleEndian.Uint64(data[16:24])
	if want := IDsHeaderSize + count*8 + FooterSize; len(data) != want {
		return 0, nil, fmt.Errorf("%w: %d bytes, expected %d for %d ids", ErrCorrupt, len(data), want, count)
	}
	ids := make([]int64, count)
	off := IDsHeaderSize
	for i := range ids {
		ids[i] = int64(binary.LittleEndian.Uint64(data[off : off+8]))
		off += 8
	}
	return generation, ids, nil
}

// DecodePair rebuilds a Flat from an index artifact and its id list. The two
// must carry the same generation and row count; otherwise the error wraps
// ErrArtifactMismatch.
func DecodePair(indexData, idsData []byte) (*Flat, Header, error) {
	h, rows, err := DecodeIndex(indexData)
	if err != nil {
		return nil, Header{}, fmt.Errorf("decoding index: %w", err)
	}
	gen, ids, err := DecodeIDs(idsData)
	if err != nil {
		return nil, Header{}, fmt.Errorf("decoding id list: %w", err)
	}
	if gen != h.Generation {
		return nil, Header{}, fmt.Errorf("%w: index generation %d, id list generation %d", apperrors.ErrArtifactMismatch, h.Generation, gen)
	}
	if len(ids) != h.Count {
		return nil, Header{}, fmt.Errorf("%w: index has %d rows, id list has %d", apperrors.ErrArtifactMismatch, h.Count, len(ids))
	}
	return &Flat{dim: h.Dim, data: rows, ids: ids}, h, nil
}
