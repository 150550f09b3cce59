package flat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// Binary serialization of the index. The blob is opaque to callers; the
// persistence layer frames and checksums it.

var blobMagic = [4]byte{'R', 'G', 'F', '1'}

const blobVersion uint16 = 1

// ErrBadBlob indicates a malformed or truncated index blob.
type ErrBadBlob struct {
	Reason string
}

func (e *ErrBadBlob) Error() string {
	return fmt.Sprintf("malformed index blob: %s", e.Reason)
}

// Save writes the index state to w.
func (f *Flat) Save(w io.Writer) error {
	s := f.getState()
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(blobMagic[:]); err != nil {
		return err
	}

	header := []any{
		blobVersion,
		uint32(f.dimension),
		uint32(len(s.vectors)),
		uint32(s.live.GetCardinality()),
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	bitmap, err := s.live.ToBytes()
	if err != nil {
		return fmt.Errorf("serialize live set: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(bitmap))); err != nil {
		return err
	}
	if _, err := bw.Write(bitmap); err != nil {
		return err
	}

	it := s.live.Iterator()
	for it.HasNext() {
		slot := it.Next()
		if err := binary.Write(bw, binary.LittleEndian, slot); err != nil {
			return err
		}
		for _, v := range s.vectors[slot] {
			if err := binary.Write(bw, binary.LittleEndian, math.Float32bits(v)); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// Load reads an index previously written by Save.
func Load(r io.Reader) (*Flat, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, &ErrBadBlob{Reason: "missing magic"}
	}
	if magic != blobMagic {
		return nil, &ErrBadBlob{Reason: "bad magic"}
	}

	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, &ErrBadBlob{Reason: "missing version"}
	}
	if version != blobVersion {
		return nil, &ErrBadBlob{Reason: fmt.Sprintf("unsupported version %d", version)}
	}

	var dimension, totalSlots, liveCount, bitmapLen uint32
	for _, dst := range []*uint32{&dimension, &totalSlots, &liveCount, &bitmapLen} {
		if err := binary.Read(br, binary.LittleEndian, dst); err != nil {
			return nil, &ErrBadBlob{Reason: "truncated header"}
		}
	}
	if dimension == 0 {
		return nil, &ErrBadBlob{Reason: "zero dimension"}
	}

	bitmapBytes := make([]byte, bitmapLen)
	if _, err := io.ReadFull(br, bitmapBytes); err != nil {
		return nil, &ErrBadBlob{Reason: "truncated live set"}
	}
	live := roaring.New()
	if err := live.UnmarshalBinary(bitmapBytes); err != nil {
		return nil, &ErrBadBlob{Reason: "bad live set"}
	}
	if live.GetCardinality() != uint64(liveCount) {
		return nil, &ErrBadBlob{Reason: "live count mismatch"}
	}

	vectors := make([][]float32, totalSlots)
	for i := uint32(0); i < liveCount; i++ {
		var slot uint32
		if err := binary.Read(br, binary.LittleEndian, &slot); err != nil {
			return nil, &ErrBadBlob{Reason: "truncated vector record"}
		}
		if slot >= totalSlots || !live.Contains(slot) {
			return nil, &ErrBadBlob{Reason: fmt.Sprintf("unexpected slot %d", slot)}
		}

		vec := make([]float32, dimension)
		for j := range vec {
			var bits uint32
			if err := binary.Read(br, binary.LittleEndian, &bits); err != nil {
				return nil, &ErrBadBlob{Reason: "truncated vector data"}
			}
			vec[j] = math.Float32frombits(bits)
		}
		vectors[slot] = vec
	}

	// Tombstoned slots return to the free list.
	var freeList []uint32
	for slot := uint32(0); slot < totalSlots; slot++ {
		if !live.Contains(slot) {
			freeList = append(freeList, slot)
		}
	}

	f := &Flat{dimension: int(dimension)}
	f.state.Store(&indexState{
		vectors:  vectors,
		live:     live,
		freeList: freeList,
	})
	return f, nil
}
