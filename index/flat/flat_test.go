package flat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(dim int, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestNew(t *testing.T) {
	t.Run("ValidDimension", func(t *testing.T) {
		f, err := New(4)
		require.NoError(t, err)
		assert.Equal(t, 4, f.Dimension())
		assert.Equal(t, 0, f.Len())
	})

	t.Run("InvalidDimension", func(t *testing.T) {
		_, err := New(0)
		var dimErr *ErrInvalidDimension
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 0, dimErr.Dimension)
	})
}

func TestInsert(t *testing.T) {
	f, err := New(3)
	require.NoError(t, err)

	t.Run("SequentialSlots", func(t *testing.T) {
		s0, err := f.Insert(unit(3, 0))
		require.NoError(t, err)
		s1, err := f.Insert(unit(3, 1))
		require.NoError(t, err)
		assert.Equal(t, uint32(0), s0)
		assert.Equal(t, uint32(1), s1)
		assert.Equal(t, 2, f.Len())
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := f.Insert([]float32{1, 0})
		var mismatch *ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 3, mismatch.Expected)
		assert.Equal(t, 2, mismatch.Actual)
	})

	t.Run("CopiesInput", func(t *testing.T) {
		v := unit(3, 2)
		slot, err := f.Insert(v)
		require.NoError(t, err)
		v[2] = 99

		stored, ok := f.Vector(slot)
		require.True(t, ok)
		assert.Equal(t, float32(1), stored[2])
	})
}

func TestDeleteAndSlotReuse(t *testing.T) {
	f, err := New(2)
	require.NoError(t, err)

	s0, err := f.Insert([]float32{1, 0})
	require.NoError(t, err)
	s1, err := f.Insert([]float32{0, 1})
	require.NoError(t, err)

	require.NoError(t, f.Delete(s0))
	assert.Equal(t, 1, f.Len())

	_, ok := f.Vector(s0)
	assert.False(t, ok, "tombstoned slot must not be readable")

	t.Run("DoubleDelete", func(t *testing.T) {
		err := f.Delete(s0)
		var notFound *ErrSlotNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, s0, notFound.Slot)
	})

	t.Run("FreedSlotIsReused", func(t *testing.T) {
		s2, err := f.Insert([]float32{1, 1})
		require.NoError(t, err)
		assert.Equal(t, s0, s2)
		assert.Equal(t, 2, f.Len())
	})

	t.Run("SurvivorUnaffected", func(t *testing.T) {
		v, ok := f.Vector(s1)
		require.True(t, ok)
		assert.Equal(t, []float32{0, 1}, v)
	})
}

func TestUpdate(t *testing.T) {
	f, err := New(2)
	require.NoError(t, err)

	slot, err := f.Insert([]float32{1, 0})
	require.NoError(t, err)

	require.NoError(t, f.Update(slot, []float32{0, 1}))
	v, ok := f.Vector(slot)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1}, v)

	t.Run("DeadSlot", func(t *testing.T) {
		require.NoError(t, f.Delete(slot))
		err := f.Update(slot, []float32{1, 0})
		var notFound *ErrSlotNotFound
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("UnknownSlot", func(t *testing.T) {
		err := f.Update(500, []float32{1, 0})
		var notFound *ErrSlotNotFound
		require.ErrorAs(t, err, &notFound)
	})
}

func TestSearch(t *testing.T) {
	f, err := New(3)
	require.NoError(t, err)

	// Unit vectors so the inner product is cosine similarity.
	slots := make([]uint32, 3)
	for i := 0; i < 3; i++ {
		slot, err := f.Insert(unit(3, i))
		require.NoError(t, err)
		slots[i] = slot
	}

	t.Run("OrderedByScore", func(t *testing.T) {
		results, err := f.Search([]float32{0.8, 0.6, 0.1}, 3, 0.01, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, slots[0], results[0].Slot)
		assert.Equal(t, slots[1], results[1].Slot)
		assert.Equal(t, slots[2], results[2].Slot)
	})

	t.Run("TopK", func(t *testing.T) {
		results, err := f.Search([]float32{0.9, 0.3, 0.1}, 2, 0.05, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, slots[0], results[0].Slot)
		assert.Equal(t, slots[1], results[1].Slot)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("Threshold", func(t *testing.T) {
		results, err := f.Search(unit(3, 0), 10, 0.5, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, slots[0], results[0].Slot)
	})

	t.Run("TiesBreakByAscendingSlot", func(t *testing.T) {
		g, err := New(2)
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			_, err := g.Insert([]float32{1, 0})
			require.NoError(t, err)
		}
		results, err := g.Search([]float32{1, 0}, 3, 0, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []uint32{0, 1, 2}, []uint32{results[0].Slot, results[1].Slot, results[2].Slot})
	})

	t.Run("RankOverridesSlotOrder", func(t *testing.T) {
		g, err := New(2)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := g.Insert([]float32{1, 0})
			require.NoError(t, err)
		}

		// Rank inverts the slot order; with k=2 the highest slots must win.
		rank := func(slot uint32) uint64 { return uint64(2 - slot) }
		results, err := g.SearchRanked([]float32{1, 0}, 2, 0, nil, rank)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint32(2), results[0].Slot)
		assert.Equal(t, uint32(1), results[1].Slot)
	})

	t.Run("RankedReusedSlot", func(t *testing.T) {
		g, err := New(2)
		require.NoError(t, err)

		// Two identical vectors, delete the first, insert a third into the
		// recycled slot 0. Without a rank the recycled slot would win the
		// k=1 tie even though its occupant arrived last.
		first, err := g.Insert([]float32{1, 0})
		require.NoError(t, err)
		second, err := g.Insert([]float32{1, 0})
		require.NoError(t, err)
		require.NoError(t, g.Delete(first))
		third, err := g.Insert([]float32{1, 0})
		require.NoError(t, err)
		require.Equal(t, first, third)

		order := map[uint32]uint64{second: 1, third: 2}
		rank := func(slot uint32) uint64 { return order[slot] }

		results, err := g.SearchRanked([]float32{1, 0}, 1, 0, nil, rank)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, second, results[0].Slot)
	})

	t.Run("TombstonesInvisible", func(t *testing.T) {
		require.NoError(t, f.Delete(slots[2]))
		results, err := f.Search(unit(3, 2), 10, -1, nil)
		require.NoError(t, err)
		for _, r := range results {
			assert.NotEqual(t, slots[2], r.Slot)
		}
	})

	t.Run("Filter", func(t *testing.T) {
		results, err := f.Search([]float32{1, 1, 0}, 10, 0, func(slot uint32) bool {
			return slot == slots[1]
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, slots[1], results[0].Slot)
	})

	t.Run("InvalidK", func(t *testing.T) {
		_, err := f.Search(unit(3, 0), 0, 0, nil)
		require.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := f.Search([]float32{1}, 1, 0, nil)
		var mismatch *ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
	})
}

func TestSaveLoad(t *testing.T) {
	f, err := New(4)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.Insert(unit(4, i%4))
		require.NoError(t, err)
	}
	require.NoError(t, f.Delete(1))
	require.NoError(t, f.Delete(3))

	var buf bytes.Buffer
	require.NoError(t, f.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.Dimension(), loaded.Dimension())
	assert.Equal(t, f.Len(), loaded.Len())

	t.Run("LiveVectorsSurvive", func(t *testing.T) {
		for _, slot := range []uint32{0, 2, 4} {
			want, ok := f.Vector(slot)
			require.True(t, ok)
			got, ok := loaded.Vector(slot)
			require.True(t, ok)
			assert.Equal(t, want, got)
		}
	})

	t.Run("TombstonesSurvive", func(t *testing.T) {
		_, ok := loaded.Vector(1)
		assert.False(t, ok)
		_, ok = loaded.Vector(3)
		assert.False(t, ok)
	})

	t.Run("FreedSlotsReusable", func(t *testing.T) {
		slot, err := loaded.Insert(unit(4, 0))
		require.NoError(t, err)
		assert.Contains(t, []uint32{1, 3}, slot)
	})

	t.Run("BadMagic", func(t *testing.T) {
		_, err := Load(bytes.NewReader([]byte("XXXXjunkjunkjunk")))
		var bad *ErrBadBlob
		require.ErrorAs(t, err, &bad)
	})

	t.Run("Truncated", func(t *testing.T) {
		var full bytes.Buffer
		require.NoError(t, f.Save(&full))
		_, err := Load(bytes.NewReader(full.Bytes()[:full.Len()/2]))
		var bad *ErrBadBlob
		require.ErrorAs(t, err, &bad)
	})
}
