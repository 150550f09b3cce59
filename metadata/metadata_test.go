package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	md := Metadata{"topic": "physics", "year": 2021, "published": true}
	require.NoError(t, md.Validate())

	bad := Metadata{"nested": map[string]string{"k": "v"}}
	err := bad.Validate()
	require.Error(t, err)
	assert.IsType(t, &ErrUnsupportedValue{}, err)
}

func TestNormalize(t *testing.T) {
	md := Metadata{"year": 2021, "score": float32(0.5)}.Normalize()
	assert.Equal(t, float64(2021), md["year"])
	assert.Equal(t, 0.5, md["score"])
}

func TestFilterMatches(t *testing.T) {
	md := Metadata{"topic": "physics", "year": 2021}.Normalize()

	assert.True(t, Eq("topic", "physics").Matches(md))
	assert.True(t, Eq("year", 2021).Matches(md))
	assert.False(t, Eq("year", 2020).Matches(md))
	assert.False(t, Eq("missing", "x").Matches(md))

	fs := FilterSet{Eq("topic", "physics"), Eq("year", 2021)}
	assert.True(t, fs.Matches(md))
	assert.True(t, FilterSet{}.Matches(md))
}

func TestIndexCandidates(t *testing.T) {
	ix := NewIndex()
	ix.Add(0, Metadata{"topic": "physics", "lang": "en"}.Normalize())
	ix.Add(1, Metadata{"topic": "physics", "lang": "de"}.Normalize())
	ix.Add(2, Metadata{"topic": "biology", "lang": "en"}.Normalize())

	// Unrestricted.
	assert.Nil(t, ix.Candidates(nil))

	bm := ix.Candidates(FilterSet{Eq("topic", "physics")})
	require.NotNil(t, bm)
	assert.ElementsMatch(t, []uint32{0, 1}, bm.ToArray())

	bm = ix.Candidates(FilterSet{Eq("topic", "physics"), Eq("lang", "en")})
	assert.ElementsMatch(t, []uint32{0}, bm.ToArray())

	// Unknown term short-circuits to empty.
	bm = ix.Candidates(FilterSet{Eq("topic", "chemistry")})
	require.NotNil(t, bm)
	assert.True(t, bm.IsEmpty())
}

func TestIndexRemove(t *testing.T) {
	ix := NewIndex()
	md := Metadata{"topic": "physics"}.Normalize()
	ix.Add(7, md)
	ix.Remove(7, md)

	bm := ix.Candidates(FilterSet{Eq("topic", "physics")})
	require.NotNil(t, bm)
	assert.True(t, bm.IsEmpty())
}
