package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-cli/internal/model"
)

func TestParseChunkRef_Ordinal(t *testing.T) {
	ref, ok := ParseChunkRef("chunk_3")
	require.True(t, ok)
	assert.Equal(t, 3, ref.Ordinal)

	_, ok = ParseChunkRef("chunk_0")
	assert.False(t, ok)

	_, ok = ParseChunkRef("chunk_abc")
	assert.False(t, ok)
}

func TestParseChunkRef_PrefixedUUID(t *testing.T) {
	ref, ok := ParseChunkRef("chunk_id_a1b2c3d4-0000-4000-8000-000000000001")
	require.True(t, ok)
	assert.Equal(t, "a1b2c3d4-0000-4000-8000-000000000001", ref.FullID)

	ref, ok = ParseChunkRef("chunk_id_a1b2c3d4")
	require.True(t, ok)
	assert.Equal(t, "a1b2c3d4", ref.IDPrefix)
}

func TestParseChunkRef_RawUUID(t *testing.T) {
	ref, ok := ParseChunkRef("A1B2C3D4-0000-4000-8000-000000000001")
	require.True(t, ok)
	assert.Equal(t, "a1b2c3d4-0000-4000-8000-000000000001", ref.FullID)

	ref, ok = ParseChunkRef("a1b2c3d4")
	require.True(t, ok)
	assert.Equal(t, "a1b2c3d4", ref.IDPrefix)

	_, ok = ParseChunkRef("not a reference")
	assert.False(t, ok)

	_, ok = ParseChunkRef("")
	assert.False(t, ok)
}

func TestChunkRefResolve(t *testing.T) {
	evidence := []model.EvidenceChunk{
		{ID: "a1b2c3d4-0000-4000-8000-000000000001"},
		{ID: "a1b2c3d4-0000-4000-8000-000000000002"},
		{ID: "ffffffff-0000-4000-8000-000000000003"},
	}

	assert.Equal(t, evidence[1].ID, ChunkRef{Ordinal: 2}.Resolve(evidence))
	assert.Equal(t, "", ChunkRef{Ordinal: 4}.Resolve(evidence), "out-of-range ordinal is unresolved")

	assert.Equal(t, evidence[0].ID, ChunkRef{FullID: evidence[0].ID}.Resolve(evidence))
	assert.Equal(t, "", ChunkRef{FullID: "a1b2c3d4-0000-4000-8000-00000000000f"}.Resolve(evidence))

	assert.Equal(t, evidence[2].ID, ChunkRef{IDPrefix: "ffffffff"}.Resolve(evidence))
	assert.Equal(t, "", ChunkRef{IDPrefix: "a1b2c3d4"}.Resolve(evidence), "ambiguous prefix is unresolved")
}
