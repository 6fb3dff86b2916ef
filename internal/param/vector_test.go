package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVector(t *testing.T) *Vector {
	t.Helper()
	return NewVector([]*Parameter{
		MustNew("w", []int{2, 2}, []float64{1, 2, 3, 4}),
		MustNew("b", []int{2}, []float64{5, 6}),
		MustNew("scale", []int{1}, []float64{7}),
	})
}

func TestFlattenLength(t *testing.T) {
	v := testVector(t)
	assert.Equal(t, 7, v.FlatLen())
	assert.Len(t, v.Flatten(), 7)
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	v := testVector(t)

	flat := v.Flatten()
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, flat)

	arrays, err := v.Unflatten(flat)
	require.NoError(t, err)
	require.Len(t, arrays, 3)
	assert.Equal(t, []float64{1, 2, 3, 4}, arrays[0])
	assert.Equal(t, []float64{5, 6}, arrays[1])
	assert.Equal(t, []float64{7}, arrays[2])
}

func TestUnflattenFlattenRoundTrip(t *testing.T) {
	v := testVector(t)

	flat := []float64{10, 20, 30, 40, 50, 60, 70}
	require.NoError(t, v.Apply(flat))
	assert.Equal(t, flat, v.Flatten())
}

func TestUnflattenRejectsWrongLength(t *testing.T) {
	v := testVector(t)

	_, err := v.Unflatten(make([]float64, 6))
	require.Error(t, err)
	var mismatch *ShapeMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 7, mismatch.Want)
	assert.Equal(t, 6, mismatch.Got)

	assert.Error(t, v.Apply(make([]float64, 8)))
}

func TestSnapshotRestore(t *testing.T) {
	v := testVector(t)
	snap := v.Snapshot()

	require.NoError(t, v.Apply(make([]float64, 7)))
	assert.Equal(t, make([]float64, 7), v.Flatten())

	require.NoError(t, v.Restore(snap))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, v.Flatten())
}

func TestSnapshotIsDeep(t *testing.T) {
	v := testVector(t)
	snap := v.Snapshot()

	// Mutating the live parameters must not touch the snapshot.
	v.Parameters()[0].Data()[0] = -99
	assert.Equal(t, 1.0, snap[0][0])
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, snap.Flat())
}

func TestFlatVecMatchesFlatten(t *testing.T) {
	v := testVector(t)
	vec := v.FlattenVec()
	assert.Equal(t, v.FlatLen(), vec.Len())
	assert.Equal(t, v.Flatten(), vec.RawVector().Data)
}
