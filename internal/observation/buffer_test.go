package observation

import (
	"math"
	"testing"

	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/sample"
	"github.com/jtchitty/legatoDataHub/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_EvictsOldestAtCapacity(t *testing.T) {
	b := NewBuffer(3)
	b.Append(sample.NewNumeric(1, 1))
	b.Append(sample.NewNumeric(2, 2))
	b.Append(sample.NewNumeric(3, 3))
	b.Append(sample.NewNumeric(4, 4))

	got := b.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, 2.0, got[0].NumericValue())
	assert.Equal(t, 4.0, got[2].NumericValue())
}

func TestReadJSON_NaNDumpsWholeBuffer(t *testing.T) {
	b := NewBuffer(3)
	b.Append(sample.NewNumeric(1, 1))
	b.Append(sample.NewNumeric(2, 2))
	b.Append(sample.NewNumeric(3, 3))
	b.Append(sample.NewNumeric(4, 4))

	out, err := ReadJSON(b, math.NaN(), 1000)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"t":2.0,"v":2},{"t":3.0,"v":3},{"t":4.0,"v":4}]`, string(out))
}

func TestReadJSON_RelativeVsAbsoluteThreshold(t *testing.T) {
	b := NewBuffer(10)
	b.Append(sample.NewNumeric(100, 1))
	b.Append(sample.NewNumeric(200, 2))

	// now=1000, relative start_after=850 -> threshold=150, keeps t=200 only.
	out, err := ReadJSON(b, 850, 1000)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"t":200.0,"v":2}]`, string(out))

	// A value at or above the 30-year threshold is an absolute epoch time:
	// start_after=1e9+150 keeps only t=1e9+200 (read as relative, it would
	// give threshold=850 and keep both samples).
	abs := NewBuffer(10)
	abs.Append(sample.NewNumeric(1e9+100, 1))
	abs.Append(sample.NewNumeric(1e9+200, 2))
	out, err = ReadJSON(abs, 1e9+150, 1e9+1000)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"t":1000000200.0,"v":2}]`, string(out))
}

func TestReadJSON_NegativeStartAfterKillsClient(t *testing.T) {
	b := NewBuffer(3)
	_, err := ReadJSON(b, -1, 1000)
	assert.True(t, ipcerr.IsKillClient(err))
}

func TestAggregate_ComputesOverNumericWindowOnly(t *testing.T) {
	b := NewBuffer(10)
	b.Append(sample.NewNumeric(1, 10))
	b.Append(sample.NewNumeric(2, 20))
	b.Append(sample.NewBool(3, true)) // ignored: not numeric
	b.Append(sample.NewNumeric(4, 30))

	min, err := Aggregate(b, Min, math.NaN(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 10.0, min)

	max, err := Aggregate(b, Max, math.NaN(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 30.0, max)

	avg, err := Aggregate(b, Mean, math.NaN(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 20.0, avg)

	sd, err := Aggregate(b, StdDev, math.NaN(), 1000)
	require.NoError(t, err)
	assert.InDelta(t, 8.16496, sd, 0.0001)
}

func TestAggregate_EmptyWindowIsNaN(t *testing.T) {
	b := NewBuffer(3)
	v, err := Aggregate(b, Mean, math.NaN(), 1000)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestStore_AppendObservationCreatesBufferOnDemand(t *testing.T) {
	tr := tree.New()
	entry, err := tr.GetOrCreate(tr.Root(), "obs/avg")
	require.NoError(t, err)
	entry.SetRole(tree.KindObservation, sample.Numeric, "", "")

	s := NewStore(2)
	s.AppendObservation(entry, sample.NewNumeric(1, 10))
	s.AppendObservation(entry, sample.NewNumeric(2, 20))
	s.AppendObservation(entry, sample.NewNumeric(3, 30))

	got := s.BufferFor(entry).snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, 20.0, got[0].NumericValue())
}

func TestStore_ConfigureResetsBuffer(t *testing.T) {
	tr := tree.New()
	entry, err := tr.GetOrCreate(tr.Root(), "obs/avg")
	require.NoError(t, err)

	s := NewStore(5)
	s.AppendObservation(entry, sample.NewNumeric(1, 10))
	s.Configure(entry, 1)

	assert.Empty(t, s.BufferFor(entry).snapshot())
}
