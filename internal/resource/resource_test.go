package resource

import (
	"testing"

	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/sample"
	"github.com/jtchitty/legatoDataHub/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_NewInputUpgradesPlaceholder(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)
	placeholder, err := tr.GetOrCreate(ns, "temp")
	require.NoError(t, err)
	placeholder.BecomePlaceholder()
	require.Equal(t, tree.KindPlaceholder, placeholder.Kind())

	entry, err := Create(tr, ns, "temp", DirectionInput, sample.Numeric, "degC", "sess1")
	require.NoError(t, err)
	assert.Same(t, placeholder, entry)
	assert.Equal(t, tree.KindInput, entry.Kind())
	assert.Equal(t, "degC", entry.Units())
}

func TestCreate_IdempotentOnMatchingInput(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)

	_, err = Create(tr, ns, "temp", DirectionInput, sample.Numeric, "degC", "sess1")
	require.NoError(t, err)
	_, err = Create(tr, ns, "temp", DirectionInput, sample.Numeric, "degC", "sess1")
	assert.NoError(t, err)
}

func TestCreate_ConflictingUnitsIsDuplicate(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)

	_, err = Create(tr, ns, "temp", DirectionInput, sample.Numeric, "degC", "sess1")
	require.NoError(t, err)
	_, err = Create(tr, ns, "temp", DirectionInput, sample.Numeric, "degF", "sess1")
	assert.ErrorIs(t, err, ipcerr.ErrDuplicate)
}

func TestCreate_OutputConflictsWithInput(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)

	_, err = Create(tr, ns, "temp", DirectionInput, sample.Numeric, "", "sess1")
	require.NoError(t, err)
	_, err = Create(tr, ns, "temp", DirectionOutput, sample.Numeric, "", "sess1")
	assert.ErrorIs(t, err, ipcerr.ErrDuplicate)
}

func TestCurrentValue_FallsBackToDefaultThenUnavailable(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)
	_, err = Create(tr, ns, "temp", DirectionOutput, sample.Numeric, "", "sess1")
	require.NoError(t, err)

	_, err = CurrentValue(tr, ns, "temp")
	assert.ErrorIs(t, err, ipcerr.ErrUnavailable)

	require.NoError(t, SetDefault(tr, ns, "temp", sample.NewNumeric(0, 21.5)))
	s, err := CurrentValue(tr, ns, "temp")
	require.NoError(t, err)
	assert.Equal(t, 21.5, s.NumericValue())
}

func TestTyped_WrongTypeKillsClient(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)
	entry, err := Create(tr, ns, "flag", DirectionInput, sample.Bool, "", "sess1")
	require.NoError(t, err)
	entry.SetCurrentValue(sample.NewBool(0, true))

	_, err = Typed(tr, ns, "flag", sample.Numeric)
	assert.True(t, ipcerr.IsKillClient(err))

	s, err := Typed(tr, ns, "flag", sample.Bool)
	require.NoError(t, err)
	assert.True(t, s.BoolValue())
}

func TestDelete_DegradesToPlaceholderWhenObservationChildExists(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)
	entry, err := Create(tr, ns, "temp", DirectionOutput, sample.Numeric, "", "sess1")
	require.NoError(t, err)

	obs, err := tr.GetOrCreate(tr.Root(), "obs/avg")
	require.NoError(t, err)
	obs.SetRole(tree.KindObservation, sample.Numeric, "", "")
	entry.BindObservation(obs)

	require.NoError(t, Delete(tr, ns, "temp"))

	found, err := tr.Find(ns, "temp")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tree.KindPlaceholder, found.Kind())
}

func TestDelete_RemovesLeafEntirely(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)
	_, err = Create(tr, ns, "temp", DirectionOutput, sample.Numeric, "", "sess1")
	require.NoError(t, err)

	require.NoError(t, Delete(tr, ns, "temp"))

	found, err := tr.Find(ns, "temp")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestDelete_NonExistentIsNoOp(t *testing.T) {
	tr := tree.New()
	ns, err := tr.GetOrCreate(tr.Root(), "app/myapp")
	require.NoError(t, err)
	assert.NoError(t, Delete(tr, ns, "nope"))
}
