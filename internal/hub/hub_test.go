package hub

import (
	"math"
	"testing"

	"github.com/jtchitty/legatoDataHub/internal/identity"
	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/observation"
	"github.com/jtchitty/legatoDataHub/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, sessions map[string]string) *Hub {
	t.Helper()
	resolver := identity.NewStatic()
	for id, app := range sessions {
		resolver.Register(id, app)
	}
	return New(resolver, 16, nil)
}

func TestScenario_InputRoundTrip(t *testing.T) {
	h := newTestHub(t, map[string]string{"s1": "sensor"})

	require.NoError(t, h.CreateInput("s1", "temp", sample.Numeric, "degC"))
	require.NoError(t, h.PushNumeric("s1", "temp", 0, 21.5))

	s, err := h.GetTyped("s1", "temp", sample.Numeric)
	require.NoError(t, err)
	assert.Equal(t, 21.5, s.NumericValue())
	assert.Greater(t, s.Timestamp(), 0.0)
}

func TestScenario_UpgradeHandlerRegisteredBeforeProducer(t *testing.T) {
	// Two sessions of the same app share /app/appA, so the consumer's "x"
	// and the producer's "x" are the same entry.
	h := newTestHub(t, map[string]string{"a": "appA", "b": "appA"})

	var delivered sample.Sample
	_, err := h.AddHandler("a", "x", sample.Numeric, func(s sample.Sample) { delivered = s })
	require.NoError(t, err)

	require.NoError(t, h.CreateInput("b", "x", sample.Numeric, ""))
	require.NoError(t, h.PushNumeric("b", "x", 0, 99))

	assert.Equal(t, 99.0, delivered.NumericValue())
}

func TestScenario_DuplicateRejection(t *testing.T) {
	h := newTestHub(t, map[string]string{"s1": "appA"})

	require.NoError(t, h.CreateInput("s1", "p", sample.Bool, ""))
	require.NoError(t, h.CreateInput("s1", "p", sample.Bool, ""))

	err := h.CreateInput("s1", "p", sample.Numeric, "")
	assert.ErrorIs(t, err, ipcerr.ErrDuplicate)

	err = h.CreateOutput("s1", "p", sample.Bool, "")
	assert.ErrorIs(t, err, ipcerr.ErrDuplicate)
}

func TestScenario_ObservationDump(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})

	require.NoError(t, h.CreateInput("a", "in", sample.Numeric, ""))
	_, err := h.ConfigureObservation("/app/A/in", "o", 3)
	require.NoError(t, err)

	require.NoError(t, h.PushNumeric("a", "in", 1, 1))
	require.NoError(t, h.PushNumeric("a", "in", 2, 2))
	require.NoError(t, h.PushNumeric("a", "in", 3, 3))
	require.NoError(t, h.PushNumeric("a", "in", 4, 4))

	out, err := h.ReadBufferJSON("/obs/o", math.NaN())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"t":2.0,"v":2},{"t":3.0,"v":3},{"t":4.0,"v":4}]`, string(out))
}

func TestScenario_TypeMismatchKillsClient(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})
	require.NoError(t, h.CreateInput("a", "t", sample.Numeric, ""))

	err := h.PushBool("a", "t", 0, true)
	assert.True(t, ipcerr.IsKillClient(err))

	_, err = h.GetTyped("a", "t", sample.Numeric)
	assert.ErrorIs(t, err, ipcerr.ErrUnavailable)
}

func TestScenario_DefaultIgnoredAfterFirstCall(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})
	require.NoError(t, h.CreateOutput("a", "n", sample.Numeric, ""))

	require.NoError(t, h.SetDefault("a", "n", sample.NewNumeric(0, 10)))
	require.NoError(t, h.SetDefault("a", "n", sample.NewNumeric(0, 20)))

	s, err := h.GetTyped("a", "n", sample.Numeric)
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.NumericValue())
}

func TestEndSession_ReclaimsHandlersAndOwnedResources(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})
	require.NoError(t, h.CreateInput("a", "temp", sample.Numeric, ""))

	ref, err := h.AddHandler("a", "temp", sample.Numeric, func(sample.Sample) {})
	require.NoError(t, err)
	assert.NotZero(t, ref)

	h.EndSession("a")

	s, err := h.QueryTyped("/app/A/temp", sample.Numeric)
	assert.ErrorIs(t, err, ipcerr.ErrNotFound)
	assert.Equal(t, sample.Sample{}, s)
}

func TestEndSession_ReclaimsNestedResources(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})
	require.NoError(t, h.CreateInput("a", "sensor/temp", sample.Numeric, "degC"))
	require.NoError(t, h.CreateInput("a", "top", sample.Bool, ""))

	h.EndSession("a")

	_, err := h.QueryTyped("/app/A/sensor/temp", sample.Numeric)
	assert.ErrorIs(t, err, ipcerr.ErrNotFound)
	_, err = h.QueryTyped("/app/A/top", sample.Bool)
	assert.ErrorIs(t, err, ipcerr.ErrNotFound)
	// The emptied intermediate namespace goes with it.
	_, err = h.GetDataType("/app/A/sensor")
	assert.ErrorIs(t, err, ipcerr.ErrNotFound)
}

func TestGetTyped_WrongTypeKillsClient(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})
	require.NoError(t, h.CreateInput("a", "flag", sample.Bool, ""))
	require.NoError(t, h.PushBool("a", "flag", 0, true))

	_, err := h.GetTyped("a", "flag", sample.Numeric)
	assert.True(t, ipcerr.IsKillClient(err))

	// The query side is not session-bound: same mismatch, reported code.
	_, err = h.QueryTyped("/app/A/flag", sample.Numeric)
	assert.ErrorIs(t, err, ipcerr.ErrFormat)
}

func TestEndSession_UnknownSessionIsNoOp(t *testing.T) {
	h := newTestHub(t, nil)
	h.EndSession("ghost")

	// Ending a session that never resolved a namespace must not create one.
	_, err := h.QueryTyped("/app/ghost", sample.Numeric)
	assert.ErrorIs(t, err, ipcerr.ErrNotFound)
}

func TestConfigureObservation_ReconfigureDeliversOnce(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})
	require.NoError(t, h.CreateInput("a", "in", sample.Numeric, ""))

	_, err := h.ConfigureObservation("/app/A/in", "o", 4)
	require.NoError(t, err)
	_, err = h.ConfigureObservation("/app/A/in", "o", 4)
	require.NoError(t, err)

	require.NoError(t, h.PushNumeric("a", "in", 1, 5))

	out, err := h.ReadBufferJSON("/obs/o", math.NaN())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"t":1.0,"v":5}]`, string(out))
}

func TestAggregate_MeanOverObservationWindow(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})
	require.NoError(t, h.CreateOutput("a", "out", sample.Numeric, ""))
	_, err := h.ConfigureObservation("/app/A/out", "agg", 10)
	require.NoError(t, err)

	require.NoError(t, h.PushNumeric("a", "out", 1, 10))
	require.NoError(t, h.PushNumeric("a", "out", 2, 20))

	mean, err := h.GetAggregate("/obs/agg", observation.Mean, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, 15.0, mean)
}

func TestReadBufferJSON_UnknownObservationIsNotFound(t *testing.T) {
	h := newTestHub(t, map[string]string{"a": "A"})
	_, err := h.ReadBufferJSON("/obs/nope", math.NaN())
	assert.ErrorIs(t, err, ipcerr.ErrNotFound)
}
