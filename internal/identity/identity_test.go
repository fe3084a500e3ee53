package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_RegisteredSessionResolves(t *testing.T) {
	r := NewStatic()
	r.Register("sess1", "myapp")

	name, err := r.AppName("sess1")
	require.NoError(t, err)
	assert.Equal(t, "myapp", name)
}

func TestStatic_UnknownSessionIsRejected(t *testing.T) {
	r := NewStatic()
	_, err := r.AppName("nope")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestStatic_ForgetRemovesRegistration(t *testing.T) {
	r := NewStatic()
	r.Register("sess1", "myapp")
	r.Forget("sess1")

	_, err := r.AppName("sess1")
	assert.ErrorIs(t, err, ErrRejected)
}
