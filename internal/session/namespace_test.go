package session

import (
	"testing"

	"github.com/jtchitty/legatoDataHub/internal/identity"
	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespace_CreatesAndMemoizesAppEntry(t *testing.T) {
	tr := tree.New()
	resolver := identity.NewStatic()
	resolver.Register("sess1", "myapp")

	cache := NewCache(tr, resolver)
	e1, err := cache.Namespace("sess1")
	require.NoError(t, err)
	assert.Equal(t, "myapp", e1.Name())
	assert.Equal(t, "/app/myapp", e1.Path())

	e2, err := cache.Namespace("sess1")
	require.NoError(t, err)
	assert.Same(t, e1, e2, "second lookup should return the memoized entry")
}

func TestNamespace_RejectedSessionKillsClient(t *testing.T) {
	tr := tree.New()
	resolver := identity.NewStatic()

	cache := NewCache(tr, resolver)
	_, err := cache.Namespace("unknown")
	assert.True(t, ipcerr.IsKillClient(err))
}

func TestClose_InvalidatesMemoizedEntry(t *testing.T) {
	tr := tree.New()
	resolver := identity.NewStatic()
	resolver.Register("sess1", "myapp")

	cache := NewCache(tr, resolver)
	e1, err := cache.Namespace("sess1")
	require.NoError(t, err)

	cache.Close("sess1")
	resolver.Forget("sess1")
	resolver.Register("sess1", "otherapp")

	e2, err := cache.Namespace("sess1")
	require.NoError(t, err)
	assert.NotSame(t, e1, e2)
	assert.Equal(t, "otherapp", e2.Name())
}
