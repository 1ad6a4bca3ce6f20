package snowflake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextString(t *testing.T) {
	require.NoError(t, Init(1, 1))

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NextString(KindEvent)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(id, "evt_"))

		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
