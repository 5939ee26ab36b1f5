package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStaleViewFrameCarriesExplicitBit checks both staleness notifications
// serialize the bit, so clients never have to infer freshness from an
// absent field.
func TestStaleViewFrameCarriesExplicitBit(t *testing.T) {
	t.Parallel()

	stale, err := json.Marshal(staleViewFrame(true))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"stale_view","stale":true}`, string(stale))

	fresh, err := json.Marshal(staleViewFrame(false))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"stale_view","stale":false}`, string(fresh))
}
