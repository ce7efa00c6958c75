package teams

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleSetJSON(t *testing.T) {
	t.Run("marshals as sorted array", func(t *testing.T) {
		s := RoleSet{}
		s.Add("zebra", "alpha", "mid")

		data, err := json.Marshal(s)
		require.NoError(t, err)
		assert.JSONEq(t, `["alpha","mid","zebra"]`, string(data))
	})

	t.Run("unmarshals array into set", func(t *testing.T) {
		var s RoleSet
		require.NoError(t, json.Unmarshal([]byte(`["a","b","a"]`), &s))
		assert.Equal(t, []string{"a", "b"}, s.Sorted())
	})

	t.Run("rejects non-array input", func(t *testing.T) {
		var s RoleSet
		assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &s))
	})

	t.Run("buckets round-trip through JSON", func(t *testing.T) {
		buckets := NewAccessBuckets()
		buckets.Grant(ResourceForm, ScopeReadAll, "team-a", "team-b")

		data, err := json.Marshal(buckets)
		require.NoError(t, err)

		var decoded AccessBuckets
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, decoded.Allows(ResourceForm, ScopeReadAll, []string{"team-b"}))
		assert.False(t, decoded.Allows(ResourceForm, ScopeUpdateAll, []string{"team-b"}))
	})
}
