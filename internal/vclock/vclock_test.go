package vclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBumpMonotonic(t *testing.T) {
	c := New()
	require.EqualValues(t, 1, c.Bump("alice"))
	require.EqualValues(t, 2, c.Bump("alice"))
	require.EqualValues(t, 1, c.Bump("bob"))
	require.EqualValues(t, 3, c.Bump("alice"))
}

func TestGetDefaultsToZero(t *testing.T) {
	c := New()
	require.EqualValues(t, 0, c.Get("nobody"))
}

func TestMergeTakesPerKeyMax(t *testing.T) {
	c := New()
	c.Bump("alice")
	c.Bump("alice")
	c.Merge(map[string]uint64{"alice": 1, "bob": 5})
	snap := c.Snapshot()
	require.EqualValues(t, 2, snap["alice"])
	require.EqualValues(t, 5, snap["bob"])
}

func TestHappensBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]uint64
		want bool
	}{
		{"strictly before", map[string]uint64{"a": 1}, map[string]uint64{"a": 2}, true},
		{"equal is not before", map[string]uint64{"a": 1}, map[string]uint64{"a": 1}, false},
		{"concurrent", map[string]uint64{"a": 2, "b": 0}, map[string]uint64{"a": 1, "b": 1}, false},
		{"missing keys default zero", map[string]uint64{}, map[string]uint64{"a": 1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HappensBefore(tc.a, tc.b))
		})
	}
}
