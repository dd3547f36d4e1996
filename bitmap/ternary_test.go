package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTernaryRoundTrip(t *testing.T) {
	cases := []struct {
		name             string
		n                int
		sourceA, sourceB []uint32
	}{
		{"empty", 0, nil, nil},
		{"all absent", 10, nil, nil},
		{"all source A", 5, []uint32{0, 1, 2, 3, 4}, nil},
		{"all source B", 5, nil, []uint32{0, 1, 2, 3, 4}},
		{"mixed", 12, []uint32{0, 1, 5}, []uint32{2, 3, 11}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tern := NewTernary(tc.n, tc.sourceA, tc.sourceB)
			encoded := EncodeTernary(tern)
			got, n, err := DecodeTernary(encoded)
			require.NoError(t, err)
			require.Equal(t, len(encoded), n)
			require.Equal(t, tern, got)
		})
	}
}

func TestTernaryGetAndRanksFor(t *testing.T) {
	tern := NewTernary(10, []uint32{1, 2}, []uint32{5, 6})
	require.Equal(t, TritSourceA, tern.Get(1))
	require.Equal(t, TritSourceB, tern.Get(5))
	require.Equal(t, TritAbsent, tern.Get(0))
	require.Equal(t, TritAbsent, tern.Get(100))

	require.Equal(t, []uint32{1, 2}, tern.RanksFor(TritSourceA))
	require.Equal(t, []uint32{5, 6}, tern.RanksFor(TritSourceB))
	require.ElementsMatch(t, []uint32{0, 3, 4, 7, 8, 9}, tern.RanksFor(TritAbsent))
}

func TestTernaryConflictingSourcesLastWriteWins(t *testing.T) {
	// A rank present in both sets resolves to source B, since NewTernary
	// applies sourceA then sourceB.
	tern := NewTernary(4, []uint32{0}, []uint32{0})
	require.Equal(t, TritSourceB, tern.Get(0))
}

func TestDecodeTernaryInvalidValue(t *testing.T) {
	tern := NewTernary(4, []uint32{0}, nil)
	encoded := EncodeTernary(tern)
	// Corrupt the trit-value byte (immediately after the varint(N) prefix).
	encoded[1] = 3
	_, _, err := DecodeTernary(encoded)
	require.ErrorIs(t, err, ErrInvalidTrit)
}

func TestDecodeTernaryTruncated(t *testing.T) {
	_, _, err := DecodeTernary(nil)
	require.ErrorIs(t, err, ErrTruncated)
}
