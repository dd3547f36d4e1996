package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		n    int
		set  []uint32
	}{
		{"empty", 0, nil},
		{"all absent", 10, nil},
		{"all present", 8, []uint32{0, 1, 2, 3, 4, 5, 6, 7}},
		{"single rank", 5, []uint32{2}},
		{"scattered", 20, []uint32{0, 3, 4, 5, 19}},
		{"out of range ignored", 4, []uint32{100}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBinary(tc.n, tc.set)
			encoded := EncodeBinary(b)
			got, n, err := DecodeBinary(encoded)
			require.NoError(t, err)
			require.Equal(t, len(encoded), n)
			require.Equal(t, b, got)
		})
	}
}

func TestBinarySetAndRanks(t *testing.T) {
	b := NewBinary(10, []uint32{1, 4, 9})
	require.True(t, b.Set(1))
	require.True(t, b.Set(4))
	require.True(t, b.Set(9))
	require.False(t, b.Set(0))
	require.False(t, b.Set(100))
	require.Equal(t, []uint32{1, 4, 9}, b.Ranks())
}

func TestEncodeBinaryIsSelfCanonicalizing(t *testing.T) {
	b := NewBinary(16, []uint32{2, 3, 4, 10})
	first := EncodeBinary(b)
	decoded, _, err := DecodeBinary(first)
	require.NoError(t, err)
	second := EncodeBinary(decoded)
	require.Equal(t, first, second)
}

func TestDecodeBinaryTruncated(t *testing.T) {
	_, _, err := DecodeBinary(nil)
	require.ErrorIs(t, err, ErrTruncated)

	b := NewBinary(8, []uint32{1, 2})
	encoded := EncodeBinary(b)
	_, _, err = DecodeBinary(encoded[:len(encoded)-1])
	require.ErrorIs(t, err, ErrTruncated)
}
