package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoteHistoryEntryRoundTrip(t *testing.T) {
	e := VoteHistoryEntry{Slot: 12, Vote: Notarize(12, Hash{1, 2})}
	b := EncodeVoteHistoryEntry(e)
	got, err := DecodeVoteHistoryEntry(b)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestChecksumDeterministicAndSensitive(t *testing.T) {
	a := []byte("abc")
	b := []byte("abd")

	require.Equal(t, Checksum(a), Checksum(a))
	require.NotEqual(t, Checksum(a), Checksum(b))
}

func TestUint32RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutUint32(buf, 0xCAFEBABE)
	require.Equal(t, uint32(0xCAFEBABE), Uint32(buf))
}
