package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoteRoundTrip(t *testing.T) {
	votes := []Vote{
		Notarize(7, Hash{1, 2, 3}),
		NotarizeFallback(7, Hash{4, 5, 6}),
		Skip(8),
		SkipFallback(9),
		Finalize(10),
		Genesis(0, Hash{9, 9, 9}),
	}

	for _, v := range votes {
		b := EncodeVote(v)
		require.Len(t, b, 41)
		got, n, err := DecodeVote(b)
		require.NoError(t, err)
		require.Equal(t, 41, n)
		require.Equal(t, v, got)
	}
}

func TestDecodeVoteShortBuffer(t *testing.T) {
	_, _, err := DecodeVote(make([]byte, 10))
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeVoteUnknownKind(t *testing.T) {
	b := EncodeVote(Skip(1))
	b[0] = 0xFF
	_, _, err := DecodeVote(b)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestVoteMessageRoundTrip(t *testing.T) {
	m := VoteMessage{
		Vote:         Notarize(3, Hash{1}),
		BLSSignature: []byte{0xDE, 0xAD, 0xBE, 0xEF},
		Rank:         42,
	}
	b := EncodeVoteMessage(m)
	got, n, err := DecodeVoteMessage(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, m, got)
}

func TestCertificateRoundTrip(t *testing.T) {
	c := Certificate{
		ID:        CertID{Type: CertNotarize, Slot: 100, Hash: Hash{7, 7}},
		Signature: []byte{1, 2, 3, 4},
		Bitmap:    []byte{0xFF, 0x0F},
	}
	b := EncodeCertificate(c)
	got, n, err := DecodeCertificate(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, c, got)
}

func TestCertificateRoundTripEmptyPayloads(t *testing.T) {
	c := Certificate{ID: CertID{Type: CertFinalize, Slot: 1}}
	b := EncodeCertificate(c)
	got, _, err := DecodeCertificate(b)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestConsensusMessageRoundTrip(t *testing.T) {
	voteMsg := VoteConsensusMessage(VoteMessage{Vote: Skip(5), Rank: 1})
	b := EncodeConsensusMessage(voteMsg)
	got, err := DecodeConsensusMessage(b)
	require.NoError(t, err)
	require.Equal(t, voteMsg, got)

	certMsg := CertConsensusMessage(Certificate{ID: CertID{Type: CertSkip, Slot: 2}})
	b = EncodeConsensusMessage(certMsg)
	got, err = DecodeConsensusMessage(b)
	require.NoError(t, err)
	require.Equal(t, certMsg, got)
}

func TestDecodeConsensusMessageUnknownKind(t *testing.T) {
	_, err := DecodeConsensusMessage([]byte{0xFF})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestCanonicalVoteBytesIncludesDomain(t *testing.T) {
	v := Notarize(1, Hash{1})
	b := CanonicalVoteBytes(v)
	require.Equal(t, 1+8+32+len(Domain), len(b))
	require.Equal(t, []byte(Domain), b[len(b)-len(Domain):])
}

func TestCanonicalVoteBytesDeterministic(t *testing.T) {
	v := Notarize(99, Hash{1, 2, 3, 4})
	require.Equal(t, CanonicalVoteBytes(v), CanonicalVoteBytes(v))

	other := Notarize(99, Hash{1, 2, 3, 5})
	require.NotEqual(t, CanonicalVoteBytes(v), CanonicalVoteBytes(other))
}
