package blssig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyRejectsNilInputs(t *testing.T) {
	require.False(t, Verify(nil, nil, []byte("msg")))
}

func TestVerifyBytesRejectsMalformedSignature(t *testing.T) {
	require.False(t, VerifyBytes(nil, []byte{0x01, 0x02}, []byte("msg")))
}

func TestNewSignerFromBytesRejectsMalformedKey(t *testing.T) {
	_, err := NewSignerFromBytes([]byte{0x00})
	require.Error(t, err)
}

func TestVerifyTwoMessageAggregateRejectsEmptyParticipation(t *testing.T) {
	ok := VerifyTwoMessageAggregate(nil, nil, nil, []byte("a"), []byte("b"))
	require.False(t, ok)
}
