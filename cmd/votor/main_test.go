package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCmdFlagDefaults(t *testing.T) {
	cmd := runCmd()

	historyPath, err := cmd.Flags().GetString("history-path")
	require.NoError(t, err)
	require.Equal(t, "votehistory.journal", historyPath)

	namespace, err := cmd.Flags().GetString("metrics-namespace")
	require.NoError(t, err)
	require.Equal(t, "votor", namespace)
}

func TestRunCmdFlagsAreOverridable(t *testing.T) {
	cmd := runCmd()
	require.NoError(t, cmd.Flags().Set("history-path", "/tmp/custom.journal"))
	require.NoError(t, cmd.Flags().Set("metrics-namespace", "custom_ns"))

	historyPath, err := cmd.Flags().GetString("history-path")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.journal", historyPath)

	namespace, err := cmd.Flags().GetString("metrics-namespace")
	require.NoError(t, err)
	require.Equal(t, "custom_ns", namespace)
}

func TestStaticKeyLookupReturnsConfiguredKey(t *testing.T) {
	key := []byte{0x01, 0x02, 0x03}
	lookup := staticKeyLookup(key)

	got, err := lookup(7)
	require.NoError(t, err)
	require.Equal(t, key, got)
}

func TestStaticRankReturnsConfiguredRank(t *testing.T) {
	rankOf := staticRank(4)

	got, err := rankOf(7)
	require.NoError(t, err)
	require.Equal(t, uint32(4), uint32(got))
}

func TestParseValidatorsEmptyReturnsNoMembers(t *testing.T) {
	members, err := parseValidators(nil)
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestParseValidatorsRejectsMissingFields(t *testing.T) {
	_, err := parseValidators([]string{"NodeID-only"})
	require.Error(t, err)
}

func TestParseValidatorsRejectsInvalidNodeID(t *testing.T) {
	_, err := parseValidators([]string{"not-a-node-id:aa:100"})
	require.Error(t, err)
}

func TestParseValidatorsRejectsInvalidPublicKeyHex(t *testing.T) {
	_, err := parseValidators([]string{"NodeID-111111111111111111116DBWJs:not-hex:100"})
	require.Error(t, err)
}

func TestParseValidatorsRejectsInvalidStake(t *testing.T) {
	_, err := parseValidators([]string{"NodeID-111111111111111111116DBWJs:aabb:not-a-number"})
	require.Error(t, err)
}

func TestParseValidatorsRejectsMalformedPublicKeyBytes(t *testing.T) {
	// Well-formed hex that is not a valid compressed BLS point must
	// surface the underlying parse error rather than panicking.
	_, err := parseValidators([]string{"NodeID-111111111111111111116DBWJs:aabbccdd:100"})
	require.Error(t, err)
}
