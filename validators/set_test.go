package validators

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func testMembers(stakes ...uint64) []Member {
	members := make([]Member, len(stakes))
	for i, stake := range stakes {
		var nodeID ids.NodeID
		nodeID[0] = byte(i + 1)
		members[i] = Member{NodeID: nodeID, Stake: stake}
	}
	return members
}

func TestNewSetTotalsStakeAndRank(t *testing.T) {
	members := testMembers(10, 20, 30)
	set := NewSet(5, members)

	require.Equal(t, uint64(5), set.Epoch())
	require.Equal(t, 3, set.Len())
	require.Equal(t, uint64(60), set.TotalStake())
	require.Equal(t, uint64(10), set.StakeOf(0))
	require.Equal(t, uint64(20), set.StakeOf(1))
	require.Equal(t, uint64(0), set.StakeOf(100))

	rank, ok := set.RankOf(members[1].NodeID)
	require.True(t, ok)
	require.Equal(t, uint32(1), rank)

	_, ok = set.RankOf(ids.NodeID{0xFF})
	require.False(t, ok)
}

func TestPublicKeyOfOutOfRange(t *testing.T) {
	set := NewSet(0, testMembers(1))
	_, err := set.PublicKeyOf(5)
	require.Error(t, err)
}

func TestMeetsThresholdExactCrossMultiplication(t *testing.T) {
	// Total stake 3 does not divide evenly into basis points; cross-
	// multiplication must still decide the 60% boundary exactly.
	set := NewSet(0, testMembers(1, 1, 1))

	require.False(t, set.MeetsThreshold(1, 6000)) // 1/3 = 33.3% < 60%
	require.True(t, set.MeetsThreshold(2, 6000))  // 2/3 = 66.7% >= 60%
	require.True(t, set.MeetsThreshold(3, 6000))  // 100% >= 60%
}

func TestMeetsThresholdZeroTotalStake(t *testing.T) {
	set := NewSet(0, nil)
	require.False(t, set.MeetsThreshold(0, 1))
}

// TestMeetsThresholdDoesNotOverflowAtLamportScale guards against the
// plain uint64 cross-multiplication stake*10000 overflowing once total
// stake exceeds roughly 1.8e15: a single validator holding a majority
// of a realistic lamport-scale total must still clear a 60% threshold,
// and a stake just short of it must still fail.
func TestMeetsThresholdDoesNotOverflowAtLamportScale(t *testing.T) {
	const totalStake = uint64(1) << 62 // far beyond math.MaxUint64/10000
	set := NewSet(0, testMembers(totalStake))

	majority := totalStake/100*61 // 61%
	require.True(t, set.MeetsThreshold(majority, 6000))

	minority := totalStake / 100 * 59 // 59%
	require.False(t, set.MeetsThreshold(minority, 6000))

	require.True(t, set.MeetsThreshold(totalStake, 6000))
}

func TestStakeBpsRoundsDown(t *testing.T) {
	set := NewSet(0, testMembers(1, 2))
	require.Equal(t, 3333, set.StakeBps(1)) // 1/3 truncated
	require.Equal(t, 0, set.StakeBps(0))
}
