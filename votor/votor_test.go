package votor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/votor/config"
	"github.com/luxfi/votor/mocks/sendermock"
	"github.com/luxfi/votor/mocks/votehistorymock"
	"github.com/luxfi/votor/metrics"
	"github.com/luxfi/votor/pool"
	"github.com/luxfi/votor/timer"
	"github.com/luxfi/votor/types"
	"github.com/luxfi/votor/validators"
	"github.com/luxfi/votor/voting"
	"github.com/stretchr/testify/require"
)

type approvingVerifier struct{}

func (approvingVerifier) VerifyVote(types.Vote, types.Rank, []byte, *validators.Set) bool {
	return true
}

func (approvingVerifier) VerifyCertificate(types.Certificate, types.Rule, *validators.Set) bool {
	return true
}

func testValidatorSet(n int) *validators.Set {
	members := make([]validators.Member, n)
	for i := range members {
		var nodeID ids.NodeID
		nodeID[0] = byte(i + 1)
		members[i] = validators.Member{NodeID: nodeID, Stake: 1}
	}
	return validators.NewSet(0, members)
}

// newTestHandler builds a Handler backed by real Pool and Manager
// instances (cheap, in-memory) and a Voting Service whose signer is
// never exercised by these tests — only code paths that never reach
// requestVote are driven here, since deriving a real BLS signer needs
// key material this suite does not fabricate.
func newTestHandler(t *testing.T, params config.Parameters, collab Collaborators) (*Handler, *pool.Pool, *timer.Manager, <-chan types.ConsensusMessage) {
	t.Helper()
	set := testValidatorSet(5)
	p := pool.New(params, set, approvingVerifier{}, metrics.NewPoolForTest(), nil)
	timerOut := make(chan timer.Event, 16)
	tm := timer.NewManager(timerOut)
	t.Cleanup(tm.Shutdown)

	history := votehistorymock.NewMockStorage()
	outbound := make(chan types.ConsensusMessage, 16)
	ownVotes := make(chan types.ConsensusMessage, 16)
	voter := voting.New(voting.Config{
		History: history,
		Lookup: func(uint64) ([]byte, error) {
			t.Fatal("signer must not be derived by this test")
			return nil, nil
		},
		RankOf:   func(uint64) (types.Rank, error) { return 0, nil },
		Outbound: outbound,
		OwnVotes: ownVotes,
	})

	h := New(Config{
		Pool:          p,
		Timers:        tm,
		Voter:         voter,
		Params:        params,
		Epoch:         1,
		Rank:          0,
		Collaborators: collab,
	})
	return h, p, tm, outbound
}

func TestHandlePoolEventBlockNotarizedRecordsHash(t *testing.T) {
	params := config.DefaultParameters()
	h, _, _, _ := newTestHandler(t, params, Collaborators{})

	hash := types.Hash{9, 9}
	h.handlePoolEvent(pool.Event{Kind: pool.BlockNotarized, Slot: 5, Hash: hash})

	h.mu.Lock()
	got, ok := h.notarizedHash[5]
	h.mu.Unlock()
	require.True(t, ok)
	require.Equal(t, hash, got)
}

func TestAdvanceRootIsMonotonic(t *testing.T) {
	params := config.DefaultParameters()
	h, _, _, _ := newTestHandler(t, params, Collaborators{})

	h.advanceRoot(5, types.Hash{1})
	root, rooted := h.Root()
	require.True(t, rooted)
	require.Equal(t, types.Slot(5), root)

	h.advanceRoot(3, types.Hash{2}) // stale: must not move root backward
	root, _ = h.Root()
	require.Equal(t, types.Slot(5), root)
}

func TestAdvanceRootNotifiesCollaborators(t *testing.T) {
	params := config.DefaultParameters()
	bankForks := sendermock.NewMockBankForks()
	snapshots := sendermock.NewMockSnapshotController()
	rpc := sendermock.NewMockRPCSubscriptions()

	h, _, _, _ := newTestHandler(t, params, Collaborators{
		BankForks:          bankForks,
		SnapshotController: snapshots,
		RPCSubscriptions:   rpc,
	})

	hash := types.Hash{4, 5, 6}
	h.advanceRoot(10, hash)

	require.Equal(t, []types.Slot{10}, bankForks.Roots())
	require.Equal(t, []types.Slot{10}, snapshots.Slots())
	require.Equal(t, []types.BlockID{{Slot: 10, Hash: hash}}, rpc.Finalized())
}

func TestHandlePoolEventFinalizedAdvancesRoot(t *testing.T) {
	params := config.DefaultParameters()
	bankForks := sendermock.NewMockBankForks()
	h, _, _, _ := newTestHandler(t, params, Collaborators{BankForks: bankForks})

	h.handlePoolEvent(pool.Event{Kind: pool.Finalized, Slot: 7, Hash: types.Hash{1}})

	root, rooted := h.Root()
	require.True(t, rooted)
	require.Equal(t, types.Slot(7), root)
	require.Equal(t, []types.Slot{7}, bankForks.Roots())
}

func TestHandlePoolEventParentReadyStartsLeaderWindow(t *testing.T) {
	params := config.DefaultParameters()
	params.WaitForVoteToStartLeaderWindow = false
	leaderCache := sendermock.NewMockLeaderScheduleCache()
	leaderCache.SetLeader(11, true)
	creator := sendermock.NewMockBlockCreator()

	h, _, _, _ := newTestHandler(t, params, Collaborators{
		LeaderScheduleCache: leaderCache,
		BlockCreator:        creator,
	})

	parent := types.BlockID{Slot: 10, Hash: types.Hash{1}}
	h.handlePoolEvent(pool.Event{Kind: pool.ParentReady, Slot: 11, Parent: parent})

	require.Equal(t, []LeaderWindowInfo{{Slot: 11, Parent: parent}}, creator.Windows())
}

func TestHandlePoolEventParentReadySuppressedWhileWaitingForOwnVote(t *testing.T) {
	params := config.DefaultParameters()
	params.WaitForVoteToStartLeaderWindow = true
	leaderCache := sendermock.NewMockLeaderScheduleCache()
	leaderCache.SetLeader(11, true)
	creator := sendermock.NewMockBlockCreator()

	h, _, _, _ := newTestHandler(t, params, Collaborators{
		LeaderScheduleCache: leaderCache,
		BlockCreator:        creator,
	})

	parent := types.BlockID{Slot: 10, Hash: types.Hash{1}}
	h.handlePoolEvent(pool.Event{Kind: pool.ParentReady, Slot: 11, Parent: parent})

	require.Empty(t, creator.Windows(), "leader window must not start while waiting for this validator's own vote to root")
}

func TestHandlePoolEventParentReadyIgnoredWhenNotLeader(t *testing.T) {
	params := config.DefaultParameters()
	params.WaitForVoteToStartLeaderWindow = false
	leaderCache := sendermock.NewMockLeaderScheduleCache() // nothing configured as leader
	creator := sendermock.NewMockBlockCreator()

	h, _, _, _ := newTestHandler(t, params, Collaborators{
		LeaderScheduleCache: leaderCache,
		BlockCreator:        creator,
	})

	h.handlePoolEvent(pool.Event{Kind: pool.ParentReady, Slot: 11, Parent: types.BlockID{Slot: 10}})

	require.Empty(t, creator.Windows())
}

func TestRecordCertReplacesSameTypeForSlot(t *testing.T) {
	params := config.DefaultParameters()
	h, _, _, _ := newTestHandler(t, params, Collaborators{})

	certA := types.Certificate{ID: types.CertID{Slot: 3, Type: types.CertNotarize, Hash: types.Hash{1}}}
	certB := types.Certificate{ID: types.CertID{Slot: 3, Type: types.CertNotarize, Hash: types.Hash{2}}}
	h.recordCert(certA)
	h.recordCert(certB)

	h.mu.Lock()
	certs := h.certsBySlot[3]
	h.mu.Unlock()
	require.Len(t, certs, 1, "a later certificate of the same type for a slot replaces, not duplicates")
	require.Equal(t, types.Hash{2}, certs[0].ID.Hash)
}

func TestAdvanceRootPrunesCertsAtOrBelowRoot(t *testing.T) {
	params := config.DefaultParameters()
	h, _, _, _ := newTestHandler(t, params, Collaborators{})

	h.recordCert(types.Certificate{ID: types.CertID{Slot: 3, Type: types.CertSkip}})
	h.recordCert(types.Certificate{ID: types.CertID{Slot: 8, Type: types.CertSkip}})

	h.advanceRoot(5, types.Hash{1})

	h.mu.Lock()
	_, hasOld := h.certsBySlot[3]
	_, hasNew := h.certsBySlot[8]
	h.mu.Unlock()
	require.False(t, hasOld, "certificates at or below the new root must be pruned")
	require.True(t, hasNew)
}

func TestRebroadcastPublishesLatestCerts(t *testing.T) {
	params := config.DefaultParameters()
	h, _, _, outbound := newTestHandler(t, params, Collaborators{})

	cert := types.Certificate{ID: types.CertID{Slot: 4, Type: types.CertSkip}}
	h.recordCert(cert)

	h.rebroadcast(4)

	require.Equal(t, types.CertConsensusMessage(cert), <-outbound)
}

func TestRebroadcastSkipsCertsAboveUpTo(t *testing.T) {
	params := config.DefaultParameters()
	h, _, _, outbound := newTestHandler(t, params, Collaborators{})

	h.recordCert(types.Certificate{ID: types.CertID{Slot: 4, Type: types.CertSkip}})
	h.recordCert(types.Certificate{ID: types.CertID{Slot: 9, Type: types.CertSkip}})

	h.rebroadcast(4)

	select {
	case msg := <-outbound:
		require.Equal(t, types.Slot(4), msg.Certificate.ID.Slot)
	default:
		t.Fatal("expected slot 4's certificate to be rebroadcast")
	}
	require.Len(t, outbound, 0, "slot 9's certificate is above upTo and must not be rebroadcast")
}

// TestRunShutsDownWithoutDeadlock guards the shutdown path described in
// spec.md §5: an armed-but-unfired timer must not prevent Run from
// returning. handleReplayed arms a Notarize timer on every BlockReplayed,
// so this reproduces the ordinary case where Shutdown races a pending
// timer that Stop() successfully cancels.
func TestRunShutsDownWithoutDeadlock(t *testing.T) {
	params := config.DefaultParameters()
	params.NotarizeTimeout = time.Hour
	params.StandstillInterval = time.Hour

	set := testValidatorSet(5)
	p := pool.New(params, set, approvingVerifier{}, metrics.NewPoolForTest(), nil)
	timerOut := make(chan timer.Event, 16)
	tm := timer.NewManager(timerOut)

	history := votehistorymock.NewMockStorage()
	outbound := make(chan types.ConsensusMessage, 16)
	ownVotes := make(chan types.ConsensusMessage, 16)
	voter := voting.New(voting.Config{
		History:  history,
		Lookup:   func(uint64) ([]byte, error) { return nil, errors.New("no key configured for this test") },
		RankOf:   func(uint64) (types.Rank, error) { return 0, nil },
		Outbound: outbound,
		OwnVotes: ownVotes,
	})

	h := New(Config{Pool: p, Timers: tm, Voter: voter, Params: params, Epoch: 1, Rank: 0})

	msgs := make(chan types.ConsensusMessage)
	replayed := make(chan BlockReplayed, 1)
	shutdown := make(chan struct{})

	runDone := make(chan struct{})
	go func() {
		h.Run(context.Background(), msgs, replayed, timerOut, shutdown)
		close(runDone)
	}()

	replayed <- BlockReplayed{Slot: 5, Hash: types.Hash{9}}
	time.Sleep(20 * time.Millisecond) // let Run arm the Notarize timer

	close(shutdown)

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown: an armed-but-unfired timer leaked the shutdown WaitGroup")
	}
}
