// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/votor/config"
	"github.com/luxfi/votor/metrics"
	"github.com/luxfi/votor/pool"
	"github.com/luxfi/votor/timer"
	"github.com/luxfi/votor/types"
	"github.com/luxfi/votor/validators"
	"github.com/luxfi/votor/votehistory"
	"github.com/luxfi/votor/voting"
	"github.com/luxfi/votor/votor"
)

var rootCmd = &cobra.Command{
	Use:   "votor",
	Short: "Alpenglow Votor consensus engine",
	Long: `votor drives a single validator's participation in the Alpenglow
consensus protocol: it aggregates inbound votes and certificates into
the Consensus Pool, arms per-slot liveness timers, and runs the Event
Handler loop that decides when to vote, root, and start leader windows.`,
}

func main() {
	rootCmd.AddCommand(runCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		historyPath  string
		namespace    string
		validatorCSV []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Votor event loop against a configured validator set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVotor(cmd.Context(), historyPath, namespace, validatorCSV)
		},
	}

	cmd.Flags().StringVar(&historyPath, "history-path", "votehistory.journal", "vote history journal path")
	cmd.Flags().StringVar(&namespace, "metrics-namespace", "votor", "prometheus metrics namespace")
	cmd.Flags().StringArrayVar(&validatorCSV, "validator", nil,
		"validator entry as nodeID:compressed-bls-pubkey-hex:stake, repeatable; rank is assignment order")
	return cmd
}

// parseValidators turns the repeatable --validator flag's entries into
// ranked Members, using the on-disk wire format (compressed BLS public
// key bytes) every genesis/config loader hands this validator set.
func parseValidators(entries []string) ([]validators.Member, error) {
	members := make([]validators.Member, 0, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("votor: invalid --validator entry %q: want nodeID:pubkeyHex:stake", entry)
		}
		nodeID, err := ids.NodeIDFromString(parts[0])
		if err != nil {
			return nil, fmt.Errorf("votor: invalid --validator node ID %q: %w", parts[0], err)
		}
		pubKeyBytes, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("votor: invalid --validator public key %q: %w", parts[1], err)
		}
		stake, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("votor: invalid --validator stake %q: %w", parts[2], err)
		}
		member, err := validators.NewMemberFromBytes(nodeID, pubKeyBytes, stake)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

// runVotor wires the Consensus Pool, Timer Manager, Vote History,
// Voting Service and Event Handler together and runs until an OS
// interrupt, mirroring the teacher's cmd/consensus subcommand pattern
// of building the runtime in one function and delegating the loop to a
// long-lived component.
func runVotor(parent context.Context, historyPath, namespace string, validatorCSV []string) error {
	logger := log.NewNoOpLogger()
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	poolMetrics, err := metrics.NewPool(namespace, reg)
	if err != nil {
		return fmt.Errorf("votor: wire metrics: %w", err)
	}

	params := config.DefaultParameters()
	if err := params.Validate(); err != nil {
		return fmt.Errorf("votor: invalid parameters: %w", err)
	}

	members, err := parseValidators(validatorCSV)
	if err != nil {
		return err
	}
	set := validators.NewSet(0, members)

	history, _, err := votehistory.OpenFile(historyPath, nil, logger)
	if err != nil {
		return fmt.Errorf("votor: open vote history: %w", err)
	}
	defer history.Close()

	consensusPool := pool.New(params, set, nil, poolMetrics, logger)

	timerEvents := make(chan timer.Event, 256)
	timers := timer.NewManager(timerEvents)

	outbound := make(chan types.ConsensusMessage, 1024)
	ownVotes := make(chan types.ConsensusMessage, 1024)

	voter := voting.New(voting.Config{
		History:  history,
		Lookup:   staticKeyLookup(nil),
		RankOf:   staticRank(0),
		Outbound: outbound,
		OwnVotes: ownVotes,
		Log:      logger,
	})

	handler := votor.New(votor.Config{
		Pool:   consensusPool,
		Timers: timers,
		Voter:  voter,
		Params: params,
		Log:    logger,
		Epoch:  0,
		Rank:   0,
	})

	inbound := make(chan types.ConsensusMessage, 1024)
	replayed := make(chan votor.BlockReplayed, 256)
	shutdown := make(chan struct{})

	go func() {
		for msg := range ownVotes {
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		close(shutdown)
	}()

	handler.Run(ctx, inbound, replayed, timerEvents, shutdown)
	return nil
}

func staticKeyLookup(key []byte) voting.KeyLookup {
	return func(epoch uint64) ([]byte, error) { return key, nil }
}

func staticRank(rank types.Rank) func(epoch uint64) (types.Rank, error) {
	return func(epoch uint64) (types.Rank, error) { return rank, nil }
}
