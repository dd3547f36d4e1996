// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votehistory

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/votor/log"
	"github.com/luxfi/votor/types"
)

// recordHeaderLen is the size of the 4-byte big-endian payload-length
// prefix that opens every journal record. A record is that prefix, the
// payload, then a 4-byte big-endian checksum of the payload.
const recordHeaderLen = 4

var metaLastOffsetKey = []byte("votehistory/last_valid_offset")
var metaEntryCountKey = []byte("votehistory/entry_count")

// File is the production Storage implementation: a sequential,
// append-only log of length-prefixed, checksummed VoteHistoryEntry
// records on disk, fsync'd before Record returns. A small side index in
// a database.Database (the same collaborator the teacher's state
// packages use for chain metadata) records the last verified-good
// offset (after every recovery scan and every Record) and the entry
// count found by the last recovery scan. Nothing in this package reads
// the index back; Load re-scans the file.
type File struct {
	mu   sync.Mutex
	f    *os.File
	idx  database.Database
	refl *reflection
	log  log.Logger
	off  int64
}

// OpenFile opens (or creates) the journal at path, replaying and
// validating every record already in it. Recovery truncates the file at
// the first entry that fails its checksum, matching the spec's
// "Recovery truncates at the first entry failing checksum verification."
func OpenFile(path string, idx database.Database, logger log.Logger) (*File, []types.VoteHistoryEntry, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("votehistory: open %s: %w", path, err)
	}
	storage := &File{f: f, idx: idx, refl: newReflection(), log: logger}
	entries, err := storage.recover()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	storage.refl.load(entries)
	return storage, entries, nil
}

// recover scans the file from the start, validating each record's
// checksum, truncating at (and discarding) the first bad or partial
// record, and repositioning the write offset at the end of the last good
// record.
func (s *File) recover() ([]types.VoteHistoryEntry, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("votehistory: seek: %w", err)
	}
	var entries []types.VoteHistoryEntry
	var offset int64
	header := make([]byte, recordHeaderLen)
	for {
		n, err := io.ReadFull(s.f, header)
		if err == io.EOF {
			break
		}
		if err != nil || n < recordHeaderLen {
			s.log.Warn("votehistory: truncated record header, stopping recovery", "offset", offset)
			break
		}
		payloadLen := types.Uint32(header)
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(s.f, payload); err != nil {
			s.log.Warn("votehistory: truncated record payload, stopping recovery", "offset", offset)
			break
		}
		crcBuf := make([]byte, 4)
		if _, err := io.ReadFull(s.f, crcBuf); err != nil {
			s.log.Warn("votehistory: missing record checksum, stopping recovery", "offset", offset)
			break
		}
		want := types.Uint32(crcBuf)
		if types.Checksum(payload) != want {
			s.log.Warn("votehistory: checksum mismatch, stopping recovery", "offset", offset)
			break
		}
		entry, err := types.DecodeVoteHistoryEntry(payload)
		if err != nil {
			s.log.Warn("votehistory: undecodable record, stopping recovery", "offset", offset, "error", err)
			break
		}
		entries = append(entries, entry)
		offset += int64(recordHeaderLen + int(payloadLen) + 4)
	}
	if err := s.f.Truncate(offset); err != nil {
		return nil, fmt.Errorf("votehistory: truncate to last good record: %w", err)
	}
	if _, err := s.f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("votehistory: seek to tail: %w", err)
	}
	s.off = offset
	if s.idx != nil {
		var offBuf, cntBuf [8]byte
		binary.BigEndian.PutUint64(offBuf[:], uint64(offset))
		binary.BigEndian.PutUint64(cntBuf[:], uint64(len(entries)))
		_ = s.idx.Put(metaLastOffsetKey, offBuf[:])
		_ = s.idx.Put(metaEntryCountKey, cntBuf[:])
	}
	return entries, nil
}

// Record implements Storage. It is fail-closed: a conflicting proposal
// never reaches disk.
func (s *File) Record(slot types.Slot, vote types.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refl.conflicts(vote) {
		return ErrEquivocation
	}

	payload := types.EncodeVoteHistoryEntry(types.VoteHistoryEntry{Slot: slot, Vote: vote})
	frame := make([]byte, recordHeaderLen+len(payload)+4)
	types.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:4+len(payload)], payload)
	types.PutUint32(frame[4+len(payload):], types.Checksum(payload))

	if _, err := s.f.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	s.off += int64(len(frame))
	if s.idx != nil {
		var offBuf [8]byte
		binary.BigEndian.PutUint64(offBuf[:], uint64(s.off))
		if err := s.idx.Put(metaLastOffsetKey, offBuf[:]); err != nil {
			s.log.Warn("votehistory: failed to persist offset index", "error", err)
		}
	}
	s.refl.observe(vote)
	return nil
}

// Load implements Storage by re-running the recovery scan over the
// journal file from the start and returning the entries it validates,
// in write order. It leaves the in-memory reflection unchanged.
func (s *File) Load() ([]types.VoteHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.f.Seek(0, io.SeekStart)
	if err != nil {
		return nil, err
	}
	entries, err := s.recover()
	if err != nil {
		return nil, err
	}
	if _, err := s.f.Seek(s.off, io.SeekStart); err != nil {
		return nil, err
	}
	return entries, nil
}

// WouldEquivocate implements Storage.
func (s *File) WouldEquivocate(_ types.Slot, proposed types.Vote) bool {
	return s.refl.conflicts(proposed)
}

// Close implements Storage.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx != nil {
		_ = s.idx.Close()
	}
	return s.f.Close()
}
