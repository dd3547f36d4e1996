// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when decoding a buffer too short for its
// declared payload.
var ErrShortBuffer = errors.New("types: short buffer")

// ErrUnknownKind is returned when decoding an unrecognized tag byte.
var ErrUnknownKind = errors.New("types: unknown kind tag")

// Domain is the BLS domain-separation tag mixed into every signed vote
// payload. It is a protocol-fixed constant, not a configuration knob.
const Domain = "ALPENGLOW_VOTOR_V1"

// CanonicalVoteBytes returns the deterministic byte encoding of a vote,
// the exact payload that is BLS-signed and whose bytes are reproduced
// identically by every conforming implementation. Field order and
// integer endianness are fixed: 1-byte kind tag, big-endian 8-byte slot,
// 32-byte hash (zero-filled for kinds that don't carry one), with the
// domain-separation tag appended last so verifiers can reconstruct the
// exact signed message from (kind, slot, hash) alone.
func CanonicalVoteBytes(v Vote) []byte {
	buf := make([]byte, 0, 1+8+32+len(Domain))
	buf = append(buf, byte(v.Kind))
	var slotBuf [8]byte
	binary.BigEndian.PutUint64(slotBuf[:], uint64(v.Slot))
	buf = append(buf, slotBuf[:]...)
	buf = append(buf, v.Hash[:]...)
	buf = append(buf, []byte(Domain)...)
	return buf
}

// EncodeVote writes the canonical, self-describing encoding of a vote
// (without the domain tag, which is signing-only context).
func EncodeVote(v Vote) []byte {
	buf := make([]byte, 1+8+32)
	buf[0] = byte(v.Kind)
	binary.BigEndian.PutUint64(buf[1:9], uint64(v.Slot))
	copy(buf[9:41], v.Hash[:])
	return buf
}

// DecodeVote parses the encoding produced by EncodeVote.
func DecodeVote(b []byte) (Vote, int, error) {
	if len(b) < 41 {
		return Vote{}, 0, ErrShortBuffer
	}
	kind := Kind(b[0])
	if kind > KindGenesis {
		return Vote{}, 0, ErrUnknownKind
	}
	slot := Slot(binary.BigEndian.Uint64(b[1:9]))
	var hash Hash
	copy(hash[:], b[9:41])
	return Vote{Kind: kind, Slot: slot, Hash: hash}, 41, nil
}

// EncodeVoteMessage encodes a VoteMessage: the vote, the 4-byte
// big-endian rank, then a 2-byte length-prefixed BLS signature.
func EncodeVoteMessage(m VoteMessage) []byte {
	vote := EncodeVote(m.Vote)
	buf := make([]byte, 0, len(vote)+4+2+len(m.BLSSignature))
	buf = append(buf, vote...)
	var rankBuf [4]byte
	binary.BigEndian.PutUint32(rankBuf[:], uint32(m.Rank))
	buf = append(buf, rankBuf[:]...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(m.BLSSignature)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, m.BLSSignature...)
	return buf
}

// DecodeVoteMessage parses the encoding produced by EncodeVoteMessage.
func DecodeVoteMessage(b []byte) (VoteMessage, int, error) {
	vote, n, err := DecodeVote(b)
	if err != nil {
		return VoteMessage{}, 0, err
	}
	if len(b) < n+4+2 {
		return VoteMessage{}, 0, ErrShortBuffer
	}
	rank := Rank(binary.BigEndian.Uint32(b[n : n+4]))
	n += 4
	sigLen := int(binary.BigEndian.Uint16(b[n : n+2]))
	n += 2
	if len(b) < n+sigLen {
		return VoteMessage{}, 0, ErrShortBuffer
	}
	sig := append([]byte(nil), b[n:n+sigLen]...)
	n += sigLen
	return VoteMessage{Vote: vote, Rank: rank, BLSSignature: sig}, n, nil
}

// EncodeCertificate encodes a Certificate: 1-byte type, big-endian
// 8-byte slot, 32-byte hash, 2-byte length-prefixed bitmap, 2-byte
// length-prefixed aggregate signature.
func EncodeCertificate(c Certificate) []byte {
	buf := make([]byte, 0, 1+8+32+2+len(c.Bitmap)+2+len(c.Signature))
	buf = append(buf, byte(c.ID.Type))
	var slotBuf [8]byte
	binary.BigEndian.PutUint64(slotBuf[:], uint64(c.ID.Slot))
	buf = append(buf, slotBuf[:]...)
	buf = append(buf, c.ID.Hash[:]...)
	var bmLen [2]byte
	binary.BigEndian.PutUint16(bmLen[:], uint16(len(c.Bitmap)))
	buf = append(buf, bmLen[:]...)
	buf = append(buf, c.Bitmap...)
	var sigLen [2]byte
	binary.BigEndian.PutUint16(sigLen[:], uint16(len(c.Signature)))
	buf = append(buf, sigLen[:]...)
	buf = append(buf, c.Signature...)
	return buf
}

// DecodeCertificate parses the encoding produced by EncodeCertificate.
func DecodeCertificate(b []byte) (Certificate, int, error) {
	if len(b) < 41 {
		return Certificate{}, 0, ErrShortBuffer
	}
	typ := CertType(b[0])
	if typ > CertGenesis {
		return Certificate{}, 0, ErrUnknownKind
	}
	slot := Slot(binary.BigEndian.Uint64(b[1:9]))
	var hash Hash
	copy(hash[:], b[9:41])
	n := 41
	if len(b) < n+2 {
		return Certificate{}, 0, ErrShortBuffer
	}
	bmLen := int(binary.BigEndian.Uint16(b[n : n+2]))
	n += 2
	if len(b) < n+bmLen+2 {
		return Certificate{}, 0, ErrShortBuffer
	}
	bitmap := append([]byte(nil), b[n:n+bmLen]...)
	n += bmLen
	sigLen := int(binary.BigEndian.Uint16(b[n : n+2]))
	n += 2
	if len(b) < n+sigLen {
		return Certificate{}, 0, ErrShortBuffer
	}
	sig := append([]byte(nil), b[n:n+sigLen]...)
	n += sigLen
	return Certificate{ID: CertID{Type: typ, Slot: slot, Hash: hash}, Bitmap: bitmap, Signature: sig}, n, nil
}

// EncodeConsensusMessage writes the canonical wire encoding of a
// ConsensusMessage: a 1-byte kind tag followed by the payload encoding.
func EncodeConsensusMessage(m ConsensusMessage) []byte {
	switch m.Kind {
	case MessageVote:
		return append([]byte{byte(MessageVote)}, EncodeVoteMessage(m.Vote)...)
	case MessageCertificate:
		return append([]byte{byte(MessageCertificate)}, EncodeCertificate(m.Certificate)...)
	default:
		panic(fmt.Sprintf("types: unknown message kind %d", m.Kind))
	}
}

// DecodeConsensusMessage parses the encoding produced by
// EncodeConsensusMessage. decode(encode(m)) == m and
// encode(decode(b)) == b for every canonical byte string b.
func DecodeConsensusMessage(b []byte) (ConsensusMessage, error) {
	if len(b) < 1 {
		return ConsensusMessage{}, ErrShortBuffer
	}
	switch MessageKind(b[0]) {
	case MessageVote:
		vm, _, err := DecodeVoteMessage(b[1:])
		if err != nil {
			return ConsensusMessage{}, err
		}
		return VoteConsensusMessage(vm), nil
	case MessageCertificate:
		c, _, err := DecodeCertificate(b[1:])
		if err != nil {
			return ConsensusMessage{}, err
		}
		return CertConsensusMessage(c), nil
	default:
		return ConsensusMessage{}, ErrUnknownKind
	}
}
