// Package learning implements the persisted correction/learning store: a compact binary
// record stream keyed by position hash, consulted as a non-PV transposition-table hint and
// updated by a backward Bellman pass once a game ends.
package learning

import (
	"encoding/binary"
	"io"

	"github.com/corvidchess/corvid/pkg/board"
)

// recordSize is the little-endian on-disk width of one Record: key(8) + depth(1) + score(2) +
// move(2) + performance(1).
const recordSize = 14

// Record is one persisted position-move correction.
type Record struct {
	Key         uint64 // Zobrist hash of the position
	Depth       uint8  // search depth the score was established at
	Score       int16  // centipawns, from the side to move's perspective
	Move        uint16 // encoded best move, see encodeMove
	Performance uint8  // observed game outcome folded back by Bellman update, 0..200 (per-mille/5)
}

func encodeMove(m board.Move) uint16 {
	return uint16(m.From) | uint16(m.To)<<6 | uint16(m.Promotion)<<12
}

func decodeMove(v uint16) (from, to board.Square, promo board.Piece) {
	from = board.Square(v & 0x3f)
	to = board.Square((v >> 6) & 0x3f)
	promo = board.Piece((v >> 12) & 0xf)
	return
}

// ResolveMove maps a persisted, context-free move encoding back onto one of the given
// pseudo-legal candidates, recovering the full board.Move (capture/type/etc.) needed for move
// ordering. Returns ok=false if no candidate matches, e.g. because the position's legal moves
// changed since the record was written.
func ResolveMove(r Record, candidates []board.Move) (board.Move, bool) {
	from, to, promo := decodeMove(r.Move)
	for _, m := range candidates {
		if m.From == from && m.To == to && m.Promotion == promo {
			return m, true
		}
	}
	return board.Move{}, false
}

// writeTo appends the record's wire encoding to buf.
func (r Record) writeTo(buf []byte) []byte {
	var tmp [recordSize]byte
	binary.LittleEndian.PutUint64(tmp[0:8], r.Key)
	tmp[8] = r.Depth
	binary.LittleEndian.PutUint16(tmp[9:11], uint16(r.Score))
	binary.LittleEndian.PutUint16(tmp[11:13], r.Move)
	tmp[13] = r.Performance
	return append(buf, tmp[:]...)
}

// readRecord decodes a single record from r. It returns io.ErrUnexpectedEOF if the stream is
// truncated mid-record, which callers must treat as "stop reading", not as a fatal error: a
// learning file may be truncated by a crash between records.
func readRecord(r io.Reader) (Record, error) {
	var tmp [recordSize]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, io.ErrUnexpectedEOF
	}
	return Record{
		Key:         binary.LittleEndian.Uint64(tmp[0:8]),
		Depth:       tmp[8],
		Score:       int16(binary.LittleEndian.Uint16(tmp[9:11])),
		Move:        binary.LittleEndian.Uint16(tmp[11:13]),
		Performance: tmp[13],
	}, nil
}
