package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job ids are ULIDs: a 48-bit millisecond timestamp followed by 80 random
// bits, encoded as 26 Crockford base32 characters. Lexicographic order is
// creation order, so job listings read chronologically without a sort.

const ulidAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var ulidState struct {
	sync.Mutex
	ms  uint64
	seq uint16
}

func generateULID() string {
	ulidState.Lock()
	ms := uint64(time.Now().UnixMilli())
	if ms == ulidState.ms {
		ulidState.seq++
	} else {
		ulidState.ms, ulidState.seq = ms, 0
	}
	seq := ulidState.seq
	ulidState.Unlock()

	var id [16]byte
	binary.BigEndian.PutUint64(id[:8], ms<<16)
	rand.Read(id[6:])
	// A counter in the leading random bytes keeps ids distinct within one
	// millisecond regardless of the random source.
	binary.BigEndian.PutUint16(id[6:8], seq)

	// 128 bits into 26 characters, five bits at a time from the least
	// significant end; the leading character carries the three spare bits.
	var out [26]byte
	acc, bits, pos := uint16(0), 0, 25
	for i := 15; i >= 0; i-- {
		acc |= uint16(id[i]) << bits
		bits += 8
		for bits >= 5 {
			out[pos] = ulidAlphabet[acc&31]
			acc >>= 5
			bits -= 5
			pos--
		}
	}
	out[0] = ulidAlphabet[acc&31]
	return string(out[:])
}
