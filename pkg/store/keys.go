package store

import "encoding/binary"

// Bucket name constants for bbolt storage.
var (
	bucketVars   = []byte("vars")
	bucketMacros = []byte("macros")
	bucketWorlds = []byte("worlds")
	bucketMeta   = []byte("meta")
)

// Meta key constants.
var (
	keyNextSeq = []byte("nextseq")
)

// intToKey converts an int to an 8-byte big-endian key so macro
// sequence numbers iterate in definition order.
func intToKey(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// keyToInt converts an 8-byte big-endian key back to an int.
func keyToInt(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}
