package queuestore

import (
	"encoding/binary"
	"hash/crc32"
)

// Record envelope framing: docLen(4B BE) | doc | crc32c(doc)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeFrame wraps a serialized document with a length prefix and crc32c
// trailer so that torn or corrupted values are detected on read.
func EncodeFrame(doc []byte) []byte {
	out := make([]byte, 0, 4+len(doc)+4)
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(doc)))
	out = append(out, lb[:]...)
	out = append(out, doc...)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc32.Checksum(doc, castagnoli))
	out = append(out, cb[:]...)
	return out
}

// DecodeFrame unwraps a framed document, verifying length and checksum.
func DecodeFrame(b []byte) ([]byte, bool) {
	if len(b) < 8 {
		return nil, false
	}
	dlen := binary.BigEndian.Uint32(b[:4])
	if int(4+dlen+4) != len(b) {
		return nil, false
	}
	doc := b[4 : 4+dlen]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(doc, castagnoli) != expect {
		return nil, false
	}
	return append([]byte(nil), doc...), true
}
