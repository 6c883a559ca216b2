// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import "encoding/binary"

// byteStream is a read cursor over a byte buffer, as spec §4.B describes.
// Out-of-range access panics with a recovered ErrMalformPkt rather than
// requiring every primitive to thread an error return; callers that parse
// untrusted wire data wrap the whole decode in parseProtected.
type byteStream struct {
	data []byte
	pos  int
}

func newByteStream(data []byte) *byteStream {
	return &byteStream{data: data}
}

// parseProtected runs fn, converting any panic raised by an out-of-range
// byteStream access into a returned ErrMalformPkt. This keeps the codec
// functions in messages.go linear and panic-free to read, while still
// surfacing ProtocolMalformed per spec §4.B ("Out-of-range access fails
// with ProtocolMalformed").
func parseProtected(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(byteStreamOverrun); ok {
				err = ErrMalformPkt
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

type byteStreamOverrun struct{}

func (b *byteStream) need(n int) {
	if b.pos+n > len(b.data) || n < 0 {
		panic(byteStreamOverrun{})
	}
}

func (b *byteStream) readU8() uint8 {
	b.need(1)
	v := b.data[b.pos]
	b.pos++
	return v
}

func (b *byteStream) readU16() uint16 {
	b.need(2)
	v := binary.LittleEndian.Uint16(b.data[b.pos : b.pos+2])
	b.pos += 2
	return v
}

func (b *byteStream) readU24() uint32 {
	b.need(3)
	v := uint32(b.data[b.pos]) | uint32(b.data[b.pos+1])<<8 | uint32(b.data[b.pos+2])<<16
	b.pos += 3
	return v
}

func (b *byteStream) readU32() uint32 {
	b.need(4)
	v := binary.LittleEndian.Uint32(b.data[b.pos : b.pos+4])
	b.pos += 4
	return v
}

func (b *byteStream) readU64() uint64 {
	b.need(8)
	v := binary.LittleEndian.Uint64(b.data[b.pos : b.pos+8])
	b.pos += 8
	return v
}

func (b *byteStream) skip(n int) {
	b.need(n)
	b.pos += n
}

func (b *byteStream) read(n int) []byte {
	b.need(n)
	v := b.data[b.pos : b.pos+n]
	b.pos += n
	return v
}

func (b *byteStream) readAll() []byte {
	v := b.data[b.pos:]
	b.pos = len(b.data)
	return v
}

func (b *byteStream) remaining() int {
	return len(b.data) - b.pos
}

// readNullStr reads a NUL-terminated string, per spec §4.B.
func (b *byteStream) readNullStr() string {
	end := b.pos
	for {
		b.need(end - b.pos + 1)
		if b.data[end] == 0x00 {
			break
		}
		end++
	}
	v := b.data[b.pos:end]
	b.pos = end + 1
	return string(v)
}

// readLCB reads a length-coded binary integer per spec §3's width table.
// It returns (value, isNull). Per spec §9's Open Question, the 64-bit
// branch returns the plain uint64 value, never a tuple-shaped result.
func (b *byteStream) readLCB() (uint64, bool) {
	first := b.readU8()
	switch {
	case first < 0xfb:
		return uint64(first), false
	case first == 0xfb:
		return 0, true
	case first == 0xfc:
		return uint64(b.readU16()), false
	case first == 0xfd:
		return uint64(b.readU24()), false
	default: // 0xfe
		return b.readU64(), false
	}
}

// readLCS reads a length-coded string (LCB length + that many raw bytes).
// Returns (value, isNull); value is nil when isNull is true.
func (b *byteStream) readLCS() ([]byte, bool) {
	n, isNull := b.readLCB()
	if isNull {
		return nil, true
	}
	return b.read(int(n)), false
}

// skipLCS advances past a length-coded string without copying it.
func (b *byteStream) skipLCS() {
	n, isNull := b.readLCB()
	if isNull {
		return
	}
	b.skip(int(n))
}

// readNLCS is the batch row decoder spec §4.B and §9 single out as the hot
// path: it walks the buffer once, without per-field method-call overhead,
// returning n values each either a raw byte slice or nil (SQL NULL).
// Grounded directly on original_source/mysql4py/util.py's read_n_lcs.
func (b *byteStream) readNLCS(n int) []*[]byte {
	out := make([]*[]byte, n)
	data := b.data
	pos := b.pos
	for i := 0; i < n; i++ {
		b.need(1)
		first := data[pos]
		pos++
		b.pos = pos
		if first == 0xfb {
			out[i] = nil
			continue
		}
		var size int
		switch {
		case first < 0xfb:
			size = int(first)
		case first == 0xfc:
			b.need(2)
			size = int(binary.LittleEndian.Uint16(data[pos : pos+2]))
			pos += 2
		case first == 0xfd:
			b.need(3)
			size = int(data[pos]) | int(data[pos+1])<<8 | int(data[pos+2])<<16
			pos += 3
		default: // 0xfe
			b.need(8)
			size = int(binary.LittleEndian.Uint64(data[pos : pos+8]))
			pos += 8
		}
		b.pos = pos
		b.need(size)
		v := data[pos : pos+size]
		out[i] = &v
		pos += size
		b.pos = pos
	}
	return out
}
