// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import (
	"bytes"
	"compress/zlib"
	"io"
)

// compressedHeaderSize is the outer 7-byte header: 3-byte compressed
// payload size, 1-byte sync seqno, 3-byte uncompressed size.
const compressedHeaderSize = 7

// compressedMinSize is the threshold below which the teacher's corpus (and
// the server itself) leaves a payload uncompressed and signals that with an
// uncompressedLength of 0, per other_examples' packettransceiver.go and
// original_source/mysql4py/packet.py's CompressedPacketStream.
const compressedMinSize = 50

// compressedPacketStream wraps a rawPacketStream's channel with zlib
// framing, used once compression has been negotiated during authenticate
// (spec §9: "framer is swapped exactly once post-authentication").
// Grounded on other_examples/0ce549db_Pooh-Mucho-go-mysql-stdzlib
// (compressedPacketHeader accessors, sync-sequence check) and
// original_source/mysql4py/packet.py's CompressedPacketStream (partial
// inner-packet carryover via retry-on-short-read).
type compressedPacketStream struct {
	ch       *channel
	seqno    uint8 // outer compression sequence, independent of the inner logical seqno
	pending  []byte
}

func newCompressedPacketStream(ch *channel) *compressedPacketStream {
	return &compressedPacketStream{ch: ch}
}

// nextPacket returns the next logical (inner) packet, inflating and
// buffering compressed frames as needed until a full inner packet is
// available. Logical framing (0xFFFFFF continuation, 0xFF error decode) is
// identical to the raw stream and is applied after assembly.
func (p *compressedPacketStream) nextPacket() ([]byte, error) {
	var payload []byte
	for {
		header, err := p.readInner(4)
		if err != nil {
			return nil, err
		}
		size := int(header[0]) | int(header[1])<<8 | int(header[2])<<16

		data, err := p.readInner(size)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			payload = data
		} else {
			payload = append(payload, data...)
		}
		if size < maxPacketSize {
			break
		}
	}

	if len(payload) > 0 && payload[0] == iERR {
		return nil, decodeErrorPacket(payload)
	}
	return payload, nil
}

// readInner returns exactly n bytes of decompressed inner-packet data,
// pulling and inflating additional compressed frames as needed. Partial
// inner packets are carried over in p.pending between calls, mirroring the
// Python source's IndexError-driven retry loop.
func (p *compressedPacketStream) readInner(n int) ([]byte, error) {
	for len(p.pending) < n {
		frame, err := p.readFrame()
		if err != nil {
			return nil, err
		}
		p.pending = append(p.pending, frame...)
	}
	out := p.pending[:n]
	p.pending = p.pending[n:]
	return out, nil
}

// readFrame reads and decompresses one outer compressed frame.
func (p *compressedPacketStream) readFrame() ([]byte, error) {
	header, err := p.ch.read(compressedHeaderSize)
	if err != nil {
		return nil, err
	}
	compressedLen := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
	seq := header[3]
	uncompressedLen := int(header[4]) | int(header[5])<<8 | int(header[6])<<16

	if seq != p.seqno {
		return nil, ErrPktSync
	}
	p.seqno++

	body, err := p.ch.read(compressedLen)
	if err != nil {
		return nil, err
	}

	if uncompressedLen == 0 {
		// Below compressedMinSize the server sends the frame verbatim.
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, &localError{"compress: " + err.Error(), KindProtocolMalformed}
	}
	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		zr.Close()
		return nil, &localError{"compress: " + err.Error(), KindProtocolMalformed}
	}
	zr.Close()
	return out, nil
}

// sendPacket frames payload as raw (possibly multi-chunk) inner packets,
// then sends the resulting byte stream as one or more outer compressed
// frames of at most maxPacketSize inner bytes each; an inner packet may
// straddle two frames, which readInner reassembles. Frames below
// compressedMinSize are sent with uncompressedLength 0, matching what
// readFrame above treats as a passthrough.
func (p *compressedPacketStream) sendPacket(payload []byte, seqno uint8) error {
	var inner bytes.Buffer
	for {
		n := len(payload)
		chunkLen := n
		if chunkLen > maxPacketSize {
			chunkLen = maxPacketSize
		}
		inner.WriteByte(byte(chunkLen))
		inner.WriteByte(byte(chunkLen >> 8))
		inner.WriteByte(byte(chunkLen >> 16))
		inner.WriteByte(seqno)
		inner.Write(payload[:chunkLen])
		if chunkLen < maxPacketSize {
			break
		}
		payload = payload[chunkLen:]
		seqno++
	}
	data := inner.Bytes()
	for {
		n := len(data)
		if n > maxPacketSize {
			n = maxPacketSize
		}
		if err := p.sendFrame(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if len(data) == 0 {
			return nil
		}
	}
}

// sendFrame compresses (or passes through) one inner-packet buffer and
// writes it as one outer compressed frame.
func (p *compressedPacketStream) sendFrame(inner []byte) error {
	var body []byte
	uncompressedLen := 0

	if len(inner) < compressedMinSize {
		body = inner
	} else {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(inner); err != nil {
			zw.Close()
			return &localError{"compress: " + err.Error(), KindProtocolMalformed}
		}
		if err := zw.Close(); err != nil {
			return &localError{"compress: " + err.Error(), KindProtocolMalformed}
		}
		body = buf.Bytes()
		uncompressedLen = len(inner)
	}

	header := [compressedHeaderSize]byte{
		byte(len(body)),
		byte(len(body) >> 8),
		byte(len(body) >> 16),
		p.seqno,
		byte(uncompressedLen),
		byte(uncompressedLen >> 8),
		byte(uncompressedLen >> 16),
	}
	p.seqno++

	if err := p.ch.write(header[:]); err != nil {
		return err
	}
	return p.ch.write(body)
}
