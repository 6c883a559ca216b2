// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

// packetStream frames logical MySQL packets over a channel: the raw
// variant reassembles 0xFFFFFF-continuations (spec §4.C); the compressed
// variant (compress.go) additionally inflates/deflates zlib frames. Both
// share this interface so conn.go can swap the framer exactly once, right
// after authentication, per spec §9 ("tagged variant... swapped exactly
// once post-authentication").
type packetStream interface {
	nextPacket() ([]byte, error)
	sendPacket(payload []byte, seqno uint8) error
}

// rawPacketStream is the uncompressed framer, grounded on
// julienschmidt-gmysql/packets.go's readPacket/writePacket and
// original_source/mysql4py/packet.py's RawPacketStream.
type rawPacketStream struct {
	ch *channel
}

func newRawPacketStream(ch *channel) *rawPacketStream {
	return &rawPacketStream{ch: ch}
}

// nextPacket reads one logical packet, reassembling any run of
// maxPacketSize-length physical packets terminated by a shorter (possibly
// empty) tail, and raises the mapped error if the payload is a 0xFF error
// packet.
func (p *rawPacketStream) nextPacket() ([]byte, error) {
	var payload []byte
	for {
		header, err := p.ch.read(4)
		if err != nil {
			return nil, err
		}
		size := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
		// seqno (header[3]) is not inspected: the outgoing counter is kept
		// by Conn, and spec §9's Open Questions explicitly does not require
		// continuity validation on the incoming side.

		data, err := p.ch.read(size)
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

// sendPacket writes payload as one or more maxPacketSize-bounded physical
// packets. Every chunk after the first reuses seqno+1, seqno+2, ... per
// spec §3's "monotonically increasing seqno within one command cycle".
func (p *rawPacketStream) sendPacket(payload []byte, seqno uint8) error {
	for {
		n := len(payload)
		chunkLen := n
		if chunkLen > maxPacketSize {
			chunkLen = maxPacketSize
		}
		header := [4]byte{
			byte(chunkLen),
			byte(chunkLen >> 8),
			byte(chunkLen >> 16),
			seqno,
		}
		if err := p.ch.write(header[:]); err != nil {
			return err
		}
		if chunkLen > 0 {
			if err := p.ch.write(payload[:chunkLen]); err != nil {
				return err
			}
		}
		if chunkLen < maxPacketSize {
			return nil
		}
		payload = payload[chunkLen:]
		seqno++
	}
}

// decodeErrorPacket parses a 0xFF error packet per spec §3/§4.C:
// {errno: u16, sqlstate: 6-byte ASCII (# + 5 bytes), message: bytes}.
func decodeErrorPacket(data []byte) error {
	b := newByteStream(data)
	var result error
	err := parseProtected(func() {
		b.skip(1) // 0xFF marker
		errno := b.readU16()
		sqlstate := ""
		if b.remaining() > 0 && data[b.pos] == '#' {
			b.skip(1)
			sqlstate = string(b.read(5))
		}
		message := string(b.readAll())
		result = newServerError(errno, sqlstate, message)
	})
	if err != nil {
		return err
	}
	return result
}
