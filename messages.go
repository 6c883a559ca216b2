// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

// handshake is the server's initial greeting (spec §4.D), grounded on
// original_source/mysql4py/protocol.py's Handshake.decode and
// julienschmidt-gmysql/packets.go's readInitPacket byte offsets.
type handshake struct {
	protocolVersion byte
	serverVersion   string
	connectionID    uint32
	scrambleBuf     []byte
	capabilities    clientFlag
	charset         byte
	status          statusFlag
	authPlugin      string
}

// decodeHandshake parses the Initial Handshake Packet payload.
func decodeHandshake(data []byte) (*handshake, error) {
	h := &handshake{}
	err := parseProtected(func() {
		b := newByteStream(data)
		h.protocolVersion = b.readU8()
		if h.protocolVersion < minProtocolVersion {
			return
		}
		h.serverVersion = b.readNullStr()
		h.connectionID = b.readU32()

		scramble1 := b.read(8)
		b.skip(1) // filler

		h.capabilities = clientFlag(b.readU16())

		if b.remaining() == 0 {
			h.scrambleBuf = scramble1
			return
		}

		h.charset = b.readU8()
		h.status = statusFlag(b.readU16())
		h.capabilities |= clientFlag(b.readU16()) << 16
		scrambleLen := b.readU8()
		b.skip(10) // reserved

		if h.capabilities&clientSecureConn != 0 {
			n := int(scrambleLen) - 8
			if n < 13 {
				n = 13
			}
			scramble2 := b.read(n)
			// scramble2's final byte is a NUL terminator, not key material.
			if len(scramble2) > 0 && scramble2[len(scramble2)-1] == 0x00 {
				scramble2 = scramble2[:len(scramble2)-1]
			}
			h.scrambleBuf = append(append([]byte{}, scramble1...), scramble2...)
		} else {
			h.scrambleBuf = scramble1
		}

		if b.remaining() > 0 {
			h.authPlugin = string(bytes0(b.readAll()))
		}
	})
	if err != nil {
		return nil, err
	}
	if h.protocolVersion < minProtocolVersion {
		return nil, ErrOldProtocol
	}
	return h, nil
}

// bytes0 trims a single trailing NUL, if present, from a plugin-name tail
// that may or may not be NUL-terminated depending on server version.
func bytes0(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == 0x00 {
		return b[:len(b)-1]
	}
	return b
}

// clientAuth is the second handshake packet the client sends (spec §4.E),
// grounded on original_source/mysql4py/protocol.py's
// ClientAuthentication.serialize and julienschmidt-gmysql/packets.go's
// writeAuthPacket.
type clientAuth struct {
	capabilities clientFlag
	maxPacket    uint32
	charset      byte
	user         string
	scramble     []byte
	database     string
}

// encode serializes the client auth response packet. When scramble is nil
// and user is empty (SSL negotiation sub-request per spec §4.F step 3) only
// the fixed header is emitted.
func (c *clientAuth) encode() []byte {
	buf := make([]byte, 0, 64+len(c.user)+len(c.scramble)+len(c.database))
	buf = appendU32(buf, uint32(c.capabilities))
	buf = appendU32(buf, c.maxPacket)
	buf = append(buf, c.charset)
	buf = append(buf, make([]byte, 23)...) // filler

	if c.scramble == nil && c.user == "" {
		return buf
	}

	buf = append(buf, []byte(c.user)...)
	buf = append(buf, 0x00)

	buf = append(buf, byte(len(c.scramble)))
	buf = append(buf, c.scramble...)

	if c.database != "" {
		buf = append(buf, []byte(c.database)...)
		buf = append(buf, 0x00)
	}
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// okPacket is the server's acknowledgement of a successful command, spec
// §4.D / §3's OK packet, grounded on original_source/mysql4py/protocol.py's
// OK.decode.
type okPacket struct {
	affectedRows uint64
	insertID     uint64
	status       statusFlag
	warningCount uint16
	message      string
}

func decodeOK(data []byte) (*okPacket, error) {
	ok := &okPacket{}
	err := parseProtected(func() {
		b := newByteStream(data)
		b.skip(1) // 0x00 marker
		ok.affectedRows, _ = b.readLCB()
		ok.insertID, _ = b.readLCB()
		ok.status = statusFlag(b.readU16())
		ok.warningCount = b.readU16()
		if b.remaining() > 0 {
			ok.message = string(b.readAll())
		}
	})
	if err != nil {
		return nil, err
	}
	return ok, nil
}

// eofPacket is the legacy row-set terminator, spec §4.D's EOF packet.
// isEOFPacket implements the length-disambiguation rule of spec §4.D: a
// leading 0xFE only means EOF when the whole payload is at most 5 bytes
// (elsewhere 0xFE begins a length-coded integer >= 2^24 in old-protocol
// row data).
func isEOFPacket(data []byte) bool {
	return len(data) > 0 && data[0] == iEOF && len(data) <= 5
}

type eofPacket struct {
	warningCount uint16
	status       statusFlag
}

func decodeEOF(data []byte) (*eofPacket, error) {
	e := &eofPacket{}
	err := parseProtected(func() {
		b := newByteStream(data)
		b.skip(1) // 0xFE marker
		e.warningCount = b.readU16()
		e.status = statusFlag(b.readU16())
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// field describes one result-set column, spec §4.D's Field packet,
// grounded on original_source/mysql4py/protocol.py's Field.decode.
type field struct {
	catalog    string
	db         string
	table      string
	origTable  string
	name       string
	origName   string
	charset    uint16
	length     uint32
	fieldType  fieldType
	flags      fieldFlag
	decimals   byte
}

func decodeField(data []byte) (*field, error) {
	f := &field{}
	err := parseProtected(func() {
		b := newByteStream(data)
		f.catalog, _ = readLCSString(b)
		f.db, _ = readLCSString(b)
		f.table, _ = readLCSString(b)
		f.origTable, _ = readLCSString(b)
		f.name, _ = readLCSString(b)
		f.origName, _ = readLCSString(b)
		b.skip(1) // filler
		f.charset = b.readU16()
		f.length = b.readU32()
		f.fieldType = fieldType(b.readU8())
		f.flags = fieldFlag(b.readU16())
		f.decimals = b.readU8()
		if b.remaining() >= 2 {
			b.skip(2) // filler
		}
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func readLCSString(b *byteStream) (string, bool) {
	v, isNull := b.readLCS()
	if isNull {
		return "", true
	}
	return string(v), false
}
