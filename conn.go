// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import (
	"crypto/tls"
	"strconv"
)

// connState is the explicit client-visible state machine spec §4.F
// describes, grounded on original_source/mysql4py/protocol.py's Protocol
// class's self.state field.
type connState int

const (
	stateInit connState = iota
	stateAuth
	stateReady
	stateResult
	stateFields
	stateData
)

// Conn is a single connection to a MySQL 4.1+ server, implementing the
// text protocol only (spec §1). It is not safe for concurrent use by
// multiple goroutines, matching the teacher's mysqlConn.
type Conn struct {
	cfg    *Config
	ch     *channel
	packet packetStream
	state  connState
	seqno  uint8

	serverStatus statusFlag
	warningCount uint16

	result *ResultSet // non-nil while state is stateFields/stateData
}

// Connect dials cfg.Net/cfg.Addr, performs the handshake, and returns a
// Conn in stateReady. Grounded on julienschmidt-gmysql/connection.go's
// Open.
func Connect(cfg *Config) (*Conn, error) {
	var ch *channel
	var err error
	switch cfg.Net {
	case "unix":
		ch, err = dialUnix(cfg.Addr, cfg.Timeout)
	default:
		ch, err = dialTCP(cfg.Addr, cfg.Timeout)
	}
	if err != nil {
		return nil, err
	}

	c := &Conn{
		cfg:    cfg,
		ch:     ch,
		packet: newRawPacketStream(ch),
		state:  stateInit,
	}

	if err := c.authenticate(); err != nil {
		ch.close()
		return nil, err
	}
	return c, nil
}

// authenticate runs the full handshake exchange (spec §4.F): read the
// server greeting, negotiate capability flags, optionally upgrade to TLS,
// send the client auth packet, and handle the old-password retry. Grounded on original_source/mysql4py/protocol.py's
// authenticate() and julienschmidt-gmysql/connection.go's
// handleAuthResult.
func (c *Conn) authenticate() error {
	c.state = stateAuth

	if c.cfg.AllowCleartextPasswords && c.cfg.TLS == nil {
		return ErrCleartextPassword
	}

	greeting, err := c.packet.nextPacket()
	if err != nil {
		return err
	}
	hs, err := decodeHandshake(greeting)
	if err != nil {
		return err
	}
	c.seqno = 1

	wanted := clientLongPassword | clientLongFlag | clientTransactions |
		clientProtocol41 | clientSecureConn | clientMultiStatements | clientMultiResults
	if c.cfg.DBName != "" {
		wanted |= clientConnectWithDB
	}
	if c.cfg.AllowAllFiles || c.cfg.AllowLocalInfile != nil {
		wanted |= clientLocalFiles
	}

	caps := hs.capabilities
	needSSL := c.cfg.TLS != nil
	needCompress := c.cfg.Compress

	if needSSL && caps&clientSSL == 0 {
		return newServerError(2026, "", "SSL connection error: server does not support SSL")
	}
	if needCompress && caps&clientCompress == 0 {
		return newServerError(1157, "", "Got an error reading communication packets")
	}

	negotiated := caps&wanted | clientProtocol41 | clientSecureConn | clientMultiStatements | clientMultiResults
	if needSSL {
		negotiated |= clientSSL
	}
	if needCompress {
		negotiated |= clientCompress
	}

	if hs.capabilities&clientProtocol41 == 0 {
		return ErrOldProtocol
	}

	collation := defaultCollation
	if c.cfg.Collation != "" {
		if n, err := strconv.Atoi(c.cfg.Collation); err == nil {
			collation = byte(n)
		}
	}

	if needSSL {
		sslRequest := &clientAuth{
			capabilities: negotiated,
			maxPacket:    maxPacketSize,
			charset:      collation,
		}
		if err := c.writePacket(sslRequest.encode()); err != nil {
			return err
		}
		if err := c.ch.startTLS(c.cfg.TLS); err != nil {
			return err
		}
	}

	scramble := scramble41(c.cfg.Passwd, hs.scrambleBuf)
	auth := &clientAuth{
		capabilities: negotiated,
		maxPacket:    maxPacketSize,
		charset:      collation,
		user:         c.cfg.User,
		scramble:     scramble,
		database:     c.cfg.DBName,
	}
	if err := c.writePacket(auth.encode()); err != nil {
		return err
	}

	resp, err := c.packet.nextPacket()
	if err != nil {
		return err
	}

	if len(resp) > 0 && resp[0] == iEOF && c.cfg.AllowOldPasswords {
		// old-password request: server asks for the legacy scramble, at
		// seqno 3 (handshake=0, ClientAuth=1, server EOF=2, this=3).
		old := scramble323(c.cfg.Passwd, hs.scrambleBuf)
		c.seqno = 3
		if err := c.writePacket(old[:]); err != nil {
			return err
		}
		resp, err = c.packet.nextPacket()
		if err != nil {
			return err
		}
	}

	ok, err := decodeOK(resp)
	if err != nil {
		return err
	}
	c.serverStatus = ok.status
	c.warningCount = ok.warningCount

	if needCompress {
		c.packet = newCompressedPacketStream(c.ch)
	}

	c.state = stateReady
	return nil
}

// writePacket sends payload under the connection's current outgoing
// sequence number, then advances it.
func (c *Conn) writePacket(payload []byte) error {
	err := c.packet.sendPacket(payload, c.seqno)
	c.seqno++
	return err
}

// Query sends a single SQL statement as COM_QUERY and returns the first
// result (spec §4.F, §6). Conn must be in stateReady; per spec §6, SQL
// parameter interpolation is the caller's responsibility.
func (c *Conn) Query(sql string) (interface{}, error) {
	if err := c.sync(); err != nil {
		return nil, err
	}
	if c.state != stateReady {
		return nil, ErrPktSync
	}

	c.seqno = 0
	payload := append([]byte{comQuery}, []byte(sql)...)
	if err := c.writePacket(payload); err != nil {
		return nil, err
	}

	c.state = stateResult
	return c.NextSet()
}

// Ping sends COM_PING and expects an OK packet (SPEC_FULL.md, supplemented
// feature #1). Grounded on julienschmidt-gmysql/connection.go's
// Ping.
func (c *Conn) Ping() error {
	if err := c.sync(); err != nil {
		return err
	}
	if c.state != stateReady {
		return ErrPktSync
	}
	c.seqno = 0
	if err := c.writePacket([]byte{comPing}); err != nil {
		return err
	}
	resp, err := c.packet.nextPacket()
	if err != nil {
		return err
	}
	_, err = decodeOK(resp)
	return err
}

// NextSet reads the next logical packet after a command or a drained
// result set, and dispatches it per spec §4.F's three-way branch (OK /
// LOCAL INFILE / result set header), grounded on
// original_source/mysql4py/protocol.py's nextset(). It is the DB-API
// adapter's path to a multi-statement query's second and later results
// (spec §6's nextset() contract, §8 scenario 5): once a ResultSet is
// drained, the connection sits in stateResult until NextSet is called
// again, so callers must loop on SimpleResult.MoreResults /
// ResultSet.MoreResults() rather than assuming one result per Query.
func (c *Conn) NextSet() (interface{}, error) {
	if c.state != stateResult {
		return nil, ErrPktSync
	}

	data, err := c.packet.nextPacket()
	if err != nil {
		c.state = stateReady
		return nil, err
	}

	switch {
	case len(data) > 0 && data[0] == iOK:
		ok, err := decodeOK(data)
		if err != nil {
			c.state = stateReady
			return nil, err
		}
		c.serverStatus = ok.status
		c.warningCount = ok.warningCount
		res := &SimpleResult{
			AffectedRows: ok.affectedRows,
			InsertID:     ok.insertID,
			ServerStatus: ok.status,
			Warnings:     ok.warningCount,
			MoreResults:  ok.status&statusMoreResultsExists != 0,
		}
		if !res.MoreResults {
			c.state = stateReady
			if c.cfg.Strict && res.Warnings > 0 {
				if ws, werr := c.fetchWarnings(); werr == nil && len(ws) > 0 {
					return res, ws
				}
			}
		}
		return res, nil

	case len(data) > 0 && data[0] == iLocalInFile:
		b := newByteStream(data)
		var path string
		if perr := parseProtected(func() {
			b.skip(1)
			path = string(b.readAll())
		}); perr != nil {
			c.state = stateReady
			return nil, perr
		}
		if err := c.sendLocalInfile(path); err != nil {
			c.state = stateReady
			return nil, err
		}
		return c.NextSet()

	default:
		fieldCount, _ := newByteStream(data).readLCB()
		rs, err := c.readResultSetHeader(int(fieldCount))
		if err != nil {
			c.state = stateReady
			return nil, err
		}
		return rs, nil
	}
}

// readResultSetHeader reads fieldCount Field packets, the terminating EOF,
// and leaves the connection in stateData, ready to stream rows via
// ResultSet.Next.
func (c *Conn) readResultSetHeader(fieldCount int) (*ResultSet, error) {
	c.state = stateFields
	fields := make([]*field, 0, fieldCount)
	for i := 0; i < fieldCount; i++ {
		data, err := c.packet.nextPacket()
		if err != nil {
			return nil, err
		}
		f, err := decodeField(data)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	if fieldCount > 0 {
		eof, err := c.packet.nextPacket()
		if err != nil {
			return nil, err
		}
		if isEOFPacket(eof) {
			e, err := decodeEOF(eof)
			if err != nil {
				return nil, err
			}
			c.serverStatus = e.status
		}
	}

	c.state = stateData
	rs := &ResultSet{conn: c, fields: fields}
	c.result = rs
	return rs, nil
}

// fetchWarnings issues SHOW WARNINGS and collects the rows into Warnings,
// grounded on julienschmidt-gmysql/errors.go's getWarnings pattern: a
// command that reports warningCount > 0 is immediately followed, under
// Config.Strict, by a SHOW WARNINGS query whose rows become the returned
// error. Conn must already be in stateReady (the triggering command's
// result must not have further pending result sets).
func (c *Conn) fetchWarnings() (Warnings, error) {
	result, err := c.Query("SHOW WARNINGS")
	if err != nil {
		return nil, err
	}
	rs, ok := result.(*ResultSet)
	if !ok {
		return nil, nil
	}
	var out Warnings
	for rs.Next() {
		row := rs.Row()
		var w Warning
		if len(row) > 0 && row[0] != nil {
			w.Level = string(*row[0])
		}
		if len(row) > 1 && row[1] != nil {
			w.Code = string(*row[1])
		}
		if len(row) > 2 && row[2] != nil {
			w.Message = string(*row[2])
		}
		out = append(out, w)
	}
	if err := rs.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// sync drains any pending result sets, including later statements of a
// multi-statement command, so a new command can be issued, per spec §4.F:
// "sync() drains pending result sets." Grounded on
// julienschmidt-gmysql/rows.go's Close draining rows.Next() to exhaustion.
func (c *Conn) sync() error {
	if c.result != nil && (c.state == stateFields || c.state == stateData) {
		if err := c.result.Close(); err != nil {
			return err
		}
	}
	for c.state == stateResult {
		set, err := c.NextSet()
		if err != nil {
			return err
		}
		if rs, ok := set.(*ResultSet); ok {
			if err := rs.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close terminates the connection, sending COM_QUIT first if the
// connection is healthy enough to accept a command.
func (c *Conn) Close() error {
	if c.ch == nil || c.ch.conn == nil {
		return nil
	}
	if c.state == stateReady {
		c.seqno = 0
		_ = c.writePacket([]byte{comQuit})
	}
	return c.ch.close()
}

// startTLSConfigured reports whether the channel has been upgraded to TLS,
// i.e. whether the handshake took the SSL branch.
func (c *Conn) startTLSConfigured() bool {
	_, ok := c.ch.conn.(*tls.Conn)
	return ok
}
