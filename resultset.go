// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import "io"

// SimpleResult is the outcome of a command that did not return a row set
// (spec §6), grounded on original_source/mysql4py/protocol.py's
// SimpleResult.
type SimpleResult struct {
	AffectedRows uint64
	InsertID     uint64
	ServerStatus statusFlag
	Warnings     uint16
	MoreResults  bool
}

// Field describes one result-set column, exported for callers that need
// column metadata (name, type, nullability) without a value-conversion
// layer attached (spec §6, §9: the core returns raw bytes only).
type Field struct {
	Name     string
	Table    string
	Type     byte
	Flags    uint16
	Decimals byte
}

func exportField(f *field) Field {
	return Field{
		Name:     f.name,
		Table:    f.table,
		Type:     byte(f.fieldType),
		Flags:    uint16(f.flags),
		Decimals: f.decimals,
	}
}

// ResultSet is a lazy row iterator (spec §6: "a lazy iterator of rows
// where each row is a sequence of Option<bytes>"). Grounded on
// julienschmidt-gmysql/rows.go's textRows and
// original_source/mysql4py/protocol.py's ResultSet.__iter__, including its
// ending behavior: once the terminating EOF is read, the ResultSet
// invalidates its back-reference to the connection rather than letting
// callers keep reading (spec §9's "Result invalidates on state
// transition").
type ResultSet struct {
	conn   *Conn
	fields []*field

	row         []*[]byte
	err         error
	done        bool
	moreResults bool
}

// Fields returns the column metadata read from the result set header.
func (rs *ResultSet) Fields() []Field {
	out := make([]Field, len(rs.fields))
	for i, f := range rs.fields {
		out[i] = exportField(f)
	}
	return out
}

// Next advances to the next row, returning false at EOF or on error; call
// Err afterward to distinguish the two.
func (rs *ResultSet) Next() bool {
	if rs.done || rs.conn == nil {
		return false
	}

	data, err := rs.conn.packet.nextPacket()
	if err != nil {
		rs.err = err
		rs.invalidate()
		return false
	}

	if isEOFPacket(data) {
		e, err := decodeEOF(data)
		if err != nil {
			rs.err = err
		} else {
			rs.conn.serverStatus = e.status
		}
		rs.invalidate()
		return false
	}

	b := newByteStream(data)
	var row []*[]byte
	if perr := parseProtected(func() {
		row = b.readNLCS(len(rs.fields))
	}); perr != nil {
		rs.err = perr
		rs.invalidate()
		return false
	}
	rs.row = row
	return true
}

// Row returns the current row as raw, possibly-nil byte slices (NULL is
// represented as a nil *[]byte entry).
func (rs *ResultSet) Row() []*[]byte {
	return rs.row
}

// Err returns the error, if any, that stopped iteration.
func (rs *ResultSet) Err() error {
	return rs.err
}

// MoreResults reports whether the server has further results pending for
// this multi-statement command (spec §6's nextset() contract). Valid only
// after iteration has ended (Next returned false); the caller's next step
// is Conn.NextSet(), not another Query.
func (rs *ResultSet) MoreResults() bool {
	return rs.moreResults
}

// Close drains any unread rows and returns the connection to stateReady
// (or to stateResult when the server reports more results pending),
// matching julienschmidt-gmysql/rows.go's Close and spec §4.F's
// sync()-drains-pending-result-sets rule.
func (rs *ResultSet) Close() error {
	for rs.Next() {
	}
	return rs.err
}

func (rs *ResultSet) invalidate() {
	rs.done = true
	if rs.conn != nil {
		rs.moreResults = rs.conn.serverStatus&statusMoreResultsExists != 0
		if rs.moreResults {
			rs.conn.state = stateResult
		} else {
			rs.conn.state = stateReady
		}
		rs.conn.result = nil
		rs.conn = nil
	}
}

var errRowsExhausted = io.EOF
