// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import (
	"testing"
)

// scriptedServer drives the server side of a handshake + one query over a
// rawPacketStream, the way a real mysqld would, for end-to-end coverage
// without a live server.
type scriptedServer struct {
	sp *rawPacketStream
}

func (s *scriptedServer) runHandshakeAndOK(t *testing.T) {
	t.Helper()
	if err := s.sp.sendPacket(buildHandshake(), 0); err != nil {
		t.Errorf("server: send handshake: %v", err)
		return
	}
	if _, err := s.sp.nextPacket(); err != nil {
		t.Errorf("server: read auth packet: %v", err)
		return
	}
	ok := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	if err := s.sp.sendPacket(ok, 2); err != nil {
		t.Errorf("server: send OK: %v", err)
	}
}

func newTestConn(t *testing.T) (*Conn, *scriptedServer) {
	t.Helper()
	clientCh, serverCh := pipeChannels()
	server := &scriptedServer{sp: newRawPacketStream(serverCh)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.runHandshakeAndOK(t)
	}()

	c := &Conn{
		cfg:    &Config{User: "root", Passwd: "secret"},
		ch:     clientCh,
		packet: newRawPacketStream(clientCh),
		state:  stateInit,
	}
	if err := c.authenticate(); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	<-done
	return c, server
}

func TestConnAuthenticateReachesReady(t *testing.T) {
	c, _ := newTestConn(t)
	defer c.ch.close()

	if c.state != stateReady {
		t.Fatalf("state = %v, want stateReady", c.state)
	}
}

func buildFieldPacket(name string, typ fieldType) []byte {
	var data []byte
	appendLCS := func(s string) {
		data = append(data, byte(len(s)))
		data = append(data, []byte(s)...)
	}
	appendLCS("def")
	appendLCS("db")
	appendLCS("t")
	appendLCS("t")
	appendLCS(name)
	appendLCS(name)
	data = append(data, 0x0c)
	data = append(data, byte(defaultCollation), 0x00)
	data = appendU32(data, 11)
	data = append(data, byte(typ))
	data = append(data, 0x00, 0x00)
	data = append(data, 0x00)
	data = append(data, 0x00, 0x00)
	return data
}

func TestConnQuerySingleRow(t *testing.T) {
	clientCh, serverCh := pipeChannels()
	defer clientCh.close()
	defer serverCh.close()

	sp := newRawPacketStream(serverCh)
	server := &scriptedServer{sp: sp}

	handshakeDone := make(chan struct{})
	go func() {
		defer close(handshakeDone)
		server.runHandshakeAndOK(t)
	}()

	c := &Conn{
		cfg:    &Config{User: "root", Passwd: "secret"},
		ch:     clientCh,
		packet: newRawPacketStream(clientCh),
		state:  stateInit,
	}
	if err := c.authenticate(); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	<-handshakeDone

	queryDone := make(chan struct{})
	go func() {
		defer close(queryDone)
		if _, err := sp.nextPacket(); err != nil {
			t.Errorf("server: read query: %v", err)
			return
		}
		// field count = 1
		if err := sp.sendPacket([]byte{0x01}, 1); err != nil {
			t.Errorf("server: send field count: %v", err)
			return
		}
		if err := sp.sendPacket(buildFieldPacket("id", fieldTypeLong), 2); err != nil {
			t.Errorf("server: send field: %v", err)
			return
		}
		if err := sp.sendPacket([]byte{0xfe, 0x00, 0x00, 0x02, 0x00}, 3); err != nil {
			t.Errorf("server: send fields-EOF: %v", err)
			return
		}
		if err := sp.sendPacket([]byte{0x01, '7'}, 4); err != nil {
			t.Errorf("server: send row: %v", err)
			return
		}
		if err := sp.sendPacket([]byte{0xfe, 0x00, 0x00, 0x02, 0x00}, 5); err != nil {
			t.Errorf("server: send rows-EOF: %v", err)
		}
	}()

	result, err := c.Query("SELECT id FROM t")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	rs, ok := result.(*ResultSet)
	if !ok {
		t.Fatalf("result = %T, want *ResultSet", result)
	}
	if len(rs.Fields()) != 1 || rs.Fields()[0].Name != "id" {
		t.Fatalf("Fields() = %+v", rs.Fields())
	}
	if !rs.Next() {
		t.Fatalf("Next() = false, want true: %v", rs.Err())
	}
	row := rs.Row()
	if row[0] == nil || string(*row[0]) != "7" {
		t.Fatalf("row[0] = %v, want 7", row[0])
	}
	if rs.Next() {
		t.Fatalf("Next() = true after last row, want false")
	}
	<-queryDone
	if c.state != stateReady {
		t.Fatalf("state after drain = %v, want stateReady", c.state)
	}
}

func TestConnPing(t *testing.T) {
	clientCh, serverCh := pipeChannels()
	defer clientCh.close()
	defer serverCh.close()

	sp := newRawPacketStream(serverCh)
	server := &scriptedServer{sp: sp}

	handshakeDone := make(chan struct{})
	go func() {
		defer close(handshakeDone)
		server.runHandshakeAndOK(t)
	}()

	c := &Conn{
		cfg:    &Config{User: "root", Passwd: "secret"},
		ch:     clientCh,
		packet: newRawPacketStream(clientCh),
		state:  stateInit,
	}
	if err := c.authenticate(); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	<-handshakeDone

	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		if _, err := sp.nextPacket(); err != nil {
			t.Errorf("server: read ping: %v", err)
			return
		}
		sp.sendPacket([]byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}, 1)
	}()

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	<-pingDone
}
