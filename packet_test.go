// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import (
	"net"
	"testing"
)

func pipeChannels() (*channel, *channel) {
	a, b := net.Pipe()
	return &channel{conn: a}, &channel{conn: b}
}

func TestRawPacketStreamRoundTrip(t *testing.T) {
	client, server := pipeChannels()
	defer client.close()
	defer server.close()

	cp := newRawPacketStream(client)
	sp := newRawPacketStream(server)

	go func() {
		sp.sendPacket([]byte("hello"), 0)
	}()

	got, err := cp.nextPacket()
	if err != nil {
		t.Fatalf("nextPacket: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("nextPacket = %q, want %q", got, "hello")
	}
}

func TestRawPacketStreamSplitsOversizedPayload(t *testing.T) {
	client, server := pipeChannels()
	defer client.close()
	defer server.close()

	cp := newRawPacketStream(client)
	sp := newRawPacketStream(server)

	payload := make([]byte, maxPacketSize+10)
	for i := range payload {
		payload[i] = byte(i)
	}

	go func() {
		sp.sendPacket(payload, 0)
	}()

	got, err := cp.nextPacket()
	if err != nil {
		t.Fatalf("nextPacket: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("len(nextPacket) = %d, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("payload mismatch at %d: got %x want %x", i, got[i], payload[i])
		}
	}
}

func TestRawPacketStreamDecodesErrorPacket(t *testing.T) {
	client, server := pipeChannels()
	defer client.close()
	defer server.close()

	cp := newRawPacketStream(client)
	sp := newRawPacketStream(server)

	errPayload := append([]byte{iERR, 0x2A, 0x04, '#'}, append([]byte("42000"), []byte("Syntax error")...)...)

	go func() {
		sp.sendPacket(errPayload, 0)
	}()

	_, err := cp.nextPacket()
	serr, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %v (%T), want *Error", err, err)
	}
	if serr.Number != 0x042A {
		t.Fatalf("serr.Number = %x, want 0x042A", serr.Number)
	}
	if serr.SQLState != "42000" {
		t.Fatalf("serr.SQLState = %q, want 42000", serr.SQLState)
	}
	if serr.Message != "Syntax error" {
		t.Fatalf("serr.Message = %q, want Syntax error", serr.Message)
	}
}
