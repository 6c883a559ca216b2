// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import (
	"strings"
	"testing"
)

func TestCompressedPacketStreamRoundTripSmall(t *testing.T) {
	client, server := pipeChannels()
	defer client.close()
	defer server.close()

	cp := newCompressedPacketStream(client)
	sp := newCompressedPacketStream(server)

	go func() {
		sp.sendPacket([]byte("hi"), 0)
	}()

	got, err := cp.nextPacket()
	if err != nil {
		t.Fatalf("nextPacket: %v", err)
	}
	if string(got) != "hi" {
		t.Fatalf("nextPacket = %q, want %q", got, "hi")
	}
}

func TestCompressedPacketStreamRoundTripLarge(t *testing.T) {
	client, server := pipeChannels()
	defer client.close()
	defer server.close()

	cp := newCompressedPacketStream(client)
	sp := newCompressedPacketStream(server)

	payload := []byte(strings.Repeat("x", 10_000))

	go func() {
		sp.sendPacket(payload, 0)
	}()

	got, err := cp.nextPacket()
	if err != nil {
		t.Fatalf("nextPacket: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("len(nextPacket) = %d, want %d", len(got), len(payload))
	}
}

func TestCompressedPacketStreamMultipleFrames(t *testing.T) {
	client, server := pipeChannels()
	defer client.close()
	defer server.close()

	cp := newCompressedPacketStream(client)
	sp := newCompressedPacketStream(server)

	go func() {
		sp.sendPacket([]byte("first"), 0)
		sp.sendPacket([]byte("second"), 1)
	}()

	first, err := cp.nextPacket()
	if err != nil {
		t.Fatalf("nextPacket 1: %v", err)
	}
	if string(first) != "first" {
		t.Fatalf("first = %q, want first", first)
	}

	second, err := cp.nextPacket()
	if err != nil {
		t.Fatalf("nextPacket 2: %v", err)
	}
	if string(second) != "second" {
		t.Fatalf("second = %q, want second", second)
	}
}
