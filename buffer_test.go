// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import "testing"

func TestByteStreamPrimitives(t *testing.T) {
	b := newByteStream([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})
	if v := b.readU8(); v != 0x01 {
		t.Fatalf("readU8 = %x, want 0x01", v)
	}
	if v := b.readU16(); v != 0x0302 {
		t.Fatalf("readU16 = %x, want 0x0302", v)
	}
	if v := b.readU24(); v != 0x060504 {
		t.Fatalf("readU24 = %x, want 0x060504", v)
	}
	if v := b.readU8(); v != 0x07 {
		t.Fatalf("readU8 = %x, want 0x07", v)
	}
}

func TestByteStreamOverrun(t *testing.T) {
	b := newByteStream([]byte{0x01})
	err := parseProtected(func() {
		b.readU32()
	})
	if err != ErrMalformPkt {
		t.Fatalf("err = %v, want ErrMalformPkt", err)
	}
}

func TestReadLCB(t *testing.T) {
	cases := []struct {
		data   []byte
		want   uint64
		isNull bool
	}{
		{[]byte{0x05}, 5, false},
		{[]byte{0xfb}, 0, true},
		{[]byte{0xfc, 0x00, 0x01}, 256, false},
		{[]byte{0xfd, 0x01, 0x00, 0x01}, 0x010001, false},
		{[]byte{0xfe, 1, 0, 0, 0, 0, 0, 0, 0}, 1, false},
	}
	for _, c := range cases {
		v, isNull := newByteStream(c.data).readLCB()
		if v != c.want || isNull != c.isNull {
			t.Errorf("readLCB(%x) = (%d, %v), want (%d, %v)", c.data, v, isNull, c.want, c.isNull)
		}
	}
}

func TestReadNLCS(t *testing.T) {
	// two columns: "ab" and NULL
	data := []byte{0x02, 'a', 'b', 0xfb}
	b := newByteStream(data)
	row := b.readNLCS(2)
	if row[0] == nil || string(*row[0]) != "ab" {
		t.Fatalf("row[0] = %v, want \"ab\"", row[0])
	}
	if row[1] != nil {
		t.Fatalf("row[1] = %v, want nil", row[1])
	}
}

func TestReadNullStr(t *testing.T) {
	b := newByteStream([]byte("hello\x00world"))
	if s := b.readNullStr(); s != "hello" {
		t.Fatalf("readNullStr = %q, want %q", s, "hello")
	}
	if s := string(b.readAll()); s != "world" {
		t.Fatalf("readAll = %q, want %q", s, "world")
	}
}
