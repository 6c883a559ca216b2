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
	"net"
	"time"
)

const channelReadBlock = 4096

// channel is a byte-oriented duplex transport over TCP or a Unix socket,
// with an internal read buffer, upgradable to TLS mid-handshake. It is
// spec §4.A's Channel component, modeled on
// original_source/mysql4py/channel.py's BufferedChannel (pull in 4096-byte
// blocks, buffer the remainder) and on the teacher's dial + keepalive
// sequence in connection.go's Open.
type channel struct {
	conn net.Conn
	buf  []byte // unread bytes already pulled off conn
}

// dialTCP connects to host:port over TCP, enabling keepalives the way the
// teacher's Open does immediately after a successful Dial.
func dialTCP(addr string, timeout time.Duration) (*channel, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, &localError{"connect: " + err.Error(), KindTransport}
	}
	if tc, ok := c.(*net.TCPConn); ok {
		if err := tc.SetKeepAlive(true); err != nil {
			c.Close()
			return nil, &localError{"connect: " + err.Error(), KindTransport}
		}
	}
	return &channel{conn: c}, nil
}

// dialUnix connects to a Unix domain stream socket.
func dialUnix(path string, timeout time.Duration) (*channel, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.Dial("unix", path)
	if err != nil {
		return nil, &localError{"connect: " + err.Error(), KindTransport}
	}
	return &channel{conn: c}, nil
}

// read returns exactly n bytes, pulling from the socket in
// channelReadBlock chunks and buffering any surplus for the next call.
// Premature close fails with a Transport-kind error (spec: TransportEOF).
func (c *channel) read(n int) ([]byte, error) {
	for len(c.buf) < n {
		chunk := make([]byte, channelReadBlock)
		m, err := c.conn.Read(chunk)
		if m > 0 {
			c.buf = append(c.buf, chunk[:m]...)
		}
		if err != nil {
			if len(c.buf) >= n {
				break
			}
			return nil, &localError{"read: " + err.Error(), KindTransport}
		}
	}
	out := c.buf[:n]
	c.buf = c.buf[n:]
	return out, nil
}

// write writes all of b, retrying on short writes.
func (c *channel) write(b []byte) error {
	for len(b) > 0 {
		n, err := c.conn.Write(b)
		if err != nil {
			return &localError{"write: " + err.Error(), KindTransport}
		}
		b = b[n:]
	}
	return nil
}

// startTLS wraps the current socket in a TLS session. Must be called only
// between the first and second ClientAuth packets of the auth handshake
// (spec §4.A); after it returns, read/write are encrypted.
func (c *channel) startTLS(cfg *tls.Config) error {
	tlsConn := tls.Client(c.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return &localError{"tls handshake: " + err.Error(), KindTransport}
	}
	c.conn = tlsConn
	return nil
}

func (c *channel) close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return &localError{"close: " + err.Error(), KindTransport}
	}
	return nil
}
