// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import "os"

// localInfileChunkSize is the maximum bytes sent per LOCAL INFILE data
// packet, matching the Python source's fileobj.read(65535) chunking.
const localInfileChunkSize = 65535

// sendLocalInfile services a server LOCAL INFILE request (spec §4.F,
// §9's LOCAL INFILE sub-protocol): the requested path is checked against
// the configured allow policy, then streamed in localInfileChunkSize
// packets starting at seqno 2, terminated by an empty packet. Grounded
// directly on original_source/mysql4py/protocol.py's nextset() LOCAL
// INFILE branch, including its try/finally guarantee that the empty
// terminator packet is sent even when the file could not be opened.
func (c *Conn) sendLocalInfile(path string) error {
	if !c.localInfileAllowed(path) {
		// Still must send the empty terminator so the server's state
		// machine doesn't hang waiting for data.
		c.seqno = 2
		_ = c.writePacket(nil)
		return ErrLocalInfileBlocked
	}

	f, openErr := os.Open(path)
	c.seqno = 2

	var sendErr error
	if openErr == nil {
		defer f.Close()
		buf := make([]byte, localInfileChunkSize)
		for {
			n, readErr := f.Read(buf)
			if n > 0 {
				if err := c.writePacket(buf[:n]); err != nil {
					sendErr = err
					break
				}
			}
			if readErr != nil {
				break
			}
		}
	}

	// Empty terminator packet, sent unconditionally.
	if err := c.writePacket(nil); err != nil && sendErr == nil {
		sendErr = err
	}

	if sendErr != nil {
		return sendErr
	}
	if openErr != nil {
		return &localError{"local infile: " + openErr.Error(), KindOperationalError}
	}
	return nil
}

// localInfileAllowed applies the configured policy: AllowAllFiles permits
// everything, otherwise the optional AllowLocalInfile hook decides, else
// default-deny (spec §9's Open Question, decided per DESIGN.md).
func (c *Conn) localInfileAllowed(path string) bool {
	if c.cfg.AllowAllFiles {
		return true
	}
	if c.cfg.AllowLocalInfile != nil {
		return c.cfg.AllowLocalInfile(path)
	}
	return false
}
