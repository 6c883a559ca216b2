// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import "crypto/sha1"

// scramble41 implements the 4.1+ password scramble (spec §4.E, §9):
// XOR(SHA1(password), SHA1(seed + SHA1(SHA1(password)))).
// Grounded directly on original_source/mysql4py/protocol.py's scramble().
func scramble41(password string, seed []byte) []byte {
	if password == "" {
		return nil
	}

	stage1 := sha1.Sum([]byte(password))
	stage2 := sha1.Sum(stage1[:])

	h := sha1.New()
	h.Write(seed)
	h.Write(stage2[:])
	stage3 := h.Sum(nil)

	out := make([]byte, len(stage1))
	for i := range out {
		out[i] = stage1[i] ^ stage3[i]
	}
	return out
}

// scramble323 implements the legacy 3.23/4.0 additive-PRNG password
// scramble. It returns exactly 9 bytes: the 8-byte scrambled reply
// followed by the NUL terminator the wire format requires (spec §9's Open
// Question decision — not a length-coded string, always returned this
// shape). Grounded directly on
// original_source/mysql4py/protocol.py's scramble_323(), including its
// nested hash_password/random_323 helpers.
func scramble323(password string, seed []byte) [9]byte {
	var out [9]byte
	if password == "" {
		return out
	}

	pw := hashPassword323(password)
	msg := hashPassword323(string(seed))

	const maxValue = 0x3FFFFFFF
	seed1 := (pw[0] ^ msg[0]) % maxValue
	seed2 := (pw[1] ^ msg[1]) % maxValue

	next := func() float64 {
		seed1 = (seed1*3 + seed2) % 0x3FFFFFFF
		seed2 = (seed1 + seed2 + 33) % 0x3FFFFFFF
		return float64(seed1) / 0x3FFFFFFF
	}

	for i := 0; i < 8; i++ {
		out[i] = byte(uint32(next()*31) + 64)
	}
	extra := byte(uint32(next() * 31))
	for i := 0; i < 8; i++ {
		out[i] ^= extra
	}
	out[8] = 0x00
	return out
}

// hashPassword323 is the nr/nr2 two-word hash the legacy scramble feeds
// into its additive PRNG seed, matching the Python source's
// hash_password() bit for bit.
func hashPassword323(s string) [2]uint32 {
	var nr, nr2 uint32 = 1345345333, 0x12345671
	const mask = 0x7FFFFFFF
	add := uint32(7)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' {
			continue
		}
		tmp := uint32(c)
		nr ^= (((nr & 63) + add) * tmp) + (nr << 8)
		nr &= mask
		nr2 += (nr2 << 8) ^ nr
		nr2 &= mask
		add += tmp
	}
	return [2]uint32{nr & mask, nr2 & mask}
}
