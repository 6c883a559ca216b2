// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import "testing"

func TestParseDSNBasic(t *testing.T) {
	cfg, err := ParseDSN("user:password@tcp(localhost:3306)/dbname")
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cfg.User != "user" || cfg.Passwd != "password" {
		t.Fatalf("got user=%q passwd=%q", cfg.User, cfg.Passwd)
	}
	if cfg.Net != "tcp" || cfg.Addr != "localhost:3306" {
		t.Fatalf("got net=%q addr=%q", cfg.Net, cfg.Addr)
	}
	if cfg.DBName != "dbname" {
		t.Fatalf("got dbname=%q", cfg.DBName)
	}
}

func TestParseDSNParams(t *testing.T) {
	cfg, err := ParseDSN("root@unix(/tmp/mysql.sock)/test?allowAllFiles=true&compress=true&strict=true&timeout=5s")
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cfg.Net != "unix" || cfg.Addr != "/tmp/mysql.sock" {
		t.Fatalf("got net=%q addr=%q", cfg.Net, cfg.Addr)
	}
	if !cfg.AllowAllFiles {
		t.Fatalf("AllowAllFiles = false, want true")
	}
	if !cfg.Compress {
		t.Fatalf("Compress = false, want true")
	}
	if !cfg.Strict {
		t.Fatalf("Strict = false, want true")
	}
	if cfg.Timeout.Seconds() != 5 {
		t.Fatalf("Timeout = %v, want 5s", cfg.Timeout)
	}
}

func TestParseDSNNoSlash(t *testing.T) {
	_, err := ParseDSN("user:password@tcp(localhost:3306)")
	if err == nil {
		t.Fatalf("expected error for missing slash")
	}
}

func TestParseDSNTLSModes(t *testing.T) {
	cfg, err := ParseDSN("root@tcp(localhost:3306)/test?tls=skip-verify")
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cfg.TLS == nil || !cfg.TLS.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify TLS config")
	}
}

func TestFormatDSN(t *testing.T) {
	cfg := &Config{User: "root", Passwd: "pw", Net: "tcp", Addr: "127.0.0.1:3306", DBName: "test"}
	got := cfg.FormatDSN()
	want := "root:pw@tcp(127.0.0.1:3306)/test"
	if got != want {
		t.Fatalf("FormatDSN = %q, want %q", got, want)
	}
}
