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
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds a parsed connection string (spec §5). Fields that the
// teacher's DSN supports purely for its database/sql value-conversion
// layer (ParseTime, ColumnsWithAlias, ClientFoundRows, Loc) are dropped
// per DESIGN.md; AllowAllFiles and compression are kept and extended.
type Config struct {
	User   string
	Passwd string
	Net    string // "tcp" or "unix"
	Addr   string
	DBName string

	Collation string
	Timeout   time.Duration

	AllowAllFiles           bool
	AllowLocalInfile        func(path string) bool
	AllowOldPasswords       bool
	AllowCleartextPasswords bool // requires TLS; see Conn.authenticate
	Compress                bool

	TLS    *tls.Config
	Strict bool // SHOW WARNINGS after any command reporting warningCount > 0
}

// FormatDSN mirrors the teacher's DSN shape: user:passwd@net(addr)/dbname.
func (cfg *Config) FormatDSN() string {
	var buf strings.Builder
	if cfg.User != "" {
		buf.WriteString(cfg.User)
	}
	if cfg.Passwd != "" {
		buf.WriteByte(':')
		buf.WriteString(cfg.Passwd)
	}
	if buf.Len() > 0 {
		buf.WriteByte('@')
	}
	if cfg.Net != "" {
		buf.WriteString(cfg.Net)
		buf.WriteByte('(')
		buf.WriteString(cfg.Addr)
		buf.WriteByte(')')
	}
	buf.WriteByte('/')
	buf.WriteString(cfg.DBName)
	return buf.String()
}

// ParseDSN parses a data source name of the form:
//
//	[user[:password]@][net[(addr)]]/dbname[?param1=value1&paramN=valueN]
//
// grounded on julienschmidt-gmysql/dsn.go's ParseDSN hand-rolled scanner
// (slash-from-the-right, then '@' split, then parenthesized address).
func ParseDSN(dsn string) (*Config, error) {
	cfg := &Config{
		Net:     "tcp",
		Addr:    "127.0.0.1:3306",
		Timeout: 0,
	}

	foundSlash := false
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] != '/' {
			continue
		}
		foundSlash = true

		k := -1
		for j := i; j >= 0; j-- {
			if dsn[j] == '@' {
				k = j
				break
			}
		}
		if k > 0 {
			userPart, passPart, hasPass := strings.Cut(dsn[:k], ":")
			cfg.User = userPart
			if hasPass {
				cfg.Passwd = passPart
			}
		}
		netAddr := dsn[k+1 : i]
		if netAddr != "" {
			open := strings.IndexByte(netAddr, '(')
			if open >= 0 {
				if netAddr[len(netAddr)-1] != ')' {
					return nil, errors.New("invalid DSN: did not close parenthesis")
				}
				cfg.Net = netAddr[:open]
				cfg.Addr = netAddr[open+1 : len(netAddr)-1]
			} else {
				cfg.Net = netAddr
			}
		}

		rest := dsn[i+1:]
		if q := strings.IndexByte(rest, '?'); q >= 0 {
			cfg.DBName = rest[:q]
			if err := parseDSNParams(cfg, rest[q+1:]); err != nil {
				return nil, err
			}
		} else {
			cfg.DBName = rest
		}
		break
	}

	if !foundSlash && len(dsn) > 0 {
		return nil, errors.New("invalid DSN: missing the slash separating the connection address from the default database name")
	}

	return cfg, nil
}

func parseDSNParams(cfg *Config, params string) error {
	for _, v := range strings.Split(params, "&") {
		key, value, found := strings.Cut(v, "=")
		if !found {
			continue
		}

		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return err
		}

		switch key {
		case "allowAllFiles":
			cfg.AllowAllFiles, err = strconv.ParseBool(decoded)
		case "allowOldPasswords":
			cfg.AllowOldPasswords, err = strconv.ParseBool(decoded)
		case "allowCleartextPasswords":
			cfg.AllowCleartextPasswords, err = strconv.ParseBool(decoded)
		case "collation":
			cfg.Collation = decoded
		case "compress":
			cfg.Compress, err = strconv.ParseBool(decoded)
		case "strict":
			cfg.Strict, err = strconv.ParseBool(decoded)
		case "timeout":
			cfg.Timeout, err = time.ParseDuration(decoded)
		case "tls":
			switch decoded {
			case "true":
				cfg.TLS = &tls.Config{}
			case "skip-verify":
				cfg.TLS = &tls.Config{InsecureSkipVerify: true}
			case "false", "":
				cfg.TLS = nil
			default:
				return errors.New("invalid value for tls: " + decoded)
			}
		default:
			// unknown params are ignored, matching the teacher's tolerance
			// of driver-specific extensions it doesn't recognize either.
		}
		if err != nil {
			return err
		}
	}
	return nil
}
