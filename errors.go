// mysql4go - a MySQL 4.1+ text protocol client library
//
// Copyright 2016 The gmysql Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql4go

import (
	"errors"
	"fmt"
	"log"
	"os"
)

// ErrorKind classifies a failure the way the surrounding DB-API layer is
// expected to surface it (spec §7). It is not a distinct Go type per kind;
// callers switch on Error.Kind after an errors.As.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindProtocolMalformed
	KindInterfaceError
	KindOperationalError
	KindIntegrityError
	KindDataError
	KindProgrammingError
	KindInternalError
	KindNotSupportedError
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindProtocolMalformed:
		return "ProtocolMalformed"
	case KindInterfaceError:
		return "InterfaceError"
	case KindOperationalError:
		return "OperationalError"
	case KindIntegrityError:
		return "IntegrityError"
	case KindDataError:
		return "DataError"
	case KindProgrammingError:
		return "ProgrammingError"
	case KindInternalError:
		return "InternalError"
	case KindNotSupportedError:
		return "NotSupportedError"
	default:
		return "UnknownKind"
	}
}

// Error represents a single MySQL server error, or a locally synthesized
// one (e.g. the unexpected-EOF-as-2006 mapping spec §7 describes).
type Error struct {
	Number   uint16
	SQLState string
	Message  string
	Kind     ErrorKind
}

func (e *Error) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("Error %d (%s): %s", e.Number, e.SQLState, e.Message)
	}
	return fmt.Sprintf("Error %d: %s", e.Number, e.Message)
}

// newServerError builds an *Error from a server errno/sqlstate/message,
// assigning it the ErrorKind the errno maps to.
func newServerError(number uint16, sqlstate, message string) *Error {
	return &Error{
		Number:   number,
		SQLState: sqlstate,
		Message:  message,
		Kind:     errnoToKind(number),
	}
}

// errnoToKind implements the taxonomy table of spec §7, grounded on
// original_source/mysql4py/errors.py's errno_to_exception map. Unlisted
// errnos default to KindInternalError, matching both the Python source and
// spec §7 ("InternalError — default for unrecognised server errnos").
func errnoToKind(errno uint16) ErrorKind {
	if k, ok := errnoKinds[errno]; ok {
		return k
	}
	return KindInternalError
}

var errnoKinds = map[uint16]ErrorKind{
	1043: KindInternalError,    // ER_BAD_HANDSHAKE
	1044: KindOperationalError, // ER_DBACCESS_DENIED
	1045: KindOperationalError, // ER_ACCESS_DENIED
	1046: KindOperationalError, // ER_NO_DB
	1047: KindInternalError,    // ER_UNKNOWN_COM
	1048: KindDataError,        // ER_BAD_NULL
	1049: KindOperationalError, // ER_BAD_DB
	1050: KindOperationalError, // ER_TABLE_EXISTS
	1051: KindOperationalError, // ER_BAD_TABLE
	1052: KindOperationalError, // ER_NON_UNIQ
	1053: KindOperationalError, // ER_SERVER_SHUTDOWN
	1054: KindOperationalError, // ER_BAD_FIELD
	1055: KindProgrammingError, // ER_WRONG_FIELD_WITH_GROUP
	1056: KindProgrammingError, // ER_WRONG_GROUP_FIELD
	1057: KindProgrammingError, // ER_WRONG_SUM_SELECT
	1058: KindProgrammingError, // ER_WRONG_VALUE_COUNT
	1059: KindProgrammingError, // ER_TOO_LONG_IDENT
	1060: KindProgrammingError, // ER_DUP_FIELDNAME
	1061: KindDataError,        // ER_DUP_KEYNAME
	1062: KindIntegrityError,   // ER_DUP_ENTRY
	1063: KindProgrammingError, // ER_WRONG_FIELD_SPEC
	1064: KindProgrammingError, // ER_PARSE
	1065: KindProgrammingError, // ER_EMPTY_QUERY
	1066: KindProgrammingError, // ER_NONUNIQ_TABLE
	1067: KindProgrammingError, // ER_INVALID_DEFAULT
	1068: KindProgrammingError, // ER_MULTIPLE_PRI_KEY
	1069: KindOperationalError, // ER_TOO_MANY_KEYS
	1070: KindOperationalError, // ER_TOO_MANY_KEY_PARTS
	1071: KindOperationalError, // ER_TOO_LONG_KEY
	1072: KindOperationalError, // ER_KEY_COLUMN_DOES_NOT_EXIST
	1157: KindOperationalError, // ER_NET_UNCOMPRESS_ERROR
	2006: KindOperationalError, // CR_SERVER_GONE_ERROR
	2026: KindOperationalError, // CR_SSL_CONNECTION_ERROR
}

// Local, non-server-reported errors. Kinds are assigned per spec §7.
var (
	ErrMalformPkt         = &localError{"malformed packet", KindProtocolMalformed}
	ErrPktSync            = &localError{"commands out of sync. You can't run this command now", KindProtocolMalformed}
	ErrPktSyncMul         = &localError{"commands out of sync. Did you run multiple statements at once?", KindProtocolMalformed}
	ErrPktTooLarge        = &localError{"packet for query is too large. You can change this value on the server by adjusting the 'max_allowed_packet' variable", KindProtocolMalformed}
	ErrOldProtocol        = &localError{"MySQL server does not support required Protocol 41+", KindOperationalError}
	ErrNoTLS              = &localError{"TLS encryption requested but server does not support TLS", KindOperationalError}
	ErrNoCompress         = &localError{"compression requested but server does not support it", KindOperationalError}
	ErrInvalidConn        = &localError{"invalid connection", KindInterfaceError}
	ErrBusyBuffer         = &localError{"busy buffer", KindInterfaceError}
	ErrWrongState         = &localError{"wrong state for requested operation", KindInterfaceError}
	ErrNoRow              = &localError{"no row available", KindInterfaceError}
	ErrLocalInfileBlocked = &localError{"LOCAL INFILE request blocked by client policy", KindOperationalError}
	ErrCleartextPassword  = &localError{"AllowCleartextPasswords is set but no TLS connection is configured; refusing to send the password in the clear", KindInterfaceError}
)

type localError struct {
	msg  string
	kind ErrorKind
}

func (e *localError) Error() string { return e.msg }

// errGoneAway mirrors spec §7: "unexpected EOF (treated as server-error
// 2006 \"gone away\")".
func errGoneAway() *Error {
	return newServerError(2006, "", "MySQL server has gone away")
}

var errLog Logger = log.New(os.Stderr, "[mysql4go] ", log.Ldate|log.Ltime|log.Lshortfile)

// Logger is used to log conditions the caller cannot act on synchronously.
type Logger interface {
	Print(v ...interface{})
}

// SetLogger overrides the package's default stderr logger.
func SetLogger(logger Logger) error {
	if logger == nil {
		return errors.New("logger is nil")
	}
	errLog = logger
	return nil
}

// Warning is a single row of a SHOW WARNINGS result.
type Warning struct {
	Level   string
	Code    string
	Message string
}

// Warnings is an error type wrapping one or more server warnings, returned
// when Config.Strict is set and an OK packet reports warning_count > 0.
type Warnings []Warning

func (ws Warnings) Error() string {
	msg := ""
	for i, w := range ws {
		if i > 0 {
			msg += "\r\n"
		}
		msg += fmt.Sprintf("%s %s: %s", w.Level, w.Code, w.Message)
	}
	return msg
}
