// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package client

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
)

// Client error numbers, as in MySQL's errmsg.h.
const (
	CRUnknownError      = 2000
	CRConnectionError   = 2002
	CRConnHostError     = 2003
	CRUnknownHost       = 2005
	CRServerGoneError   = 2006
	CRServerLost        = 2013
	CRCommandsOutOfSync = 2014
	CRNoPrepareStmt     = 2030
	CRParamsNotBound    = 2031
	CRNoResultSet       = 2053
)

const (
	sqlStateNone    = "00000"
	sqlStateGeneral = "HY000"
	sqlStateConn    = "08S01"
)

var clientMessages = map[uint16]string{
	CRUnknownError:      "Unknown MySQL error",
	CRServerGoneError:   "MySQL server has gone away",
	CRServerLost:        "Lost connection to MySQL server during query",
	CRCommandsOutOfSync: "Commands out of sync; you can't run this command now",
	CRNoPrepareStmt:     "Statement not prepared",
	CRParamsNotBound:    "No data supplied for parameters in prepared statement",
	CRNoResultSet:       "Attempt to read a row while there is no result set associated with the statement",
}

// lastError is the error state carried by connection and statement
// handles. The zero value means no error.
type lastError struct {
	errno    uint16
	sqlState string
	msg      string
}

func (e *lastError) clear() { *e = lastError{} }

func (e *lastError) set(errno uint16, sqlState, msg string) {
	e.errno, e.sqlState, e.msg = errno, sqlState, msg
}

func (e *lastError) setClient(errno uint16, args ...any) {
	msg := clientMessages[errno]
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	state := sqlStateGeneral
	switch errno {
	case CRServerGoneError, CRServerLost:
		state = sqlStateConn
	}
	e.set(errno, state, msg)
}

// setFrom records err. Server errors keep their number, SQLSTATE and
// text; everything else is classified into a client error number.
func (e *lastError) setFrom(err error, addr string) {
	var (
		myErr  *mysql.MySQLError
		dnsErr *net.DNSError
		opErr  *net.OpError
	)
	switch {
	case errors.As(err, &myErr):
		state := string(myErr.SQLState[:])
		if myErr.SQLState[0] == 0 {
			state = sqlStateGeneral
		}
		e.set(myErr.Number, state, myErr.Message)
	case errors.Is(err, mysql.ErrInvalidConn), errors.Is(err, driver.ErrBadConn):
		e.setClient(CRServerGoneError)
	case errors.As(err, &dnsErr):
		e.set(CRUnknownHost, sqlStateGeneral,
			fmt.Sprintf("Unknown MySQL server host '%s' (%v)", dnsErr.Name, dnsErr.Err))
	case errors.As(err, &opErr) && opErr.Op == "dial":
		if opErr.Net == "unix" {
			e.set(CRConnectionError, sqlStateGeneral,
				fmt.Sprintf("Can't connect to local MySQL server through socket '%s' (%v)", addr, opErr.Err))
		} else {
			e.set(CRConnHostError, sqlStateGeneral,
				fmt.Sprintf("Can't connect to MySQL server on '%s' (%v)", addr, opErr.Err))
		}
	case errors.As(err, &opErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		e.set(CRServerLost, sqlStateConn, fmt.Sprintf("%s (%v)", clientMessages[CRServerLost], err))
	default:
		e.set(CRUnknownError, sqlStateGeneral, err.Error())
	}
}

func (e *lastError) Errno() uint16 { return e.errno }

// ErrorMessage returns the message of the last failed call, or "" if it
// succeeded. Handles do not implement error.
func (e *lastError) ErrorMessage() string { return e.msg }

// SQLState returns the SQLSTATE of the last call, "00000" on success.
func (e *lastError) SQLState() string {
	if e.errno == 0 {
		return sqlStateNone
	}
	return e.sqlState
}
