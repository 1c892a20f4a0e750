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

package mysql

import (
	"github.com/edenli/mysqlgo"
	"github.com/edenli/mysqlgo/client"
	"github.com/edenli/mysqlgo/internal/clientbase"
)

var errs = &clientbase.ErrorHelper{Name: "MySQL"}

// statusForErrno classifies server (ER_*) and client (CR_*) error numbers.
func statusForErrno(errno uint16) mysqlgo.Status {
	switch errno {
	case 0:
		return mysqlgo.StatusOK
	case 1045, 1698: // ER_ACCESS_DENIED_ERROR, ER_ACCESS_DENIED_NO_PASSWORD_ERROR
		return mysqlgo.StatusUnauthenticated
	case 1044, 1142, 1143, 1227: // ER_DBACCESS_DENIED_ERROR, ER_TABLEACCESS_DENIED_ERROR, ER_COLUMNACCESS_DENIED_ERROR, ER_SPECIFIC_ACCESS_DENIED_ERROR
		return mysqlgo.StatusUnauthorized
	case 1049, 1051, 1054, 1146: // ER_BAD_DB_ERROR, ER_BAD_TABLE_ERROR, ER_BAD_FIELD_ERROR, ER_NO_SUCH_TABLE
		return mysqlgo.StatusNotFound
	case 1007, 1050: // ER_DB_CREATE_EXISTS, ER_TABLE_EXISTS_ERROR
		return mysqlgo.StatusAlreadyExists
	case 1048, 1062, 1451, 1452: // ER_BAD_NULL_ERROR, ER_DUP_ENTRY, ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
		return mysqlgo.StatusIntegrity
	case 1064, 1149, client.CRParamsNotBound: // ER_PARSE_ERROR, ER_SYNTAX_ERROR
		return mysqlgo.StatusInvalidArgument
	case 1264, 1365, 1366, 1292: // ER_WARN_DATA_OUT_OF_RANGE, ER_DIVISION_BY_ZERO, ER_TRUNCATED_WRONG_VALUE_FOR_FIELD, ER_TRUNCATED_WRONG_VALUE
		return mysqlgo.StatusInvalidData
	case 1205, 3024: // ER_LOCK_WAIT_TIMEOUT, ER_QUERY_TIMEOUT
		return mysqlgo.StatusTimeout
	case 1317: // ER_QUERY_INTERRUPTED
		return mysqlgo.StatusCancelled
	case client.CRConnectionError, client.CRConnHostError, client.CRUnknownHost,
		client.CRServerGoneError, client.CRServerLost:
		return mysqlgo.StatusIO
	case client.CRCommandsOutOfSync, client.CRNoPrepareStmt:
		return mysqlgo.StatusInvalidState
	}
	return mysqlgo.StatusUnknown
}

// nativeError is implemented by client handles carrying an error state.
type nativeError interface {
	Errno() uint16
	SQLState() string
	ErrorMessage() string
}

// toError converts the error state of h into a mysqlgo.Error, nil if the
// last call on h succeeded.
func toError(h nativeError) error {
	errno := h.Errno()
	if errno == 0 {
		return nil
	}
	return errs.VendorError(statusForErrno(errno), int32(errno), h.SQLState(), h.ErrorMessage())
}
