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
)

// Statement is a prepared statement obtained from Connection.Prepare.
type Statement struct {
	conn *Connection
	stmt *client.Stmt
	sql  string
}

func (s *Statement) SQL() string { return s.sql }

// ParamCount returns the number of '?' markers in the statement.
func (s *Statement) ParamCount() int {
	if s.stmt == nil {
		return 0
	}
	return s.stmt.ParamCount()
}

// Close deallocates the statement on the server.
func (s *Statement) Close() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.stmt == nil {
		return errs.Errorf(mysqlgo.StatusInvalidState, "statement already closed")
	}
	delete(s.conn.prepared, s)
	s.release()
	return nil
}

// release requires the connection lock.
func (s *Statement) release() {
	if s.stmt != nil {
		s.stmt.Close()
		s.stmt = nil
	}
}
