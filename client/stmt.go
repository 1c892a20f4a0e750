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
	"database/sql"

	"go.opentelemetry.io/otel/attribute"
)

// Stmt is a server-side prepared statement bound to a connection.
type Stmt struct {
	lastError

	conn       *Conn
	stmt       *sql.Stmt
	query      string
	paramCount int
	pending    *sql.Rows
	fieldCount int
}

// StmtInit allocates a statement handle on c.
func (c *Conn) StmtInit() *Stmt {
	return &Stmt{conn: c}
}

// Prepare prepares query on the server. Returns 0 on success. A handle
// may be prepared again; the previous statement is closed first.
func (s *Stmt) Prepare(query string) int {
	return s.PrepareContext(context.Background(), query)
}

func (s *Stmt) PrepareContext(ctx context.Context, query string) int {
	c := s.conn
	ctx, span := c.startSpan(ctx, "Stmt.Prepare")
	defer span.End()
	span.SetAttributes(attribute.String("db.query.text", query))
	s.clear()
	s.release()

	if !c.ready(span) {
		s.lastError = c.lastError
		return int(s.errno)
	}
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		c.fail(span, err)
		s.lastError = c.lastError
		return int(s.errno)
	}
	s.stmt = stmt
	s.query = query
	s.paramCount = countPlaceholders(query)
	c.lib.stmts.Add(1)
	return 0
}

// ParamCount returns the number of '?' markers of the prepared query.
func (s *Stmt) ParamCount() int { return s.paramCount }

// Execute runs the prepared statement with args bound to its markers in
// order. Returns 0 on success. Rows, if any, stay pending until
// StoreResult.
func (s *Stmt) Execute(ctx context.Context, args ...any) int {
	c := s.conn
	ctx, span := c.startSpan(ctx, "Stmt.Execute")
	defer span.End()
	s.clear()
	if s.stmt == nil {
		s.setClient(CRNoPrepareStmt)
		return int(s.errno)
	}
	if len(args) != s.paramCount {
		s.setClient(CRParamsNotBound)
		return int(s.errno)
	}
	s.discardPending()
	if !c.ready(span) {
		s.lastError = c.lastError
		return int(s.errno)
	}

	s.fieldCount = 0
	rows, err := s.stmt.QueryContext(ctx, args...)
	if err != nil {
		c.fail(span, err)
		s.lastError = c.lastError
		return int(s.errno)
	}
	if rc := c.takeRows(span, rows); rc != 0 {
		s.lastError = c.lastError
		return rc
	}
	// the rows belong to the statement, not the connection's last query
	s.pending, c.pending = c.pending, nil
	s.fieldCount = c.fieldCount
	if s.pending != nil {
		c.busy = s
	}
	return 0
}

// FieldCount returns the number of columns of the last execution.
func (s *Stmt) FieldCount() int { return s.fieldCount }

// StoreResult buffers the rows of the last execution. Returns nil when it
// produced no result set, or on error.
func (s *Stmt) StoreResult() *Result {
	s.clear()
	rows := s.pending
	if rows == nil {
		return nil
	}
	s.pending = nil
	s.conn.busy = nil
	res, err := storeRows(s.conn, rows)
	if err != nil {
		s.setFrom(err, s.conn.addr)
		return nil
	}
	return res
}

func (s *Stmt) discardPending() {
	if s.pending == nil {
		return
	}
	_ = s.pending.Close()
	s.pending = nil
	if s.conn.busy == s {
		s.conn.busy = nil
	}
}

func (s *Stmt) release() {
	s.discardPending()
	if s.stmt != nil {
		_ = s.stmt.Close()
		s.stmt = nil
		s.conn.lib.stmts.Add(-1)
	}
}

// Close deallocates the statement. Returns 0.
func (s *Stmt) Close() int {
	s.clear()
	s.release()
	return 0
}
