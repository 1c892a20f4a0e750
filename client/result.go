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
	"database/sql"
)

// Row is one row of a result set in text form. A nil column is SQL NULL.
type Row [][]byte

// Result is a result set, either buffered by StoreResult or streamed by
// UseResult.
//
// Calling Free twice, or using a Result or the Rows and Fields it returned
// after Free, is not supported.
type Result struct {
	lib    *Library
	fields []Field

	// buffered
	rows []Row
	pos  int

	// streaming
	conn    *Conn
	stream  *sql.Rows
	scan    []any
	current Row
	fetched uint64
	eof     bool

	lengths []int
	freed   bool
}

func newResult(c *Conn, rows *sql.Rows) (*Result, error) {
	fields, err := fieldsFromRows(rows)
	if err != nil {
		return nil, err
	}
	res := &Result{
		lib:    c.lib,
		fields: fields,
		scan:   make([]any, len(fields)),
	}
	return res, nil
}

func (r *Result) scanRow(rows *sql.Rows) (Row, error) {
	dest := make([]any, len(r.scan))
	for i := range r.scan {
		dest[i] = &r.scan[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	row := make(Row, len(r.scan))
	for i, v := range r.scan {
		row[i] = textValue(v)
		r.scan[i] = nil
	}
	return row, nil
}

func storeRows(c *Conn, rows *sql.Rows) (*Result, error) {
	defer rows.Close()
	res, err := newResult(c, rows)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		row, err := res.scanRow(rows)
		if err != nil {
			return nil, err
		}
		res.rows = append(res.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	res.lib.results.Add(1)
	return res, nil
}

func streamRows(c *Conn, rows *sql.Rows) (*Result, error) {
	res, err := newResult(c, rows)
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	res.conn, res.stream = c, rows
	res.lib.results.Add(1)
	return res, nil
}

// FetchRow returns the next row, or nil once all rows have been read. For
// a streamed result a nil row may also mean a read error, reported by the
// connection's ErrorMessage.
func (r *Result) FetchRow() Row {
	if r.stream == nil {
		if r.pos >= len(r.rows) {
			r.current = nil
			return nil
		}
		r.current = r.rows[r.pos]
		r.pos++
		return r.current
	}

	r.current = nil
	if r.eof {
		return nil
	}
	if !r.stream.Next() {
		r.finishStream(r.stream.Err())
		return nil
	}
	row, err := r.scanRow(r.stream)
	if err != nil {
		r.finishStream(err)
		return nil
	}
	r.fetched++
	r.current = row
	return row
}

func (r *Result) finishStream(err error) {
	r.eof = true
	if cerr := r.stream.Close(); err == nil {
		err = cerr
	}
	if r.conn == nil {
		return
	}
	if err != nil {
		r.conn.setFrom(err, r.conn.addr)
	}
	r.conn.streaming = nil
}

// detach is called when the owning connection closes under a streaming
// result.
func (r *Result) detach() {
	if !r.eof {
		r.eof = true
		_ = r.stream.Close()
	}
	r.conn.streaming = nil
	r.conn = nil
}

// FetchLengths returns the byte length of each column of the current row,
// nil if there is no current row.
func (r *Result) FetchLengths() []int {
	if r.current == nil {
		return nil
	}
	if cap(r.lengths) < len(r.current) {
		r.lengths = make([]int, len(r.current))
	}
	r.lengths = r.lengths[:len(r.current)]
	for i, col := range r.current {
		r.lengths[i] = len(col)
	}
	return r.lengths
}

// NumRows returns the number of rows of a buffered result, or the number
// fetched so far from a streamed one.
func (r *Result) NumRows() uint64 {
	if r.stream != nil {
		return r.fetched
	}
	return uint64(len(r.rows))
}

func (r *Result) NumFields() int { return len(r.fields) }

// FetchFields returns the metadata of every column. The slice belongs to
// the result.
func (r *Result) FetchFields() []Field { return r.fields }

// FetchFieldDirect returns the metadata of column i. It does not check i.
func (r *Result) FetchFieldDirect(i int) *Field { return &r.fields[i] }

// DataSeek moves a buffered result to row offset. It has no effect on a
// streamed result.
func (r *Result) DataSeek(offset uint64) {
	if r.stream != nil {
		return
	}
	r.pos = int(min(offset, uint64(len(r.rows))))
}

// EOF reports whether a streamed result has been read to the end. A
// buffered result is always complete.
func (r *Result) EOF() bool {
	return r.stream == nil || r.eof
}

// Free releases the result. For a streamed result, unread rows are
// discarded and the connection becomes usable again.
func (r *Result) Free() {
	if r.freed {
		return
	}
	r.freed = true
	if r.stream != nil && !r.eof {
		r.eof = true
		_ = r.stream.Close()
		if r.conn != nil {
			r.conn.streaming = nil
		}
	}
	r.rows, r.current, r.scan = nil, nil, nil
	r.lib.results.Add(-1)
}
