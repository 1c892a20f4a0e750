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
	"context"
	"fmt"

	"github.com/edenli/mysqlgo"
	"github.com/edenli/mysqlgo/client"
)

// Cursor walks the result of one statement.
type Cursor struct {
	conn   *Connection
	res    *client.Result
	fields []client.Field
	cols   []Column
}

func (c *Cursor) setResult(res *client.Result) {
	c.res = res
	c.fields = res.FetchFields()
	c.cols = columnsOf(c.fields)
}

// Execute formats query with fmt.Sprintf and runs it, replacing the
// cursor's current result. String and []byte params printed with %q are
// escaped and single-quoted for use as SQL literals. Without params query
// is sent as is.
func (c *Cursor) Execute(ctx context.Context, query string, params ...any) error {
	if len(params) > 0 {
		query = fmt.Sprintf(query, literals(params)...)
	}
	next, err := c.conn.Query(ctx, query)
	if err != nil {
		return err
	}
	c.Close()
	*c = *next
	return nil
}

func literals(params []any) []any {
	args := make([]any, len(params))
	for i, p := range params {
		switch p := p.(type) {
		case string:
			args[i] = literal(p)
		case []byte:
			args[i] = literal(p)
		default:
			args[i] = p
		}
	}
	return args
}

// literal formats as the raw text, except for %q which produces an escaped
// SQL string literal.
type literal string

func (l literal) Format(f fmt.State, verb rune) {
	if verb == 'q' {
		fmt.Fprintf(f, "'%s'", client.EscapeString(string(l)))
		return
	}
	fmt.Fprint(f, string(l))
}

// Description returns the columns of the result, nil if the statement
// produced none.
func (c *Cursor) Description() []Column { return c.cols }

// RowCount returns the number of rows in the result, -1 if the statement
// produced no result set.
func (c *Cursor) RowCount() int64 {
	if c.res == nil {
		return -1
	}
	return int64(c.res.NumRows())
}

// MoreResults reports whether another result set follows. Multiple result
// sets are not supported, so it is always false.
func (c *Cursor) MoreResults() bool { return false }

// FetchOne returns the next row, or nil after the last.
func (c *Cursor) FetchOne() ([]any, error) {
	if c.res == nil {
		return nil, nil
	}
	row := c.res.FetchRow()
	if row == nil {
		return nil, nil
	}
	return decodeRow(c.fields, row)
}

// FetchMany returns up to count rows.
func (c *Cursor) FetchMany(count int) ([][]any, error) {
	var rows [][]any
	for range count {
		row, err := c.FetchOne()
		if err != nil {
			return rows, err
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchAll returns every remaining row.
func (c *Cursor) FetchAll() ([][]any, error) {
	var rows [][]any
	for {
		row, err := c.FetchOne()
		if err != nil || row == nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// Result is one item produced by Iter.
type Result struct {
	data []any
	err  error
}

func (r Result) Data() []any  { return r.data }
func (r Result) Error() error { return r.err }

// Iter streams the remaining rows on a channel that is closed after the
// last row, after the first error, or when ctx is done.
func (c *Cursor) Iter(ctx context.Context) <-chan Result {
	ch := make(chan Result)
	go func() {
		defer close(ch)
		for ctx.Err() == nil {
			row, err := c.FetchOne()
			if row == nil && err == nil {
				return
			}
			select {
			case ch <- Result{data: row, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// Close frees the result. Closing a cursor twice is an error.
func (c *Cursor) Close() error {
	if c.res == nil {
		if c.cols != nil {
			return errs.Errorf(mysqlgo.StatusInvalidState, "cursor already closed")
		}
		return nil
	}
	c.res.Free()
	c.res = nil
	return nil
}
