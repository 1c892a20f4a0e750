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

package mysql_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/edenli/mysqlgo"
	"github.com/edenli/mysqlgo/mysql"
	"github.com/edenli/mysqlgo/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMock(t *testing.T) (*validation.MockServer, *mysql.Connection) {
	t.Helper()
	m := validation.NewMockServer(t)
	conn, err := mysql.Open(context.Background(), map[string]string{
		mysqlgo.OptionKeyHost:     "127.0.0.1",
		mysqlgo.OptionKeyUsername: "root",
		mysqlgo.OptionKeyDatabase: "test",
	}, mysql.WithLibrary(m.Lib))
	require.NoError(t, err)
	t.Cleanup(func() {
		validation.CheckedClose(t, conn)
		validation.AssertNoLeaks(t, m.Lib)
	})
	return m, conn
}

func TestRecordReader(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)

	m, conn := openMock(t)
	rows := m.NewRowsWithColumnDefinition(
		m.NewColumn("i").OfType("INT", int64(0)).Nullable(true),
		m.NewColumn("s").OfType("VARCHAR", "").Nullable(true),
		m.NewColumn("ts").OfType("DATETIME", "").Nullable(true),
		m.NewColumn("d").OfType("DOUBLE", float64(0)).Nullable(true),
	)
	for i := range 5 {
		s := any(fmt.Sprintf("id%d", i))
		if i == 3 {
			s = nil
		}
		rows.AddRow(int64(i), s, fmt.Sprintf("2024-01-0%d 10:00:00", i+1), float64(i)/2)
	}
	m.ExpectQuery("SELECT i, s, ts, d FROM __hello").WillReturnRows(rows)

	cur, err := conn.Query(context.Background(), "SELECT i, s, ts, d FROM __hello")
	require.NoError(t, err)
	defer cur.Close()

	schema := cur.Schema()
	require.Equal(t, 4, schema.NumFields())
	assert.Equal(t, arrow.PrimitiveTypes.Int32, schema.Field(0).Type)
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(1).Type)
	assert.Equal(t, arrow.FixedWidthTypes.Timestamp_us, schema.Field(2).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, schema.Field(3).Type)
	typ, ok := schema.Field(0).Metadata.GetValue(mysql.MetadataKeyMySQLType)
	assert.True(t, ok)
	assert.Equal(t, "LONG", typ)

	rdr, err := cur.RecordReader(alloc, 2)
	require.NoError(t, err)
	defer rdr.Release()

	var (
		sizes []int64
		ints  []int32
	)
	for rdr.Next() {
		rec := rdr.Record()
		sizes = append(sizes, rec.NumRows())
		col := rec.Column(0).(*array.Int32)
		ints = append(ints, col.Int32Values()...)
		if col.Value(0) == 2 {
			strs := rec.Column(1).(*array.String)
			assert.Equal(t, "id2", strs.Value(0))
			assert.True(t, strs.IsNull(1))
		}
		ts := rec.Column(2).(*array.Timestamp)
		first := time.Date(2024, 1, int(col.Value(0))+1, 10, 0, 0, 0, time.UTC)
		assert.Equal(t, arrow.Timestamp(first.UnixMicro()), ts.Value(0))
	}
	require.NoError(t, rdr.Err())
	assert.Equal(t, []int64{2, 2, 1}, sizes)
	assert.Equal(t, []int32{0, 1, 2, 3, 4}, ints)
}

func TestRecordReaderNoResult(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)

	rdr, err := (&mysql.Cursor{}).RecordReader(alloc, 0)
	require.NoError(t, err)
	defer rdr.Release()
	assert.Equal(t, 0, rdr.Schema().NumFields())
	assert.False(t, rdr.Next())
}
