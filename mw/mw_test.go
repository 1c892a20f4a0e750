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

package mw_test

import (
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/edenli/mysqlgo/client"
	"github.com/edenli/mysqlgo/mw"
	"github.com/edenli/mysqlgo/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connect points the default library at a fresh mock and opens a handle.
func connect(t *testing.T) (*validation.MockServer, mw.MW) {
	t.Helper()
	m := validation.NewMockServer(t)
	client.Default.Configure(client.WithOpener(m.Opener()))
	t.Cleanup(func() { client.Default.Configure(client.WithOpener(client.DefaultOpener)) })

	mw.LibraryInit()
	h := mw.Init(nil)
	require.NotNil(t, h)
	require.NotNil(t, mw.RealConnect(h, "127.0.0.1", "root", "", "test", 3306), mw.Error(h))
	return m, h
}

func TestConnectClose(t *testing.T) {
	m, h := connect(t)
	assert.Equal(t, "", mw.Error(h))
	assert.Equal(t, "127.0.0.1:3306", m.LastConfig(t).Addr)
	assert.Equal(t, int64(1), client.Default.Stats().Connections)

	mw.Close(h)
	validation.AssertNoLeaks(t, client.Default)
}

func TestConnectFailure(t *testing.T) {
	m := validation.NewMockServer(t)
	m.OpenErr = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	client.Default.Configure(client.WithOpener(m.Opener()))
	defer client.Default.Configure(client.WithOpener(client.DefaultOpener))

	h := mw.Init(nil)
	assert.Nil(t, mw.RealConnect(h, "127.0.0.1", "root", "", "test", 3306))
	assert.NotEmpty(t, mw.Error(h))

	mw.Close(h)
	validation.AssertNoLeaks(t, client.Default)
}

func TestQueryError(t *testing.T) {
	m, h := connect(t)
	defer mw.Close(h)

	m.ExpectQuery("SELEC 1").WillReturnError(validation.MySQLError(1064, "42000",
		"You have an error in your SQL syntax; check the manual near 'SELEC 1' at line 1"))

	assert.NotZero(t, mw.Query(h, "SELEC 1"))
	assert.NotEmpty(t, mw.Error(h))
	assert.Nil(t, mw.StoreResult(h))
}

func TestFetchRows(t *testing.T) {
	m, h := connect(t)

	rows := m.NewRowsWithColumnDefinition(
		m.NewColumn("i").OfType("INT", int64(0)).Nullable(true),
		m.NewColumn("s").OfType("VARCHAR", "").Nullable(true),
	)
	const n = 3
	for i := range n {
		if i == 1 {
			rows.AddRow(int64(i), nil)
			continue
		}
		rows.AddRow(int64(i), "row")
	}
	m.ExpectQuery("SELECT i, s FROM __hello ORDER BY i").WillReturnRows(rows)

	require.Zero(t, mw.Query(h, "SELECT i, s FROM __hello ORDER BY i"), mw.Error(h))
	assert.Equal(t, 2, mw.FieldCount(h))

	res := mw.StoreResult(h)
	require.NotNil(t, res, mw.Error(h))
	assert.Equal(t, uint64(n), mw.NumRows(res))
	assert.Equal(t, 2, mw.NumFields(res))

	fields := mw.FetchFields(res)
	assert.Equal(t, "i", mw.FieldNameAt(fields, 0))
	assert.Equal(t, int(client.TypeLong), mw.FieldTypeAt(fields, 0))
	assert.Equal(t, "s", mw.FieldNameAt(fields, 1))
	assert.Equal(t, int(client.TypeVarString), mw.FieldTypeAt(fields, 1))

	fetched := 0
	for row := mw.FetchRow(res); row != nil; row = mw.FetchRow(res) {
		assert.Equal(t, []byte{byte('0' + fetched)}, mw.RowAt(row, 0))
		if fetched == 1 {
			assert.Nil(t, mw.RowAt(row, 1))
		} else {
			assert.Equal(t, []byte("row"), mw.RowAt(row, 1))
		}
		fetched++
	}
	assert.Equal(t, n, fetched)
	assert.Nil(t, mw.FetchRow(res))

	mw.FreeResult(res)
	mw.Close(h)
	validation.AssertNoLeaks(t, client.Default)
}

func TestNoBoundsCheck(t *testing.T) {
	m, h := connect(t)
	defer mw.Close(h)

	m.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	require.Zero(t, mw.Query(h, "SELECT 1"))
	res := mw.StoreResult(h)
	require.NotNil(t, res)
	defer mw.FreeResult(res)

	row := mw.FetchRow(res)
	require.NotNil(t, row)
	assert.Panics(t, func() { mw.RowAt(row, 1) })
	assert.Panics(t, func() { mw.FieldNameAt(mw.FetchFields(res), 1) })
}

func TestStatementWithoutResultSet(t *testing.T) {
	m, h := connect(t)
	defer mw.Close(h)

	m.ExpectQuery("INSERT INTO __hello VALUES (1, 'a')").WillReturnRows(sqlmock.NewRows(nil))
	require.Zero(t, mw.Query(h, "INSERT INTO __hello VALUES (1, 'a')"))
	assert.Equal(t, 0, mw.FieldCount(h))
	assert.Nil(t, mw.StoreResult(h))
	assert.Equal(t, "", mw.Error(h))
}

func TestThreadRegistration(t *testing.T) {
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mw.ThreadInit()
			defer mw.ThreadEnd()
		}()
	}
	wg.Wait()
	assert.Zero(t, client.Default.Stats().Threads)
}
