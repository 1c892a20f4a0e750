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

package client_test

import (
	"errors"
	"net"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/edenli/mysqlgo/client"
	"github.com/edenli/mysqlgo/internal/clientbase"
	"github.com/edenli/mysqlgo/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAndClose(t *testing.T) {
	m := validation.NewMockServer(t)

	conn := m.Lib.NewConn()
	require.NotNil(t, conn.RealConnect("db.example.com", "alice", "secret", "shop", 0), conn.ErrorMessage())
	assert.Equal(t, "", conn.ErrorMessage())
	assert.Equal(t, "00000", conn.SQLState())
	assert.Equal(t, int64(1), m.Lib.Stats().Connections)

	cfg := m.LastConfig(t)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db.example.com:3306", cfg.Addr)
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, "secret", cfg.Passwd)
	assert.Equal(t, "shop", cfg.DBName)

	conn.Close()
	validation.AssertNoLeaks(t, m.Lib)
}

func TestReconnectThroughSameServer(t *testing.T) {
	m := validation.NewMockServer(t)

	first := m.Connect(t)
	second := m.Connect(t)
	assert.Equal(t, int64(2), m.Lib.Stats().Connections)

	first.Close()
	m.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	require.Zero(t, second.Query("SELECT 1"), second.ErrorMessage())
	res := second.StoreResult()
	require.NotNil(t, res, second.ErrorMessage())
	res.Free()
	second.Close()

	third := m.Connect(t)
	assert.Equal(t, int64(1), m.Lib.Stats().Connections)
	third.Close()
	assert.Len(t, m.Configs(), 3)
	validation.AssertNoLeaks(t, m.Lib)
}

func TestConnectParams(t *testing.T) {
	tests := []struct {
		name   string
		params client.ConnectParams
		net    string
		addr   string
	}{
		{"defaults", client.ConnectParams{}, "tcp", "localhost:3306"},
		{"port", client.ConnectParams{Host: "10.0.0.1", Port: 3307}, "tcp", "10.0.0.1:3307"},
		{"ipv6", client.ConnectParams{Host: "::1", Port: 3306}, "tcp", "[::1]:3306"},
		{"socket", client.ConnectParams{Host: "ignored", Socket: "/var/run/mysqld/mysqld.sock"}, "unix", "/var/run/mysqld/mysqld.sock"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.params.Config()
			assert.Equal(t, tc.net, cfg.Net)
			assert.Equal(t, tc.addr, cfg.Addr)
		})
	}
}

func TestConnectRefused(t *testing.T) {
	m := validation.NewMockServer(t)
	m.OpenErr = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	conn := m.Lib.NewConn()
	require.Nil(t, conn.RealConnect("127.0.0.1", "root", "", "test", 3306))
	assert.Equal(t, uint16(client.CRConnHostError), conn.Errno())
	assert.Equal(t, "Can't connect to MySQL server on '127.0.0.1:3306' (connection refused)", conn.ErrorMessage())
	assert.Equal(t, "HY000", conn.SQLState())

	conn.Close()
	validation.AssertNoLeaks(t, m.Lib)
}

func TestConnectAccessDenied(t *testing.T) {
	m := validation.NewMockServer(t, validation.WithMonitorPings())
	m.ExpectPing().WillReturnError(
		validation.MySQLError(1045, "28000", "Access denied for user 'root'@'localhost' (using password: NO)"))

	conn := m.Lib.NewConn()
	require.Nil(t, conn.RealConnect("localhost", "root", "", "", 0))
	assert.Equal(t, uint16(1045), conn.Errno())
	assert.Equal(t, "28000", conn.SQLState())
	assert.Contains(t, conn.ErrorMessage(), "Access denied")
	validation.AssertNoLeaks(t, m.Lib)
}

func TestQueryStoreResult(t *testing.T) {
	m := validation.NewMockServer(t)
	conn := m.Connect(t)
	defer conn.Close()

	rows := m.NewRowsWithColumnDefinition(
		m.NewColumn("i").OfType("INT", int64(0)).Nullable(true),
		m.NewColumn("s").OfType("VARCHAR", "").Nullable(true),
	).AddRow(int64(1), "one").AddRow(int64(2), nil).AddRow(int64(3), "three")
	m.ExpectQuery("SELECT i, s FROM t ORDER BY i").WillReturnRows(rows)

	require.Zero(t, conn.Query("SELECT i, s FROM t ORDER BY i"), conn.ErrorMessage())
	assert.Equal(t, 2, conn.FieldCount())

	res := conn.StoreResult()
	require.NotNil(t, res, conn.ErrorMessage())
	assert.Equal(t, uint64(3), res.NumRows())
	assert.Equal(t, 2, res.NumFields())

	fields := res.FetchFields()
	require.Len(t, fields, 2)
	assert.Equal(t, "i", fields[0].Name)
	assert.Equal(t, client.TypeLong, fields[0].Type)
	assert.Equal(t, "s", fields[1].Name)
	assert.Equal(t, client.TypeVarString, fields[1].Type)

	var got []client.Row
	for row := res.FetchRow(); row != nil; row = res.FetchRow() {
		got = append(got, row)
	}
	assert.Equal(t, []client.Row{
		{[]byte("1"), []byte("one")},
		{[]byte("2"), nil},
		{[]byte("3"), []byte("three")},
	}, got)
	assert.Nil(t, res.FetchRow())

	res.DataSeek(1)
	row := res.FetchRow()
	require.NotNil(t, row)
	assert.Equal(t, []int{1, 0}, res.FetchLengths())

	res.Free()
	conn.Close()
	validation.AssertNoLeaks(t, m.Lib)
}

func TestQueryWithoutResultSet(t *testing.T) {
	m := validation.NewMockServer(t)
	conn := m.Connect(t)
	defer conn.Close()

	m.ExpectQuery("CREATE TEMPORARY TABLE t (i INT)").WillReturnRows(sqlmock.NewRows(nil))
	require.Zero(t, conn.Query("CREATE TEMPORARY TABLE t (i INT)"))
	assert.Equal(t, 0, conn.FieldCount())
	assert.Nil(t, conn.StoreResult())
	assert.Zero(t, conn.Errno())
}

func TestQueryServerError(t *testing.T) {
	m := validation.NewMockServer(t)
	conn := m.Connect(t)
	defer conn.Close()

	m.ExpectQuery("SELECT * FROM missing").
		WillReturnError(validation.MySQLError(1146, "42S02", "Table 'test.missing' doesn't exist"))

	rc := conn.Query("SELECT * FROM missing")
	assert.Equal(t, 1146, rc)
	assert.Equal(t, "Table 'test.missing' doesn't exist", conn.ErrorMessage())
	assert.Equal(t, "42S02", conn.SQLState())
	assert.Nil(t, conn.StoreResult())

	// the next successful call clears the error
	m.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	require.Zero(t, conn.Query("SELECT 1"))
	assert.Equal(t, "", conn.ErrorMessage())
	res := conn.StoreResult()
	require.NotNil(t, res)
	res.Free()
}

func TestQueryOutOfSync(t *testing.T) {
	m := validation.NewMockServer(t)
	conn := m.Connect(t)
	defer conn.Close()

	m.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	require.Zero(t, conn.Query("SELECT 1"))

	rc := conn.Query("SELECT 2")
	assert.Equal(t, client.CRCommandsOutOfSync, rc)
	assert.Equal(t, "Commands out of sync; you can't run this command now", conn.ErrorMessage())

	res := conn.StoreResult()
	require.NotNil(t, res)
	res.Free()
}

func TestQueryNotConnected(t *testing.T) {
	lib := client.NewLibrary()
	conn := lib.NewConn()
	assert.Equal(t, client.CRServerGoneError, conn.Query("SELECT 1"))
	assert.Equal(t, "MySQL server has gone away", conn.ErrorMessage())
	assert.Equal(t, "08S01", conn.SQLState())
}

func TestUseResult(t *testing.T) {
	m := validation.NewMockServer(t)
	conn := m.Connect(t)
	defer conn.Close()

	m.ExpectQuery("SELECT n FROM numbers").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)).AddRow(int64(2)))
	require.Zero(t, conn.Query("SELECT n FROM numbers"))

	res := conn.UseResult()
	require.NotNil(t, res)
	assert.False(t, res.EOF())
	assert.Equal(t, client.CRCommandsOutOfSync, conn.Query("SELECT 1"))

	assert.Equal(t, client.Row{[]byte("1")}, res.FetchRow())
	assert.Equal(t, uint64(1), res.NumRows())
	assert.Equal(t, client.Row{[]byte("2")}, res.FetchRow())
	assert.Nil(t, res.FetchRow())
	assert.True(t, res.EOF())
	assert.Equal(t, uint64(2), res.NumRows())
	res.Free()

	m.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	require.Zero(t, conn.Query("SELECT 1"), conn.ErrorMessage())
	res = conn.StoreResult()
	require.NotNil(t, res)
	res.Free()
}

func TestServerVersion(t *testing.T) {
	m := validation.NewMockServer(t)
	conn := m.Connect(t)
	defer conn.Close()

	m.ExpectQuery("SELECT VERSION()").
		WillReturnRows(sqlmock.NewRows([]string{"VERSION()"}).AddRow("8.0.36-0ubuntu0.22.04.1"))
	_, ok := conn.Info().GetInfoForInfoCode(clientbase.InfoServerVersion)
	assert.False(t, ok)

	assert.Equal(t, "8.0.36-0ubuntu0.22.04.1", conn.ServerInfo())
	assert.Equal(t, uint64(80036), conn.ServerVersion())

	v, ok := conn.Info().GetInfoForInfoCode(clientbase.InfoServerVersion)
	assert.True(t, ok)
	assert.Equal(t, "8.0.36-0ubuntu0.22.04.1", v)
	_, ok = m.Lib.Info().GetInfoForInfoCode(clientbase.InfoServerVersion)
	assert.False(t, ok)
}

func TestParseServerVersion(t *testing.T) {
	for in, want := range map[string]string{
		"8.0.36":              "8.0.36",
		"10.11.6-MariaDB-log": "10.11.6",
		"5.7":                 "5.7.0",
	} {
		v, err := client.ParseServerVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, v.String())
	}
	_, err := client.ParseServerVersion("")
	assert.Error(t, err)
}

func TestPreparedStatement(t *testing.T) {
	m := validation.NewMockServer(t)
	conn := m.Connect(t)
	defer conn.Close()

	const q = "SELECT s FROM t WHERE i = ? AND s <> '?'"
	m.ExpectPrepare(q).ExpectQuery().WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"s"}).AddRow([]byte("seven")))

	stmt := conn.StmtInit()
	require.Zero(t, stmt.Prepare(q), stmt.ErrorMessage())
	assert.Equal(t, 1, stmt.ParamCount())
	assert.Equal(t, int64(1), m.Lib.Stats().Statements)

	assert.Equal(t, client.CRParamsNotBound, stmt.Execute(t.Context()))
	assert.Equal(t, "No data supplied for parameters in prepared statement", stmt.ErrorMessage())

	require.Zero(t, stmt.Execute(t.Context(), int64(7)), stmt.ErrorMessage())
	assert.Equal(t, 1, stmt.FieldCount())
	assert.Equal(t, client.CRCommandsOutOfSync, conn.Query("SELECT 1"))

	res := stmt.StoreResult()
	require.NotNil(t, res, stmt.ErrorMessage())
	assert.Equal(t, client.Row{[]byte("seven")}, res.FetchRow())
	res.Free()

	assert.Zero(t, stmt.Close())
	conn.Close()
	validation.AssertNoLeaks(t, m.Lib)
}

func TestStatementNotPrepared(t *testing.T) {
	m := validation.NewMockServer(t)
	conn := m.Connect(t)
	defer conn.Close()

	stmt := conn.StmtInit()
	assert.Equal(t, client.CRNoPrepareStmt, stmt.Execute(t.Context()))
	assert.Equal(t, "Statement not prepared", stmt.ErrorMessage())
}

func TestThreads(t *testing.T) {
	lib := client.NewLibrary()
	lib.ThreadInit()
	assert.Equal(t, int64(1), lib.Stats().Threads)
	lib.ThreadEnd()
	validation.AssertNoLeaks(t, lib)
}

func TestClientVersion(t *testing.T) {
	assert.Equal(t, "8.0.36", client.ClientInfo())
	assert.Equal(t, uint64(80036), client.ClientVersion())
}

func TestHandlesAreNotErrors(t *testing.T) {
	conn := client.Init(nil)
	_, ok := any(conn).(error)
	assert.False(t, ok)
	_, ok = any(conn.StmtInit()).(error)
	assert.False(t, ok)
}

func TestInitReusesHandle(t *testing.T) {
	conn := client.Init(nil)
	require.NotNil(t, conn)
	id := conn.ID()
	assert.Same(t, conn, client.Init(conn))
	assert.NotEqual(t, id, conn.ID())
}
