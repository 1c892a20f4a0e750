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

// Package validation provides helpers for testing code built on the
// client library without a MySQL server: a sqlmock-backed server, leak
// checks and close assertions.
package validation

import (
	"database/sql"
	"io"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/edenli/mysqlgo/client"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type mockConfig struct {
	monitorPings bool
	libOpts      []client.Option
}

type MockOption func(*mockConfig)

// WithMonitorPings makes pings expectations, so ExpectPing can fail a
// connect.
func WithMonitorPings() MockOption {
	return func(cfg *mockConfig) { cfg.monitorPings = true }
}

// WithLibraryOptions passes opts to the library under test.
func WithLibraryOptions(opts ...client.Option) MockOption {
	return func(cfg *mockConfig) { cfg.libOpts = append(cfg.libOpts, opts...) }
}

// MockServer is a sqlmock standing in for a MySQL server. Queries are
// matched exactly.
type MockServer struct {
	sqlmock.Sqlmock

	DB  *sql.DB
	Lib *client.Library

	// OpenErr, when set, is returned to the next connection attempt.
	OpenErr error

	dsn     string
	mu      sync.Mutex
	configs []*mysql.Config
}

// NewMockServer creates a library whose connections all reach the same
// mock. Every connection gets its own *sql.DB, so closing one leaves the
// others and later connects working. Unmet expectations fail t at cleanup.
func NewMockServer(t *testing.T, opts ...MockOption) *MockServer {
	t.Helper()
	var cfg mockConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		db   *sql.DB
		mock sqlmock.Sqlmock
		err  error
	)
	// DB holds a connection to the mock for as long as the server lives,
	// which keeps dsn registered while per-connection handles come and go
	dsn := "mysqlgo-" + uuid.NewString()
	matcher := sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)
	if cfg.monitorPings {
		db, mock, err = sqlmock.NewWithDSN(dsn, matcher, sqlmock.MonitorPingsOption(true))
	} else {
		db, mock, err = sqlmock.NewWithDSN(dsn, matcher)
	}
	require.NoError(t, err)

	m := &MockServer{Sqlmock: mock, DB: db, dsn: dsn}
	libOpts := append([]client.Option{
		client.WithOpener(m.open),
		client.WithTracer(noop.NewTracerProvider().Tracer("")),
	}, cfg.libOpts...)
	m.Lib = client.NewLibrary(libOpts...)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return m
}

func (m *MockServer) open(cfg *mysql.Config) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = append(m.configs, cfg)
	if err := m.OpenErr; err != nil {
		m.OpenErr = nil
		return nil, err
	}
	return sql.Open("sqlmock", m.dsn)
}

// Opener returns the function connecting to the mock, for libraries
// created elsewhere such as client.Default.
func (m *MockServer) Opener() client.Opener { return m.open }

// Configs returns the configuration of every connection attempt so far.
func (m *MockServer) Configs() []*mysql.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mysql.Config(nil), m.configs...)
}

// LastConfig returns the configuration of the latest connection attempt.
func (m *MockServer) LastConfig(t *testing.T) *mysql.Config {
	t.Helper()
	configs := m.Configs()
	require.NotEmpty(t, configs)
	return configs[len(configs)-1]
}

// Connect opens a handle against the mock and fails t if that does not
// work.
func (m *MockServer) Connect(t *testing.T) *client.Conn {
	t.Helper()
	conn := m.Lib.NewConn()
	require.NotNil(t, conn.RealConnect("127.0.0.1", "root", "", "test", 3306), conn.ErrorMessage())
	return conn
}

// AssertNoLeaks fails t if lib still has open handles or registered
// threads.
func AssertNoLeaks(t *testing.T, lib *client.Library) {
	t.Helper()
	assert.Equal(t, client.Stats{}, lib.Stats())
}

// CheckedClose closes c and fails t on error.
func CheckedClose(t *testing.T, c io.Closer) {
	t.Helper()
	assert.NoError(t, c.Close())
}

// MySQLError builds a server error as the protocol library reports it.
func MySQLError(number uint16, sqlState, msg string) *mysql.MySQLError {
	err := &mysql.MySQLError{Number: number, Message: msg}
	copy(err.SQLState[:], sqlState)
	return err
}
