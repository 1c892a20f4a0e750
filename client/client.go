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

// Package client is a MySQL client library shaped after the MySQL C API.
//
// A Library holds process-wide state. Conn is a connection handle, Result a
// result set, Row one row of text values and Field the metadata of a column.
// Handles are not safe for concurrent use; goroutines that use them should
// call ThreadInit first and ThreadEnd when done.
//
// Failures are reported the way the C API reports them: calls return a
// nil handle or a nonzero status and the handle keeps the native error
// number, SQLSTATE and message, available from Errno, SQLState and
// ErrorMessage.
//
//	client.LibraryInit()
//	conn := client.Init(nil)
//	if conn.RealConnect("127.0.0.1", "root", "", "test", 3306) == nil {
//		log.Fatal(conn.ErrorMessage())
//	}
//	defer conn.Close()
//	if conn.Query("SELECT 1") != 0 {
//		log.Fatal(conn.ErrorMessage())
//	}
//	res := conn.StoreResult()
//	defer res.Free()
//	for row := res.FetchRow(); row != nil; row = res.FetchRow() {
//		fmt.Println(string(row[0]))
//	}
package client

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/edenli/mysqlgo/internal/clientbase"
	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/trace"
)

// Version of the C API this library mirrors, reported by ClientInfo.
const (
	versionMajor = 8
	versionMinor = 0
	versionPatch = 36
)

// Opener turns a protocol configuration into a database handle. Tests
// replace it to talk to a fake server.
type Opener func(cfg *mysql.Config) (*sql.DB, error)

// DefaultOpener opens cfg with the go-sql-driver connector.
func DefaultOpener(cfg *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// Option configures a Library.
type Option func(*Library)

func WithOpener(opener Opener) Option {
	return func(l *Library) {
		if opener != nil {
			l.opener = opener
		}
	}
}

// WithLogger routes library logging to logger, and protocol logging too
// when applied to Default. A nil logger discards.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		if logger == nil {
			logger = clientbase.NilLogger()
		}
		l.logger = logger
	}
}

// WithTracer overrides the tracer Init would build from
// OTEL_TRACES_EXPORTER.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Library) {
		l.tracer = tracer
	}
}

// Stats counts live handles and registered threads. All zero after every
// handle has been closed or freed.
type Stats struct {
	Connections int64
	Results     int64
	Statements  int64
	Threads     int64
}

// Library is the library-wide state shared by the connections it creates.
type Library struct {
	mu          sync.Mutex
	initialized bool
	shutdown    clientbase.ShutdownFunc

	opener Opener
	logger *slog.Logger
	tracer trace.Tracer
	info   *clientbase.ClientInfo
	errs   clientbase.ErrorHelper

	conns   atomic.Int64
	results atomic.Int64
	stmts   atomic.Int64
	threads atomic.Int64
}

// Default is the library used by the package-level functions.
var Default = NewLibrary()

func NewLibrary(opts ...Option) *Library {
	l := &Library{
		opener: DefaultOpener,
		logger: clientbase.NilLogger(),
		info:   clientbase.DefaultClientInfo("MySQL"),
		errs:   clientbase.ErrorHelper{Name: "MySQL"},
	}
	l.Configure(opts...)
	return l
}

// Configure applies opts. Connections already open keep the settings they
// were created with.
func (l *Library) Configure(opts ...Option) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, opt := range opts {
		opt(l)
	}
}

// Init performs library-wide initialisation. Only the first call does any
// work; later calls return nil. Logging from the protocol library itself
// goes to Default's logger whichever library is initialised.
func (l *Library) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return nil
	}

	// the protocol library has a single process-wide logger
	if l == Default {
		if err := setProtocolLogger(protocolLogger{l.logger}); err != nil {
			return err
		}
	}
	if l.tracer == nil {
		tracer, shutdown, err := clientbase.NewTracer(ctx, l.info, &l.errs)
		if err != nil {
			return err
		}
		l.tracer, l.shutdown = tracer, shutdown
	}
	l.initialized = true
	l.logger.Debug("library initialized", "client", l.info.Version())
	return nil
}

// End flushes tracing and returns the library to its uninitialised state.
func (l *Library) End(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return nil
	}
	l.initialized = false
	if l.shutdown == nil {
		return nil
	}
	err := l.shutdown(ctx)
	l.shutdown, l.tracer = nil, nil
	return err
}

func (l *Library) ensureInit() {
	if err := l.Init(context.Background()); err != nil {
		l.logger.Warn("library initialization failed", "error", err)
	}
}

// ThreadInit registers the calling goroutine with the library and wires it
// to its current OS thread. Every ThreadInit must be paired with ThreadEnd
// on the same goroutine.
func (l *Library) ThreadInit() {
	runtime.LockOSThread()
	l.threads.Add(1)
}

// ThreadEnd releases what ThreadInit set up.
func (l *Library) ThreadEnd() {
	l.threads.Add(-1)
	runtime.UnlockOSThread()
}

func (l *Library) Stats() Stats {
	return Stats{
		Connections: l.conns.Load(),
		Results:     l.results.Load(),
		Statements:  l.stmts.Load(),
		Threads:     l.threads.Load(),
	}
}

func (l *Library) Logger() *slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger
}

func (l *Library) Info() *clientbase.ClientInfo { return l.info }

// NewConn allocates an unconnected handle bound to l.
func (l *Library) NewConn() *Conn {
	l.ensureInit()
	c := &Conn{}
	c.reset(l)
	return c
}

func LibraryInit() error { return Default.Init(context.Background()) }

func LibraryEnd() error { return Default.End(context.Background()) }

func ThreadInit() { Default.ThreadInit() }

func ThreadEnd() { Default.ThreadEnd() }

// Init prepares c for RealConnect. A nil c allocates a new handle bound to
// Default; otherwise c is reset in place, keeping its library.
func Init(c *Conn) *Conn {
	if c == nil {
		return Default.NewConn()
	}
	lib := c.lib
	if lib == nil {
		lib = Default
	}
	lib.ensureInit()
	c.reset(lib)
	return c
}

// ClientInfo returns the client version string, e.g. "8.0.36".
func ClientInfo() string {
	return formatVersion(versionMajor, versionMinor, versionPatch)
}

// ClientVersion returns the client version as major*10000+minor*100+patch.
func ClientVersion() uint64 {
	return versionMajor*10000 + versionMinor*100 + versionPatch
}

var setProtocolLogger = mysql.SetLogger

type protocolLogger struct {
	logger *slog.Logger
}

func (p protocolLogger) Print(v ...any) {
	p.logger.Error("protocol", "message", fmt.Sprint(v...))
}
