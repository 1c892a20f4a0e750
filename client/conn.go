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
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/edenli/mysqlgo/internal/clientbase"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	DefaultPort = 3306
	DefaultHost = "localhost"
)

// ConnectParams are the arguments of mysql_real_connect. Socket, when set,
// wins over Host and Port.
type ConnectParams struct {
	Host     string
	User     string
	Password string
	DB       string
	Port     int
	Socket   string
}

// Config builds the protocol configuration for p. Values come back as
// text, so no time parsing is requested.
func (p ConnectParams) Config() *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.DBName = p.DB
	if p.Socket != "" {
		cfg.Net = "unix"
		cfg.Addr = p.Socket
		return cfg
	}
	host := p.Host
	if host == "" {
		host = DefaultHost
	}
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	return cfg
}

// Conn is a connection handle. The zero value is not usable; obtain one
// from Init or Library.NewConn.
type Conn struct {
	lastError

	lib    *Library
	id     uuid.UUID
	logger *slog.Logger
	tracer trace.Tracer
	info   *clientbase.ClientInfo

	addr string
	db   *sql.DB
	conn *sql.Conn

	// rows of the last query not yet claimed by StoreResult or UseResult
	pending *sql.Rows
	// a streaming result still reading from the connection
	streaming *Result
	// a statement whose rows have not been stored yet
	busy       *Stmt
	fieldCount int
	serverInfo string
}

func (c *Conn) reset(lib *Library) {
	tracer := lib.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	*c = Conn{
		lib:    lib,
		id:     uuid.New(),
		logger: lib.logger,
		tracer: tracer,
		info:   lib.info.Clone(),
	}
}

// ID identifies the handle in logs and traces.
func (c *Conn) ID() uuid.UUID { return c.id }

// Info returns the client information of the handle, including the server
// version once ServerInfo has fetched it.
func (c *Conn) Info() *clientbase.ClientInfo { return c.info }

func (c *Conn) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "mysql"),
		attribute.String("mysqlgo.conn.id", c.id.String()),
	))
	c.info.SetOTelAttributes(span)
	return ctx, span
}

func (c *Conn) fail(span trace.Span, err error) {
	c.setFrom(err, c.addr)
	span.RecordError(err)
	span.SetStatus(codes.Error, c.msg)
	c.logger.Debug("call failed", "conn", c.id, "errno", c.errno, "error", c.msg)
}

func (c *Conn) failClient(span trace.Span, errno uint16) {
	c.setClient(errno)
	span.SetStatus(codes.Error, c.msg)
}

// RealConnect connects c to the server. It returns c on success and nil on
// failure, in which case Error describes the problem. Port 0 means 3306
// and an empty host means localhost.
func (c *Conn) RealConnect(host, user, passwd, db string, port int) *Conn {
	return c.Connect(context.Background(), ConnectParams{
		Host:     host,
		User:     user,
		Password: passwd,
		DB:       db,
		Port:     port,
	})
}

// Connect is RealConnect with a context and the full parameter set.
func (c *Conn) Connect(ctx context.Context, params ConnectParams) *Conn {
	ctx, span := c.startSpan(ctx, "Conn.Connect")
	defer span.End()
	c.clear()

	if c.conn != nil {
		c.set(CRUnknownError, sqlStateGeneral, "Connection already established")
		span.SetStatus(codes.Error, c.msg)
		return nil
	}

	cfg := params.Config()
	c.addr = cfg.Addr
	span.SetAttributes(
		attribute.String("server.address", cfg.Addr),
		attribute.String("db.user", cfg.User),
		attribute.String("db.namespace", cfg.DBName),
	)

	db, err := c.lib.opener(cfg)
	if err != nil {
		c.fail(span, err)
		return nil
	}
	// one session per handle
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err == nil {
		err = conn.PingContext(ctx)
	}
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		_ = db.Close()
		c.fail(span, err)
		return nil
	}

	c.db, c.conn = db, conn
	c.lib.conns.Add(1)
	c.logger.Debug("connected", "conn", c.id, "addr", cfg.Addr, "user", cfg.User, "db", cfg.DBName)
	return c
}

// Close disconnects and releases the handle. Pending results are
// discarded; results already stored stay readable until freed.
func (c *Conn) Close() {
	if c.pending != nil {
		_ = c.pending.Close()
		c.pending = nil
	}
	if c.streaming != nil {
		c.streaming.detach()
	}
	if c.busy != nil {
		c.busy.discardPending()
	}
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	_ = c.db.Close()
	c.conn, c.db = nil, nil
	c.lib.conns.Add(-1)
	c.logger.Debug("closed", "conn", c.id)
}

// Ping checks the connection. Returns 0 on success.
func (c *Conn) Ping() int {
	ctx, span := c.startSpan(context.Background(), "Conn.Ping")
	defer span.End()
	if !c.ready(span) {
		return int(c.errno)
	}
	if err := c.conn.PingContext(ctx); err != nil {
		c.fail(span, err)
		return int(c.errno)
	}
	return 0
}

// ready clears the error state and checks the handle can take a new
// command.
func (c *Conn) ready(span trace.Span) bool {
	c.clear()
	switch {
	case c.conn == nil:
		c.failClient(span, CRServerGoneError)
		return false
	case c.pending != nil || c.streaming != nil || c.busy != nil:
		c.failClient(span, CRCommandsOutOfSync)
		return false
	}
	return true
}

// Query runs one statement. It returns 0 on success and the native error
// number otherwise. A statement returning rows leaves them pending until
// StoreResult or UseResult claims them; FieldCount tells whether there
// are any.
func (c *Conn) Query(q string) int {
	return c.QueryContext(context.Background(), q)
}

func (c *Conn) QueryContext(ctx context.Context, q string) int {
	ctx, span := c.startSpan(ctx, "Conn.Query")
	defer span.End()
	span.SetAttributes(attribute.String("db.query.text", q))
	if !c.ready(span) {
		return int(c.errno)
	}

	c.fieldCount = 0
	rows, err := c.conn.QueryContext(ctx, q)
	if err != nil {
		c.fail(span, err)
		return int(c.errno)
	}
	return c.takeRows(span, rows)
}

// takeRows leaves rows pending if they carry columns and otherwise
// drains them.
func (c *Conn) takeRows(span trace.Span, rows *sql.Rows) int {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		c.fail(span, err)
		return int(c.errno)
	}
	if len(cols) == 0 {
		err = rows.Close()
		if err == nil {
			err = rows.Err()
		}
		if err != nil {
			c.fail(span, err)
			return int(c.errno)
		}
		return 0
	}
	c.fieldCount = len(cols)
	c.pending = rows
	return 0
}

// FieldCount returns the number of columns of the last statement, 0 if it
// produced no result set.
func (c *Conn) FieldCount() int { return c.fieldCount }

// StoreResult reads the whole pending result set into memory. It returns
// nil when the last statement produced no result set, in which case Errno
// is 0, or when reading fails.
func (c *Conn) StoreResult() *Result {
	_, span := c.startSpan(context.Background(), "Conn.StoreResult")
	defer span.End()
	c.clear()
	rows := c.pending
	if rows == nil {
		return nil
	}
	c.pending = nil

	res, err := storeRows(c, rows)
	if err != nil {
		c.fail(span, err)
		return nil
	}
	span.SetAttributes(attribute.Int64("db.response.returned_rows", int64(res.NumRows())))
	return res
}

// UseResult returns the pending result set unbuffered: rows are read from
// the server as FetchRow is called and the connection stays busy until the
// result is freed.
func (c *Conn) UseResult() *Result {
	c.clear()
	rows := c.pending
	if rows == nil {
		return nil
	}
	c.pending = nil

	res, err := streamRows(c, rows)
	if err != nil {
		_, span := c.startSpan(context.Background(), "Conn.UseResult")
		c.fail(span, err)
		span.End()
		return nil
	}
	c.streaming = res
	return res
}

// SelectDB makes db the default database. Returns 0 on success.
func (c *Conn) SelectDB(db string) int {
	return c.Query("USE `" + strings.ReplaceAll(db, "`", "``") + "`")
}

// ServerInfo returns the server version string, e.g. "8.0.36-log", or ""
// on failure.
func (c *Conn) ServerInfo() string {
	if c.serverInfo != "" {
		return c.serverInfo
	}
	ctx, span := c.startSpan(context.Background(), "Conn.ServerInfo")
	defer span.End()
	if !c.ready(span) {
		return ""
	}
	var version string
	if err := c.conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		c.fail(span, err)
		return ""
	}
	c.serverInfo = version
	c.info.RegisterInfoCode(clientbase.InfoServerVersion, version)
	return version
}

// ServerVersion returns the server version as major*10000+minor*100+patch,
// 0 if unknown.
func (c *Conn) ServerVersion() uint64 {
	v, err := ParseServerVersion(c.ServerInfo())
	if err != nil {
		return 0
	}
	return v.Major*10000 + v.Minor*100 + v.Patch
}

// ParseServerVersion parses strings such as "8.0.36-0ubuntu0.22.04.1" or
// "10.11.6-MariaDB-log".
func ParseServerVersion(s string) (semver.Version, error) {
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	return semver.ParseTolerant(s)
}
