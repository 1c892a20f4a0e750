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

// Package mysql is the high-level MySQL API: connections opened from an
// option map or URI, prepared statements and cursors returning typed Go
// values.
//
//	conn, err := mysql.Open(ctx, map[string]string{
//		mysqlgo.OptionKeyURI: "mysql://root@127.0.0.1:3306/test",
//	})
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	cur, err := conn.Query(ctx, "SELECT i, s FROM t WHERE i > ?", 10)
//	if err != nil {
//		return err
//	}
//	defer cur.Close()
//	rows, err := cur.FetchAll()
//
// A Connection may be shared between goroutines; calls on it are
// serialised. Cursors hold fully read results and need no connection
// access once returned.
package mysql

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blang/semver/v4"
	"github.com/bluele/gcache"
	"github.com/edenli/mysqlgo"
	"github.com/edenli/mysqlgo/client"
	"github.com/edenli/mysqlgo/internal/clientbase"
)

type openConfig struct {
	lib    *client.Library
	logger *slog.Logger
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// WithLibrary opens the connection through lib instead of client.Default.
func WithLibrary(lib *client.Library) OpenOption {
	return func(cfg *openConfig) { cfg.lib = lib }
}

func WithLogger(logger *slog.Logger) OpenOption {
	return func(cfg *openConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Connection is an open session with a MySQL server.
type Connection struct {
	// serialises access to handle
	mu sync.Mutex
	// held by callers grouping several calls, see Lock
	userMu sync.Mutex

	handle *client.Conn
	logger *slog.Logger
	// statements behind Query with params
	stmts gcache.Cache
	// statements handed out by Prepare and not yet closed
	prepared map[*Statement]struct{}
	lastErr  error
	closed   bool
}

// Open connects using opts, keyed by the mysqlgo.OptionKey* constants.
// When neither host nor socket is given, [client] defaults are read from
// the defaults_file option or the standard option files.
func Open(ctx context.Context, opts map[string]string, options ...OpenOption) (*Connection, error) {
	cfg := openConfig{lib: client.Default, logger: clientbase.NilLogger()}
	for _, opt := range options {
		opt(&cfg)
	}
	co, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.lib.Init(ctx); err != nil {
		return nil, errs.Errorf(mysqlgo.StatusInternal, "library initialization failed: %s", err)
	}

	h := cfg.lib.NewConn()
	if h.Connect(ctx, co.params) == nil {
		err := toError(h)
		h.Close()
		cfg.logger.Debug("connect failed", "error", err)
		return nil, err
	}

	c := &Connection{handle: h, logger: cfg.logger, prepared: make(map[*Statement]struct{})}
	c.stmts = gcache.New(co.cacheSize).LRU().
		LoaderFunc(func(key any) (any, error) {
			return c.prepare(context.Background(), key.(string))
		}).
		EvictedFunc(func(_, value any) {
			value.(*Statement).release()
		}).
		Build()
	c.logger.Debug("connection opened", "conn", h.ID(), "user", co.params.User, "db", co.params.DB)
	return c, nil
}

// OpenURI is Open with only the uri option.
func OpenURI(ctx context.Context, uri string, options ...OpenOption) (*Connection, error) {
	return Open(ctx, map[string]string{mysqlgo.OptionKeyURI: uri}, options...)
}

// Lock and Unlock let callers make a sequence of calls without other
// goroutines interleaving their own. The connection's methods do not take
// this lock.
func (c *Connection) Lock() { c.userMu.Lock() }

func (c *Connection) Unlock() { c.userMu.Unlock() }

// LastError returns the error of the most recent call, nil if it
// succeeded.
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// record keeps err as the last error and returns it.
func (c *Connection) record(err error) error {
	c.lastErr = err
	return err
}

func (c *Connection) checkOpen() error {
	if c.closed {
		return c.record(errs.Errorf(mysqlgo.StatusInvalidState, "connection is closed"))
	}
	return nil
}

func (c *Connection) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.handle.Ping()
	return c.record(toError(c.handle))
}

// ServerVersion returns the server's version, with any distribution
// suffix dropped.
func (c *Connection) ServerVersion() (semver.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return semver.Version{}, err
	}
	info := c.handle.ServerInfo()
	if err := c.record(toError(c.handle)); err != nil {
		return semver.Version{}, err
	}
	v, err := client.ParseServerVersion(info)
	if err != nil {
		return semver.Version{}, c.record(errs.Errorf(mysqlgo.StatusInvalidData,
			"unrecognized server version '%s': %s", info, err))
	}
	return v, nil
}

// Prepare prepares query on the server. The caller closes the returned
// statement.
func (c *Connection) Prepare(ctx context.Context, query string) (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	stmt, err := c.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	c.prepared[stmt] = struct{}{}
	return stmt, nil
}

func (c *Connection) prepare(ctx context.Context, query string) (*Statement, error) {
	stmt := c.handle.StmtInit()
	if stmt.PrepareContext(ctx, query) != 0 {
		return nil, c.record(toError(stmt))
	}
	c.lastErr = nil
	return &Statement{conn: c, stmt: stmt, sql: query}, nil
}

// Execute runs stmt with params bound to its markers in order.
func (c *Connection) Execute(ctx context.Context, stmt *Statement, params ...any) (*Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.execute(ctx, stmt, params)
}

func (c *Connection) execute(ctx context.Context, stmt *Statement, params []any) (*Cursor, error) {
	if stmt.conn != c || stmt.stmt == nil {
		return nil, c.record(errs.Errorf(mysqlgo.StatusInvalidArgument, "statement is closed or belongs to another connection"))
	}
	if stmt.stmt.Execute(ctx, params...) != 0 {
		return nil, c.record(toError(stmt.stmt))
	}
	cur := &Cursor{conn: c}
	if stmt.stmt.FieldCount() > 0 {
		res := stmt.stmt.StoreResult()
		if res == nil {
			return nil, c.record(toError(stmt.stmt))
		}
		cur.setResult(res)
	}
	c.lastErr = nil
	return cur, nil
}

// Query runs query. Without params it is sent as is; with params it is
// prepared once, cached and executed with params bound.
func (c *Connection) Query(ctx context.Context, query string, params ...any) (*Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return c.query(ctx, query)
	}

	v, err := c.stmts.Get(query)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, v.(*Statement), params)
}

func (c *Connection) query(ctx context.Context, query string) (*Cursor, error) {
	c.logger.Debug("query", "conn", c.handle.ID(), "sql", query)
	if c.handle.QueryContext(ctx, query) != 0 {
		return nil, c.record(toError(c.handle))
	}
	cur := &Cursor{conn: c}
	if c.handle.FieldCount() > 0 {
		res := c.handle.StoreResult()
		if res == nil {
			return nil, c.record(toError(c.handle))
		}
		cur.setResult(res)
	}
	c.lastErr = nil
	return cur, nil
}

// Cursor returns an empty cursor on c, ready for Cursor.Execute.
func (c *Connection) Cursor() *Cursor {
	return &Cursor{conn: c}
}

// Close closes prepared and cached statements, then the session. Closing
// twice is an error.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errs.Errorf(mysqlgo.StatusInvalidState, "connection already closed")
	}
	c.closed = true
	for stmt := range c.prepared {
		stmt.release()
	}
	clear(c.prepared)
	for _, v := range c.stmts.GetALL(false) {
		v.(*Statement).release()
	}
	c.stmts.Purge()
	c.handle.Close()
	c.logger.Debug("connection closed", "conn", c.handle.ID())
	return nil
}

// Version reports the versions of the client library and its
// dependencies.
func Version() map[string]string {
	return versions(clientbase.DefaultClientInfo("MySQL"))
}

// Version is the package-level Version plus, under "server", the server
// version once ServerVersion has been called.
func (c *Connection) Version() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return versions(c.handle.Info())
}

func versions(info *clientbase.ClientInfo) map[string]string {
	ver := map[string]string{"client": client.ClientInfo()}
	for key, code := range map[string]clientbase.InfoCode{
		"mysqlgo": clientbase.InfoClientVersion,
		"driver":  clientbase.InfoProtocolVersion,
		"server":  clientbase.InfoServerVersion,
	} {
		if v, ok := info.GetInfoForInfoCode(code); ok {
			ver[key] = v
		}
	}
	return ver
}
