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

// Command mysqlgo-demo creates a temporary table on a MySQL server, fills
// it from several goroutines sharing one connection and prints it back.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"runtime"
	"strconv"

	"github.com/edenli/mysqlgo"
	"github.com/edenli/mysqlgo/mysql"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

type options struct {
	Host     string `long:"host" description:"server host" default:"127.0.0.1"`
	Port     int    `long:"port" description:"server port" default:"3306"`
	User     string `short:"u" long:"user" description:"user name" default:"root"`
	Pass     string `short:"p" long:"pass" description:"password"`
	Database string `short:"D" long:"database" description:"database to use" default:"test"`
	Rows     int    `short:"n" long:"rows" description:"rows to insert" default:"100"`
	Workers  int    `short:"w" long:"workers" description:"concurrent inserters (default: number of CPUs)"`
	Verbose  bool   `short:"v" long:"verbose" description:"debug logging"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Name = "mysqlgo-demo"
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		NoColor: runtime.GOOS == "windows",
		Level:   level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	conn, err := mysql.Open(ctx, map[string]string{
		mysqlgo.OptionKeyHost:     opts.Host,
		mysqlgo.OptionKeyPort:     strconv.Itoa(opts.Port),
		mysqlgo.OptionKeyUsername: opts.User,
		mysqlgo.OptionKeyPassword: opts.Pass,
		mysqlgo.OptionKeyDatabase: opts.Database,
	}, mysql.WithLogger(logger))
	if err != nil {
		return err
	}
	defer conn.Close()

	if v, err := conn.ServerVersion(); err == nil {
		logger.Info("connected", "server", v.String(), "client", mysql.Version()["client"])
	}

	cur, err := conn.Query(ctx, "CREATE TEMPORARY TABLE __hello (i INT, s VARCHAR(255))")
	if err != nil {
		return err
	}
	cur.Close()

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for range opts.Rows {
		g.Go(func() error {
			cur, err := conn.Query(gctx, "INSERT INTO __hello VALUES (?, ?)", rand.IntN(1000), uuid.NewString())
			if err != nil {
				return err
			}
			return cur.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	logger.Debug("rows inserted", "rows", opts.Rows, "workers", workers)

	cur, err = conn.Query(ctx, "SELECT i, s FROM __hello ORDER BY i, s")
	if err != nil {
		return err
	}
	defer cur.Close()
	for res := range cur.Iter(ctx) {
		if err := res.Error(); err != nil {
			return err
		}
		row := res.Data()
		fmt.Printf("%v\t%v\n", row[0], row[1])
	}
	return ctx.Err()
}
