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

// Package clientbase holds the plumbing shared by the client and mysql
// packages: build information, error construction, logging defaults and
// OpenTelemetry setup.
package clientbase

import (
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	Namespace      = "mysqlgo"
	UnknownVersion = "(unknown or development build)"
	modulePath     = "github.com/edenli/mysqlgo"
)

var (
	infoClientVersion   string
	infoProtocolVersion string
	infoArrowVersion    string
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Path == modulePath && info.Main.Version != "(devel)" {
			infoClientVersion = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.modified":
				if s.Value == "true" {
					infoClientVersion += "-dev"
				}
			}
		}
		for _, dep := range info.Deps {
			switch {
			case dep.Path == modulePath:
				infoClientVersion = dep.Version
			case dep.Path == "github.com/go-sql-driver/mysql":
				infoProtocolVersion = dep.Version
			case strings.HasPrefix(dep.Path, "github.com/apache/arrow-go/"):
				infoArrowVersion = dep.Version
			}
		}
	}
}

// InfoCode identifies a piece of client or server information.
type InfoCode uint32

const (
	InfoClientName InfoCode = iota
	InfoClientVersion
	InfoProtocolVersion
	InfoArrowVersion
	InfoServerVersion
)

const (
	otelInfoSemConv attribute.Key = Namespace + ".info."

	otelSemConvInfoClientName      attribute.Key = otelInfoSemConv + "client.name"
	otelSemConvInfoClientVersion   attribute.Key = otelInfoSemConv + "client.version"
	otelSemConvInfoProtocolVersion attribute.Key = otelInfoSemConv + "protocol.version"
	otelSemConvInfoArrowVersion    attribute.Key = otelInfoSemConv + "arrow.version"
	otelSemConvInfoServerVersion   attribute.Key = otelInfoSemConv + "server.version"
)

var otelAttrForInfoCode = map[InfoCode]attribute.Key{
	InfoClientName:      otelSemConvInfoClientName,
	InfoClientVersion:   otelSemConvInfoClientVersion,
	InfoProtocolVersion: otelSemConvInfoProtocolVersion,
	InfoArrowVersion:    otelSemConvInfoArrowVersion,
	InfoServerVersion:   otelSemConvInfoServerVersion,
}

// ClientInfo is a small registry of version strings reported by
// ClientInfo(), mysql.Version and span attributes.
type ClientInfo struct {
	name string
	info map[InfoCode]string
}

// DefaultClientInfo returns the build information known for this binary.
// Versions that cannot be determined are reported as UnknownVersion.
func DefaultClientInfo(name string) *ClientInfo {
	ci := &ClientInfo{
		name: name,
		info: map[InfoCode]string{
			InfoClientName:      fmt.Sprintf("%s %s client - Go", Namespace, name),
			InfoClientVersion:   UnknownVersion,
			InfoProtocolVersion: UnknownVersion,
			InfoArrowVersion:    UnknownVersion,
		},
	}
	if infoClientVersion != "" {
		ci.info[InfoClientVersion] = infoClientVersion
	}
	if infoProtocolVersion != "" {
		ci.info[InfoProtocolVersion] = infoProtocolVersion
	}
	if infoArrowVersion != "" {
		ci.info[InfoArrowVersion] = infoArrowVersion
	}
	return ci
}

// Clone returns a copy that can take per-connection codes such as
// InfoServerVersion without touching ci.
func (ci *ClientInfo) Clone() *ClientInfo {
	return &ClientInfo{name: ci.name, info: maps.Clone(ci.info)}
}

func (ci *ClientInfo) GetName() string { return ci.name }

func (ci *ClientInfo) InfoSupportedCodes() []InfoCode {
	codes := make([]InfoCode, 0, len(ci.info))
	for code := range ci.info {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func (ci *ClientInfo) RegisterInfoCode(code InfoCode, value string) {
	ci.info[code] = value
}

func (ci *ClientInfo) GetInfoForInfoCode(code InfoCode) (string, bool) {
	val, ok := ci.info[code]
	return val, ok
}

// Version returns the client version, or UnknownVersion.
func (ci *ClientInfo) Version() string {
	if v, ok := ci.info[InfoClientVersion]; ok {
		return v
	}
	return UnknownVersion
}

// SetOTelAttributes copies the registered information onto span.
func (ci *ClientInfo) SetOTelAttributes(span trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(ci.info))
	for _, code := range ci.InfoSupportedCodes() {
		if attr, ok := otelAttrForInfoCode[code]; ok {
			attrs = append(attrs, attr.String(ci.info[code]))
		}
	}
	span.SetAttributes(attrs...)
}

// NilLogger returns a logger that discards everything. It is the default
// for every component that accepts a *slog.Logger.
func NilLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
