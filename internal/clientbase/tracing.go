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

package clientbase

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/edenli/mysqlgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
)

// EnvTracesExporter selects the span exporter: none, otlp, console or file.
const EnvTracesExporter = "OTEL_TRACES_EXPORTER"

type TraceExporterType int

const (
	TraceExporterNone TraceExporterType = iota
	TraceExporterOtlp
	TraceExporterConsole
	TraceExporterFile
)

var traceExporterNames = map[string]TraceExporterType{
	"none":    TraceExporterNone,
	"otlp":    TraceExporterOtlp,
	"console": TraceExporterConsole,
	"file":    TraceExporterFile,
}

func (te TraceExporterType) String() string {
	return [...]string{"none", "otlp", "console", "file"}[te]
}

const (
	MessageTracesExporterUnknown = "Unknown " + EnvTracesExporter + " option"
	MessageNoTracesExporters     = "No trace exporters added"
)

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// NewTracer builds the tracer named name according to OTEL_TRACES_EXPORTER.
// With the variable unset the global otel tracer is returned and shutdown
// is a no-op.
func NewTracer(ctx context.Context, info *ClientInfo, helper *ErrorHelper) (trace.Tracer, ShutdownFunc, error) {
	return newTracerFor(ctx, os.Getenv(EnvTracesExporter), info, helper)
}

func newTracerFor(ctx context.Context, exporterName string, info *ClientInfo, helper *ErrorHelper) (trace.Tracer, ShutdownFunc, error) {
	qualifiedName := Namespace + "." + info.GetName()
	if exporterName == "" {
		return otel.Tracer(qualifiedName), noopShutdown, nil
	}

	exporters, exporterType, err := getExporters(ctx, exporterName, info.GetName(), helper)
	if err != nil {
		return nil, nil, err
	}
	if exporterType == TraceExporterNone {
		return otel.Tracer(qualifiedName), noopShutdown, nil
	}
	if len(exporters) < 1 {
		return nil, nil, helper.Errorf(mysqlgo.StatusInvalidState, "%s '%s'",
			MessageNoTracesExporters, exporterType.String())
	}

	tracerProvider, err := newTracerProvider(exporters...)
	if err != nil {
		return nil, nil, err
	}
	tracer := tracerProvider.Tracer(
		qualifiedName,
		trace.WithInstrumentationVersion(info.Version()),
		trace.WithSchemaURL(semconv.SchemaURL),
	)
	return tracer, tracerProvider.Shutdown, nil
}

func getExporters(
	ctx context.Context,
	exporterName string,
	name string,
	helper *ErrorHelper,
) (exporters []sdktrace.SpanExporter, exporterType TraceExporterType, err error) {
	var exporter sdktrace.SpanExporter
	exporterType, ok := tryParseTraceExporterType(exporterName)
	if !ok {
		err = helper.Errorf(mysqlgo.StatusInvalidArgument, "%s '%s'",
			MessageTracesExporterUnknown, exporterName)
		return
	}
	switch exporterType {
	case TraceExporterNone:
	case TraceExporterConsole:
		exporter, err = stdouttrace.New()
		if err != nil {
			return
		}
		exporters = append(exporters, exporter)
	case TraceExporterOtlp:
		exporters, err = newOtlpTraceExporters(ctx)
	case TraceExporterFile:
		exporter, err = newFileExporter(name)
		if err != nil {
			return
		}
		exporters = append(exporters, exporter)
	}
	return
}

func tryParseTraceExporterType(value string) (TraceExporterType, bool) {
	te, ok := traceExporterNames[strings.ToLower(strings.TrimSpace(value))]
	return te, ok
}

func newOtlpTraceExporters(ctx context.Context) ([]sdktrace.SpanExporter, error) {
	// Endpoints, headers and protocols come from the standard OTEL_EXPORTER_OTLP_* variables.
	grpcExporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
		}),
	)
	if err != nil {
		return nil, err
	}
	httpExporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
		}),
	)
	if err != nil {
		return nil, err
	}
	return []sdktrace.SpanExporter{grpcExporter, httpExporter}, nil
}

func newFileExporter(name string) (*stdouttrace.Exporter, error) {
	fileWriter, err := NewRotatingFileWriter(WithLogNamePrefix(strings.ToLower(Namespace + "." + name)))
	if err != nil {
		return nil, err
	}
	return stdouttrace.New(stdouttrace.WithWriter(fileWriter))
}

func newTracerProvider(exporters ...sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	tracerResource, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(Namespace),
		),
	)
	if err != nil {
		if !errors.Is(err, resource.ErrSchemaURLConflict) {
			return nil, err
		}
		// conflicting schema URLs: use ours alone
		tracerResource = resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(Namespace),
		)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(tracerResource),
	}
	for _, exporter := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}
