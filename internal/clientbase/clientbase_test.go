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
	"testing"

	"github.com/edenli/mysqlgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHelper(t *testing.T) {
	helper := ErrorHelper{Name: "MySQL"}

	err := helper.Errorf(mysqlgo.StatusNotImplemented, "%s is not supported", "LOAD DATA")
	assert.Equal(t, "Not Implemented: [MySQL] LOAD DATA is not supported", err.Error())

	err = helper.VendorError(mysqlgo.StatusNotFound, 1146, "42S02", "Table 'test.t' doesn't exist")
	var myErr mysqlgo.Error
	require.True(t, errors.As(err, &myErr))
	assert.Equal(t, int32(1146), myErr.VendorCode)
	assert.Equal(t, "42S02", string(myErr.SqlState[:]))
	assert.Equal(t, "Not Found: [MySQL] Table 'test.t' doesn't exist (42S02)", err.Error())
}

func TestClientInfo(t *testing.T) {
	info := DefaultClientInfo("MySQL")
	assert.Equal(t, "MySQL", info.GetName())

	name, ok := info.GetInfoForInfoCode(InfoClientName)
	require.True(t, ok)
	assert.Equal(t, "mysqlgo MySQL client - Go", name)

	_, ok = info.GetInfoForInfoCode(InfoServerVersion)
	assert.False(t, ok)
	perConn := info.Clone()
	perConn.RegisterInfoCode(InfoServerVersion, "10.11.6-MariaDB")
	_, ok = info.GetInfoForInfoCode(InfoServerVersion)
	assert.False(t, ok)
	info.RegisterInfoCode(InfoServerVersion, "8.0.36")
	v, _ := perConn.GetInfoForInfoCode(InfoServerVersion)
	assert.Equal(t, "10.11.6-MariaDB", v)

	assert.Equal(t, []InfoCode{
		InfoClientName, InfoClientVersion, InfoProtocolVersion, InfoArrowVersion, InfoServerVersion,
	}, info.InfoSupportedCodes())
	assert.NotEmpty(t, info.Version())
}

func TestNewTracer(t *testing.T) {
	ctx := context.Background()
	info := DefaultClientInfo("MySQL")
	helper := &ErrorHelper{Name: "MySQL"}

	for _, name := range []string{"", "none", " NONE "} {
		tracer, shutdown, err := newTracerFor(ctx, name, info, helper)
		require.NoError(t, err, name)
		require.NotNil(t, tracer)
		require.NoError(t, shutdown(ctx))
	}

	tracer, shutdown, err := newTracerFor(ctx, "console", info, helper)
	require.NoError(t, err)
	_, span := tracer.Start(ctx, "test")
	info.SetOTelAttributes(span)
	span.End()
	require.NoError(t, shutdown(ctx))

	_, _, err = newTracerFor(ctx, "zipkin", info, helper)
	var myErr mysqlgo.Error
	require.ErrorAs(t, err, &myErr)
	assert.Equal(t, mysqlgo.StatusInvalidArgument, myErr.Code)
	assert.Contains(t, myErr.Msg, MessageTracesExporterUnknown)
}

func TestNilLogger(t *testing.T) {
	logger := NilLogger()
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), 0))
}
