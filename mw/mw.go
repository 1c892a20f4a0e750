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

// Package mw is a flat façade over the client library that hides every
// native structure behind an opaque handle.
//
// Each function forwards to exactly one client operation and returns its
// result unchanged. Nothing is checked, tracked or translated here:
//
//   - column and field indices are not bounds-checked; reading past the
//     count panics with an index out of range error;
//   - a nil handle, freeing a result twice or using a handle after Close or
//     FreeResult is undefined;
//   - Row and Field handles belong to their result and die with it. A Row
//     is valid until the next FetchRow or FreeResult.
//
// Handles are not safe for concurrent use. A goroutine that uses them must
// call ThreadInit before and ThreadEnd after.
package mw

import (
	"unsafe"

	"github.com/edenli/mysqlgo/client"
)

// MW is a connection handle.
type MW unsafe.Pointer

// Res is a result-set handle.
type Res unsafe.Pointer

// Row is a row handle.
type Row unsafe.Pointer

// Field is a handle on the field metadata of a result set.
type Field unsafe.Pointer

func conn(h MW) *client.Conn { return (*client.Conn)(h) }

func result(res Res) *client.Result { return (*client.Result)(res) }

// LibraryInit initialises the client library. Call once before any other
// function.
func LibraryInit() {
	_ = client.LibraryInit()
}

// Init returns h reinitialised, or a new handle when h is nil.
func Init(h MW) MW {
	return MW(unsafe.Pointer(client.Init(conn(h))))
}

// RealConnect connects h and returns it, or nil on failure.
func RealConnect(h MW, host, uname, passwd, db string, port int) MW {
	return MW(unsafe.Pointer(conn(h).RealConnect(host, uname, passwd, db, port)))
}

// Error returns the message of the last failed call on h, "" if it
// succeeded.
func Error(h MW) string {
	return conn(h).ErrorMessage()
}

func Close(h MW) {
	conn(h).Close()
}

func FreeResult(res Res) {
	result(res).Free()
}

// Query returns 0 on success and the native error number otherwise.
func Query(h MW, q string) int {
	return conn(h).Query(q)
}

// StoreResult returns nil if the last query produced no result set or
// reading it failed.
func StoreResult(h MW) Res {
	return Res(unsafe.Pointer(conn(h).StoreResult()))
}

// RowAt returns column i of row; nil is SQL NULL.
func RowAt(row Row, i int) []byte {
	return (*(*client.Row)(row))[i]
}

func FieldNameAt(field Field, i int) string {
	return (*(*[]client.Field)(field))[i].Name
}

func FieldTypeAt(field Field, i int) int {
	return int((*(*[]client.Field)(field))[i].Type)
}

func FieldCount(h MW) int {
	return conn(h).FieldCount()
}

func NumFields(res Res) int {
	return result(res).NumFields()
}

func FetchFields(res Res) Field {
	fields := result(res).FetchFields()
	return Field(unsafe.Pointer(&fields))
}

// FetchRow returns the next row, nil at end of data.
func FetchRow(res Res) Row {
	row := result(res).FetchRow()
	if row == nil {
		return nil
	}
	return Row(unsafe.Pointer(&row))
}

func NumRows(res Res) uint64 {
	return result(res).NumRows()
}

func ThreadInit() {
	client.ThreadInit()
}

func ThreadEnd() {
	client.ThreadEnd()
}
