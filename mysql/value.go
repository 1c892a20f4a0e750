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

package mysql

import (
	"strconv"
	"strings"
	"time"

	"github.com/edenli/mysqlgo"
	"github.com/edenli/mysqlgo/client"
)

// Column describes one column of a cursor's result.
type Column struct {
	Name     string
	Type     client.FieldType
	Length   uint64
	Decimals int
	Nullable bool
	Unsigned bool
}

func columnsOf(fields []client.Field) []Column {
	cols := make([]Column, len(fields))
	for i := range fields {
		f := &fields[i]
		cols[i] = Column{
			Name:     f.Name,
			Type:     f.Type,
			Length:   f.Length,
			Decimals: f.Decimals,
			Nullable: f.Flags&client.NotNullFlag == 0,
			Unsigned: f.Unsigned(),
		}
	}
	return cols
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05.999999"
)

// decodeValue converts the text form of a column into a Go value:
//
//	TINY SHORT LONG INT24 LONGLONG YEAR  int64 (uint64 if unsigned)
//	FLOAT                                float32
//	DOUBLE                               float64
//	DECIMAL NEWDECIMAL                   string
//	DATE DATETIME TIMESTAMP              time.Time in UTC
//	TIME                                 time.Duration
//	BIT GEOMETRY, binary strings         []byte
//	everything else                      string
//
// NULL decodes to nil.
func decodeValue(f *client.Field, raw []byte) (any, error) {
	if raw == nil {
		return nil, nil
	}
	s := string(raw)
	switch f.Type {
	case client.TypeTiny, client.TypeShort, client.TypeLong, client.TypeInt24,
		client.TypeLonglong, client.TypeYear:
		if f.Unsigned() {
			return parse(f, s, func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) })
		}
		return parse(f, s, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
	case client.TypeFloat:
		return parse(f, s, func(s string) (float32, error) {
			v, err := strconv.ParseFloat(s, 32)
			return float32(v), err
		})
	case client.TypeDouble:
		return parse(f, s, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
	case client.TypeDecimal, client.TypeNewdecimal:
		return s, nil
	case client.TypeDate, client.TypeNewdate:
		return parse(f, s, func(s string) (time.Time, error) { return parseTime(dateLayout, s) })
	case client.TypeDatetime, client.TypeTimestamp:
		return parse(f, s, func(s string) (time.Time, error) { return parseTime(datetimeLayout, s) })
	case client.TypeTime:
		return parse(f, s, parseDuration)
	case client.TypeBit, client.TypeGeometry:
		return raw, nil
	}
	if f.Binary() {
		return raw, nil
	}
	return s, nil
}

func parse[T any](f *client.Field, s string, fn func(string) (T, error)) (any, error) {
	v, err := fn(s)
	if err != nil {
		return nil, errs.Errorf(mysqlgo.StatusInvalidData, "cannot decode %s value '%s' of column '%s': %s",
			f.Type, s, f.Name, err)
	}
	return v, nil
}

// parseTime treats zero dates such as 0000-00-00 as the zero time.
func parseTime(layout, s string) (time.Time, error) {
	if strings.HasPrefix(s, "0000-00-00") {
		return time.Time{}, nil
	}
	return time.ParseInLocation(layout, s, time.UTC)
}

// parseDuration reads [-][H]HH:MM:SS[.ffffff]; hours may exceed 24.
func parseDuration(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, strconv.ErrSyntax
	}
	h, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, err
	}
	m, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return 0, err
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second)).Round(time.Microsecond)
	if neg {
		d = -d
	}
	return d, nil
}

// decodeRow decodes every column of row.
func decodeRow(fields []client.Field, row client.Row) ([]any, error) {
	out := make([]any, len(row))
	for i, raw := range row {
		v, err := decodeValue(&fields[i], raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
