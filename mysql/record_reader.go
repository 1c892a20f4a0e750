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

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/edenli/mysqlgo"
	"github.com/edenli/mysqlgo/client"
)

const defaultBatchSize = 1024

// MetadataKeyMySQLType is the field metadata key carrying the MySQL type
// name of each column.
const MetadataKeyMySQLType = "mysql.type"

// arrowType returns the Arrow type used for a column.
func arrowType(f *client.Field) arrow.DataType {
	unsigned := f.Unsigned()
	switch f.Type {
	case client.TypeTiny:
		if unsigned {
			return arrow.PrimitiveTypes.Uint8
		}
		return arrow.PrimitiveTypes.Int8
	case client.TypeShort:
		if unsigned {
			return arrow.PrimitiveTypes.Uint16
		}
		return arrow.PrimitiveTypes.Int16
	case client.TypeYear:
		return arrow.PrimitiveTypes.Int16
	case client.TypeLong, client.TypeInt24:
		if unsigned {
			return arrow.PrimitiveTypes.Uint32
		}
		return arrow.PrimitiveTypes.Int32
	case client.TypeLonglong:
		if unsigned {
			return arrow.PrimitiveTypes.Uint64
		}
		return arrow.PrimitiveTypes.Int64
	case client.TypeFloat:
		return arrow.PrimitiveTypes.Float32
	case client.TypeDouble:
		return arrow.PrimitiveTypes.Float64
	case client.TypeDate, client.TypeNewdate:
		return arrow.FixedWidthTypes.Date32
	case client.TypeDatetime, client.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	case client.TypeBit, client.TypeGeometry:
		return arrow.BinaryTypes.Binary
	case client.TypeDecimal, client.TypeNewdecimal, client.TypeTime:
		return arrow.BinaryTypes.String
	}
	if f.Binary() {
		return arrow.BinaryTypes.Binary
	}
	return arrow.BinaryTypes.String
}

// Schema returns the Arrow schema of the cursor's result.
func (c *Cursor) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(c.fields))
	for i := range c.fields {
		f := &c.fields[i]
		fields[i] = arrow.Field{
			Name:     f.Name,
			Type:     arrowType(f),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{MetadataKeyMySQLType}, []string{f.Type.String()}),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// RecordReader converts the remaining rows into Arrow record batches of
// batchSize rows (1024 when batchSize < 1). The caller releases the reader.
func (c *Cursor) RecordReader(alloc memory.Allocator, batchSize int) (array.RecordReader, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	schema := c.Schema()

	bldr := array.NewRecordBuilder(alloc, schema)
	defer bldr.Release()

	var recs []arrow.Record
	release := func() {
		for _, r := range recs {
			r.Release()
		}
	}
	defer release()

	if c.res != nil {
		n := 0
		for row := c.res.FetchRow(); row != nil; row = c.res.FetchRow() {
			for i, raw := range row {
				if err := appendValue(bldr.Field(i), &c.fields[i], raw); err != nil {
					return nil, err
				}
			}
			if n++; n == batchSize {
				recs = append(recs, bldr.NewRecord())
				n = 0
			}
		}
		if n > 0 {
			recs = append(recs, bldr.NewRecord())
		}
	}
	return array.NewRecordReader(schema, recs)
}

func appendValue(b array.Builder, f *client.Field, raw []byte) error {
	if raw == nil {
		b.AppendNull()
		return nil
	}
	s := string(raw)
	fail := func(err error) error {
		return errs.Errorf(mysqlgo.StatusInvalidData, "cannot convert %s value '%s' of column '%s': %s",
			f.Type, s, f.Name, err)
	}
	switch b := b.(type) {
	case *array.Int8Builder:
		v, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return fail(err)
		}
		b.Append(int8(v))
	case *array.Int16Builder:
		v, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return fail(err)
		}
		b.Append(int16(v))
	case *array.Int32Builder:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return fail(err)
		}
		b.Append(int32(v))
	case *array.Int64Builder:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fail(err)
		}
		b.Append(v)
	case *array.Uint8Builder:
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return fail(err)
		}
		b.Append(uint8(v))
	case *array.Uint16Builder:
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return fail(err)
		}
		b.Append(uint16(v))
	case *array.Uint32Builder:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fail(err)
		}
		b.Append(uint32(v))
	case *array.Uint64Builder:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fail(err)
		}
		b.Append(v)
	case *array.Float32Builder:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return fail(err)
		}
		b.Append(float32(v))
	case *array.Float64Builder:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fail(err)
		}
		b.Append(v)
	case *array.Date32Builder:
		t, err := parseTime(dateLayout, s)
		if err != nil {
			return fail(err)
		}
		if t.IsZero() {
			b.AppendNull()
			return nil
		}
		b.Append(arrow.Date32FromTime(t))
	case *array.TimestampBuilder:
		t, err := parseTime(datetimeLayout, s)
		if err != nil {
			return fail(err)
		}
		if t.IsZero() {
			b.AppendNull()
			return nil
		}
		b.Append(arrow.Timestamp(t.UnixMicro()))
	case *array.BinaryBuilder:
		b.Append(raw)
	case *array.StringBuilder:
		b.Append(s)
	default:
		return errs.Errorf(mysqlgo.StatusNotImplemented, "no conversion for column '%s' of type %s", f.Name, f.Type)
	}
	return nil
}
