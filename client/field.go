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
	"database/sql"
	"strconv"
	"strings"
)

// FieldType is the column type code, numbered as enum_field_types in
// mysql_com.h.
type FieldType int

const (
	TypeDecimal FieldType = iota
	TypeTiny
	TypeShort
	TypeLong
	TypeFloat
	TypeDouble
	TypeNull
	TypeTimestamp
	TypeLonglong
	TypeInt24
	TypeDate
	TypeTime
	TypeDatetime
	TypeYear
	TypeNewdate
	TypeVarchar
	TypeBit
)

const (
	TypeJSON FieldType = iota + 245
	TypeNewdecimal
	TypeEnum
	TypeSet
	TypeTinyBlob
	TypeMediumBlob
	TypeLongBlob
	TypeBlob
	TypeVarString
	TypeString
	TypeGeometry
)

var typeNames = map[FieldType]string{
	TypeDecimal:    "DECIMAL",
	TypeTiny:       "TINY",
	TypeShort:      "SHORT",
	TypeLong:       "LONG",
	TypeFloat:      "FLOAT",
	TypeDouble:     "DOUBLE",
	TypeNull:       "NULL",
	TypeTimestamp:  "TIMESTAMP",
	TypeLonglong:   "LONGLONG",
	TypeInt24:      "INT24",
	TypeDate:       "DATE",
	TypeTime:       "TIME",
	TypeDatetime:   "DATETIME",
	TypeYear:       "YEAR",
	TypeNewdate:    "NEWDATE",
	TypeVarchar:    "VARCHAR",
	TypeBit:        "BIT",
	TypeJSON:       "JSON",
	TypeNewdecimal: "NEWDECIMAL",
	TypeEnum:       "ENUM",
	TypeSet:        "SET",
	TypeTinyBlob:   "TINY_BLOB",
	TypeMediumBlob: "MEDIUM_BLOB",
	TypeLongBlob:   "LONG_BLOB",
	TypeBlob:       "BLOB",
	TypeVarString:  "VAR_STRING",
	TypeString:     "STRING",
	TypeGeometry:   "GEOMETRY",
}

func (t FieldType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "FieldType(" + strconv.Itoa(int(t)) + ")"
}

// IsNumeric reports whether values of t are rendered as numbers.
func (t FieldType) IsNumeric() bool {
	switch t {
	case TypeDecimal, TypeNewdecimal, TypeTiny, TypeShort, TypeLong, TypeFloat,
		TypeDouble, TypeLonglong, TypeInt24, TypeYear:
		return true
	}
	return false
}

// FieldFlag is a subset of the column flags of mysql_com.h.
type FieldFlag uint32

const (
	NotNullFlag  FieldFlag = 1
	UnsignedFlag FieldFlag = 32
	BinaryFlag   FieldFlag = 128
)

// Field describes one column of a result set.
type Field struct {
	Name string
	Type FieldType
	// Length is the declared display width, 0 when unknown.
	Length   uint64
	Decimals int
	Flags    FieldFlag
}

func (f *Field) Unsigned() bool { return f.Flags&UnsignedFlag != 0 }

func (f *Field) Binary() bool { return f.Flags&BinaryFlag != 0 }

// database type name reported by go-sql-driver -> type code and flags
var typesByName = map[string]struct {
	t     FieldType
	flags FieldFlag
}{
	"DECIMAL":    {TypeNewdecimal, 0},
	"TINYINT":    {TypeTiny, 0},
	"SMALLINT":   {TypeShort, 0},
	"INT":        {TypeLong, 0},
	"MEDIUMINT":  {TypeInt24, 0},
	"BIGINT":     {TypeLonglong, 0},
	"FLOAT":      {TypeFloat, 0},
	"DOUBLE":     {TypeDouble, 0},
	"NULL":       {TypeNull, 0},
	"TIMESTAMP":  {TypeTimestamp, 0},
	"DATE":       {TypeDate, 0},
	"TIME":       {TypeTime, 0},
	"DATETIME":   {TypeDatetime, 0},
	"YEAR":       {TypeYear, 0},
	"VARCHAR":    {TypeVarString, 0},
	"VARBINARY":  {TypeVarString, BinaryFlag},
	"CHAR":       {TypeString, 0},
	"BINARY":     {TypeString, BinaryFlag},
	"BIT":        {TypeBit, BinaryFlag},
	"JSON":       {TypeJSON, 0},
	"ENUM":       {TypeEnum, 0},
	"SET":        {TypeSet, 0},
	"TINYTEXT":   {TypeTinyBlob, 0},
	"TEXT":       {TypeBlob, 0},
	"MEDIUMTEXT": {TypeMediumBlob, 0},
	"LONGTEXT":   {TypeLongBlob, 0},
	"TINYBLOB":   {TypeTinyBlob, BinaryFlag},
	"BLOB":       {TypeBlob, BinaryFlag},
	"MEDIUMBLOB": {TypeMediumBlob, BinaryFlag},
	"LONGBLOB":   {TypeLongBlob, BinaryFlag},
	"GEOMETRY":   {TypeGeometry, BinaryFlag},
}

// typeFromName maps a database type name such as "UNSIGNED BIGINT" to a
// type code. Unknown names are treated as strings.
func typeFromName(name string) (FieldType, FieldFlag) {
	var flags FieldFlag
	name = strings.ToUpper(strings.TrimSpace(name))
	if rest, ok := strings.CutPrefix(name, "UNSIGNED "); ok {
		flags |= UnsignedFlag
		name = rest
	}
	if def, ok := typesByName[name]; ok {
		return def.t, flags | def.flags
	}
	return TypeString, flags
}

func fieldFromColumnType(ct *sql.ColumnType) Field {
	t, flags := typeFromName(ct.DatabaseTypeName())
	f := Field{Name: ct.Name(), Type: t, Flags: flags}
	if nullable, ok := ct.Nullable(); ok && !nullable {
		f.Flags |= NotNullFlag
	}
	if length, ok := ct.Length(); ok && length > 0 {
		f.Length = uint64(length)
	}
	if _, scale, ok := ct.DecimalSize(); ok {
		f.Decimals = int(scale)
	}
	return f
}

func fieldsFromRows(rows *sql.Rows) ([]Field, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	fields := make([]Field, len(types))
	for i, ct := range types {
		fields[i] = fieldFromColumnType(ct)
	}
	return fields, nil
}
