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
	"fmt"

	"github.com/edenli/mysqlgo"
)

// ErrorHelper builds mysqlgo.Error values whose messages are prefixed with
// the component name, e.g. "Not Found: [MySQL] Table 'test.t' doesn't exist".
type ErrorHelper struct {
	Name string
}

func (helper *ErrorHelper) Errorf(code mysqlgo.Status, message string, format ...any) error {
	msg := fmt.Sprintf(message, format...)
	return mysqlgo.Error{
		Code: code,
		Msg:  fmt.Sprintf("[%s] %s", helper.Name, msg),
	}
}

// VendorError builds an error carrying the native error number and
// SQLSTATE alongside the message.
func (helper *ErrorHelper) VendorError(code mysqlgo.Status, vendorCode int32, sqlState string, msg string) error {
	err := mysqlgo.Error{
		Code:       code,
		Msg:        fmt.Sprintf("[%s] %s", helper.Name, msg),
		VendorCode: vendorCode,
	}
	copy(err.SqlState[:], sqlState)
	return err
}
