// Copyright © 2023 Accord Labs Limited.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ExecutionNodeAddress returns the best execution node address for the path.
func ExecutionNodeAddress(path string) string {
	if path == "" {
		return viper.GetString("execution-node-address")
	}

	key := fmt.Sprintf("%s.execution-node-address", path)
	if viper.GetString(key) != "" {
		return viper.GetString(key)
	}
	// Lop off the child and try again.
	lastPeriod := strings.LastIndex(path, ".")
	if lastPeriod == -1 {
		return ExecutionNodeAddress("")
	}
	return ExecutionNodeAddress(path[0:lastPeriod])
}

// KeysAPIAddress returns the best keys API address for the path.
func KeysAPIAddress(path string) string {
	if path == "" {
		return viper.GetString("keys-api-address")
	}

	key := fmt.Sprintf("%s.keys-api-address", path)
	if viper.GetString(key) != "" {
		return viper.GetString(key)
	}
	// Lop off the child and try again.
	lastPeriod := strings.LastIndex(path, ".")
	if lastPeriod == -1 {
		return KeysAPIAddress("")
	}
	return KeysAPIAddress(path[0:lastPeriod])
}
