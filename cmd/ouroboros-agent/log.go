// Copyright 2026 Blink Labs Software
//
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

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
)

var logger = slog.Default()

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

func parseLogLevel(level string) (pterm.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return pterm.LogLevelDebug, nil
	case "info":
		return pterm.LogLevelInfo, nil
	case "warn", "warning":
		return pterm.LogLevelWarn, nil
	case "error":
		return pterm.LogLevelError, nil
	default:
		return pterm.LogLevelDisabled, fmt.Errorf("unknown log level: %s", level)
	}
}

// configureLogging routes the library's structured logs through the pterm logger
func configureLogging(level string) error {
	ptermLevel, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	pterm.DefaultLogger.Level = ptermLevel
	logger = slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))
	return nil
}
