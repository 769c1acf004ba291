// Printlink Core
// Copyright (c) 2026 The Printlink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Printlink Core.
//
// Printlink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Printlink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Printlink Core.  If not, see <http://www.gnu.org/licenses/>.

package methods

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/models/requests"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/rs/zerolog/log"
)

func HandleLogsDownload(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received logs download request")

	logFilePath := filepath.Join(env.LogDir, config.LogFile)
	data, err := os.ReadFile(logFilePath) //nolint:gosec // fixed file name in the log directory
	if err != nil {
		log.Error().Err(err).Str("path", logFilePath).Msg("failed to read log file")
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	return models.LogDownloadResponse{
		Filename: config.LogFile,
		Size:     len(data),
		Content:  base64.StdEncoding.EncodeToString(data),
	}, nil
}
