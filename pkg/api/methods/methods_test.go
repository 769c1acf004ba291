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
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/models/requests"
	"github.com/printlink/printlink-core/pkg/api/validation"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/helpers"
	"github.com/printlink/printlink-core/pkg/printer"
	testhelpers "github.com/printlink/printlink-core/pkg/testing/helpers"
	"github.com/printlink/printlink-core/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, params string) (requests.RequestEnv, *mocks.MockPrinter, *mocks.MockJobDB) {
	t.Helper()
	p := mocks.NewMockPrinter()
	jobs := &mocks.MockJobDB{}
	env := requests.RequestEnv{
		Context: context.Background(),
		Printer: p,
		Config:  testhelpers.NewTestConfig(t, config.BaseDefaults),
		Jobs:    jobs,
		ID:      models.NewStringID("1"),
	}
	if params != "" {
		env.Params = json.RawMessage(params)
	}
	t.Cleanup(func() {
		p.AssertExpectations(t)
		jobs.AssertExpectations(t)
	})
	return env, p, jobs
}

func TestHandlePrinterConnect(t *testing.T) {
	t.Parallel()

	t.Run("configured port", func(t *testing.T) {
		t.Parallel()
		env, p, _ := newEnv(t, "")
		p.On("Connect").Return(nil).Once()
		_, err := HandlePrinterConnect(env)
		require.NoError(t, err)
	})

	t.Run("switch port", func(t *testing.T) {
		t.Parallel()
		env, p, _ := newEnv(t, `{"port":"/dev/ttyACM1","baudRate":115200}`)
		p.On("UpdateSettings", mock.MatchedBy(func(s config.Printer) bool {
			return s.Port == "/dev/ttyACM1" && s.BaudRate == 115200
		})).Return(nil).Once()
		p.On("Connect").Return(nil).Once()

		_, err := HandlePrinterConnect(env)
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyACM1", env.Config.Printer().Port)
		assert.Equal(t, 115200, env.Config.Printer().BaudRate)
	})

	t.Run("already connected", func(t *testing.T) {
		t.Parallel()
		env, p, _ := newEnv(t, "")
		p.On("Connect").Return(printer.ErrPrintActive).Once()
		_, err := HandlePrinterConnect(env)
		require.ErrorIs(t, err, printer.ErrPrintActive)
	})

	t.Run("bad baud rate", func(t *testing.T) {
		t.Parallel()
		env, _, _ := newEnv(t, `{"baudRate":-1}`)
		_, err := HandlePrinterConnect(env)
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
	})
}

func TestHandlePrinterQueue(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, `{"line":"G28 X","forceTop":true}`)
	p.On("QueueLine", "G28 X", true).Return(nil).Once()
	_, err := HandlePrinterQueue(env)
	require.NoError(t, err)

	env, _, _ = newEnv(t, `{"line":"G28\nG1 X1"}`)
	_, err = HandlePrinterQueue(env)
	require.Error(t, err)

	env, _, _ = newEnv(t, "")
	_, err = HandlePrinterQueue(env)
	require.ErrorIs(t, err, validation.ErrMissingParams)
}

func TestHandlePrinterHome(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, "")
	p.On("HomeAxis", printer.AxisAll).Return(nil).Once()
	_, err := HandlePrinterHome(env)
	require.NoError(t, err)

	env, p, _ = newEnv(t, `{"axes":"xy"}`)
	p.On("HomeAxis", printer.AxisX|printer.AxisY).Return(nil).Once()
	_, err = HandlePrinterHome(env)
	require.NoError(t, err)

	env, _, _ = newEnv(t, `{"axes":"q"}`)
	_, err = HandlePrinterHome(env)
	require.Error(t, err)
}

func TestHandlePrinterMove(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, `{"x":10,"z":0.2,"feedRate":1200}`)
	p.On("MoveAbsolute", mock.MatchedBy(func(m printer.MoveTarget) bool {
		return m.X != nil && *m.X == 10 && m.Y == nil && m.Z != nil && *m.Z == 0.2 && m.FeedRate == 1200
	})).Return(nil).Once()
	_, err := HandlePrinterMove(env)
	require.NoError(t, err)

	env, p, _ = newEnv(t, `{"e":5,"relative":true}`)
	p.On("MoveRelative", mock.AnythingOfType("printer.MoveTarget")).Return(nil).Once()
	_, err = HandlePrinterMove(env)
	require.NoError(t, err)

	env, _, _ = newEnv(t, `{"feedRate":100}`)
	_, err = HandlePrinterMove(env)
	require.ErrorIs(t, err, errNoAxisGiven)
}

func TestHandleTemperatures(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, `{"extruder":1,"temperature":215}`)
	p.On("SetTargetHotend", 1, 215.0).Return(nil).Once()
	_, err := HandlePrinterHotend(env)
	require.NoError(t, err)

	env, _, _ = newEnv(t, `{"temperature":500}`)
	_, err = HandlePrinterHotend(env)
	require.Error(t, err)

	env, p, _ = newEnv(t, `{"temperature":60}`)
	p.On("SetTargetBed", 60.0).Return(nil).Once()
	_, err = HandlePrinterBed(env)
	require.NoError(t, err)
}

func TestHandlePrinterBabystepSavesOffset(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, `{"z":0.05}`)
	p.On("Babystep", 0.05).Return(0.15, nil).Once()

	resp, err := HandlePrinterBabystep(env)
	require.NoError(t, err)
	assert.Equal(t, models.BabystepResponse{Z: 0.15}, resp)
	assert.InDelta(t, 0.15, env.Config.Printer().BabyStepZOffset, 1e-9)
}

func TestClosestPort(t *testing.T) {
	t.Parallel()

	ports := []helpers.SerialPort{{Name: "/dev/ttyACM0"}, {Name: "/dev/ttyUSB0"}}
	tests := []struct {
		name string
		port string
		want string
	}{
		{name: "listed", port: "/dev/ttyUSB0", want: ""},
		{name: "typo", port: "/dev/ttyUSB1", want: "/dev/ttyUSB0"},
		{name: "unrelated", port: "COM3", want: ""},
		{name: "empty", port: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, closestPort(tt.port, ports))
		})
	}
	assert.Empty(t, closestPort("/dev/ttyUSB1", nil))
}

func TestHandlePrinterPorts(t *testing.T) {
	t.Parallel()

	env, _, _ := newEnv(t, "")
	env.Ports = func() ([]helpers.SerialPort, error) {
		return []helpers.SerialPort{{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341"}}, nil
	}
	resp, err := HandlePrinterPorts(env)
	require.NoError(t, err)
	ports, ok := resp.(models.PortsResponse)
	require.True(t, ok)
	require.Len(t, ports.Ports, 1)
	assert.Equal(t, "2341", ports.Ports[0].VID)

	env.Ports = func() ([]helpers.SerialPort, error) { return nil, errors.New("no udev") }
	_, err = HandlePrinterPorts(env)
	require.Error(t, err)
}

func TestHandleSimplePrinterCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		handler func(requests.RequestEnv) (any, error)
		method  string
	}{
		{handler: HandlePrinterDisconnect, method: "Disable"},
		{handler: HandlePrinterPosition, method: "ReadPosition"},
		{handler: HandlePrinterMotorsOff, method: "ReleaseMotors"},
		{handler: HandlePrinterReboot, method: "RebootBoard"},
		{handler: HandlePrintPause, method: "RequestPause"},
		{handler: HandlePrintResume, method: "Resume"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()
			env, p, _ := newEnv(t, "")
			p.On(tt.method).Return(printer.ErrNotConnected).Once()
			_, err := tt.handler(env)
			require.ErrorIs(t, err, printer.ErrNotConnected)
		})
	}
}

func TestHandlePrintStart(t *testing.T) {
	t.Parallel()

	t.Run("new print", func(t *testing.T) {
		t.Parallel()
		env, p, _ := newEnv(t, `{"path":"/prints/cube.gcode"}`)
		job := &printer.PrintJob{ID: "j1", FileName: "cube.gcode", Started: time.Now()}
		p.On("StartPrintFile", mock.Anything, "/prints/cube.gcode", (*printer.PrintJob)(nil)).Return(nil).Once()
		p.On("Job").Return(job).Once()

		resp, err := HandlePrintStart(env)
		require.NoError(t, err)
		assert.Equal(t, "j1", resp.(models.JobResponse).ID) //nolint:forcetypeassert // test
	})

	t.Run("resume", func(t *testing.T) {
		t.Parallel()
		env, p, jobs := newEnv(t, `{"path":"/prints/cube.gcode","resume":true}`)
		prev := &printer.PrintJob{ID: "j0", Path: "/prints/cube.gcode", PercentComplete: 42}
		jobs.On("LatestResumable", mock.Anything).Return(prev, nil).Once()
		p.On("StartPrintFile", mock.Anything, "/prints/cube.gcode", prev).Return(nil).Once()
		p.On("Job").Return(prev).Once()

		_, err := HandlePrintStart(env)
		require.NoError(t, err)
	})

	t.Run("resume other file", func(t *testing.T) {
		t.Parallel()
		env, _, jobs := newEnv(t, `{"path":"/prints/cube.gcode","resume":true}`)
		jobs.On("LatestResumable", mock.Anything).
			Return(&printer.PrintJob{Path: "/prints/other.gcode", PercentComplete: 3}, nil).Once()

		_, err := HandlePrintStart(env)
		require.ErrorIs(t, err, ErrNothingToResume)
	})

	t.Run("missing path", func(t *testing.T) {
		t.Parallel()
		env, _, _ := newEnv(t, `{}`)
		_, err := HandlePrintStart(env)
		require.Error(t, err)
	})
}

func TestHandlePrintStop(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, "")
	p.On("Stop", true).Return(nil).Once()
	_, err := HandlePrintStop(env)
	require.NoError(t, err)

	env, p, _ = newEnv(t, `{"markCanceled":false}`)
	p.On("Stop", false).Return(nil).Once()
	_, err = HandlePrintStop(env)
	require.NoError(t, err)
}

func TestHandleSdCommands(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, `{"file":"CUBE.GCO"}`)
	p.On("StartSdCardPrint", "CUBE.GCO").Return(nil).Once()
	_, err := HandlePrintSdStart(env)
	require.NoError(t, err)

	env, p, _ = newEnv(t, `{"file":"CUBE.GCO"}`)
	p.On("DeleteFileFromSdCard", "CUBE.GCO").Return(nil).Once()
	_, err = HandleSdDelete(env)
	require.NoError(t, err)

	env, _, _ = newEnv(t, `{"file":"my cube.gco"}`)
	_, err = HandleSdDelete(env)
	require.Error(t, err)
}

func TestHandleJobsHistory(t *testing.T) {
	t.Parallel()

	env, _, jobs := newEnv(t, `{"limit":2}`)
	ended := time.Unix(1780000000, 0)
	jobs.On("History", mock.Anything, 2).Return([]printer.PrintJob{
		{ID: "b", Ended: ended, Finished: true, PercentComplete: 100},
		{ID: "a", PercentComplete: 12},
	}, nil).Once()

	resp, err := HandleJobsHistory(env)
	require.NoError(t, err)
	history, ok := resp.(models.JobsHistoryResponse)
	require.True(t, ok)
	require.Len(t, history.Jobs, 2)
	require.NotNil(t, history.Jobs[0].Ended)
	assert.Nil(t, history.Jobs[1].Ended)

	env, _, jobs = newEnv(t, "")
	jobs.On("History", mock.Anything, 0).Return(nil, errors.New("locked")).Once()
	_, err = HandleJobsHistory(env)
	require.Error(t, err)
}

func TestHandleJobsExport(t *testing.T) {
	t.Parallel()

	env, _, jobs := newEnv(t, "")
	ended := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	jobs.On("History", mock.Anything, 0).Return([]printer.PrintJob{
		{ID: "b", FileName: "b.gcode", Started: ended.Add(-time.Hour), Ended: ended, Finished: true},
		{ID: "a", FileName: "a.gcode", Started: ended.Add(-48 * time.Hour), RecoveryCount: 2},
	}, nil).Once()

	resp, err := HandleJobsExport(env)
	require.NoError(t, err)
	export, ok := resp.(models.JobsExportResponse)
	require.True(t, ok)

	lines := strings.Split(strings.TrimSpace(export.CSV), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"id,file_name,path,started,ended,percent_complete,recovery_count,finished,canceled,sd_card",
		lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "a,a.gcode,,2026-04-29T12:00:00Z,,"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], ",2,false,false,false"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "b,b.gcode,,2026-05-01T11:00:00Z,2026-05-01T12:00:00Z,"), lines[2])
}

func TestHandleSettingsUpdate(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, `{"checksums":false,"pauseLayers":[5],"writeRegex":"\"^M106$\",\"M106 S255\""}`)
	p.On("UpdateSettings", mock.MatchedBy(func(s config.Printer) bool {
		return !s.Checksums && len(s.PauseLayers) == 1 && s.WriteRegex != ""
	})).Return(nil).Once()

	resp, err := HandleSettingsUpdate(env)
	require.NoError(t, err)
	settings, ok := resp.(models.SettingsResponse)
	require.True(t, ok)
	assert.False(t, settings.Checksums)
	assert.Equal(t, []int{5}, settings.PauseLayers)

	require.NoError(t, env.Config.Load())
	assert.False(t, env.Config.Printer().Checksums, "saved to disk")
}

func TestHandleSettingsUpdateRejectedByPrinter(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, `{"checksums":false}`)
	p.On("UpdateSettings", mock.Anything).Return(errors.New("nope")).Once()

	_, err := HandleSettingsUpdate(env)
	require.Error(t, err)
	assert.True(t, env.Config.Printer().Checksums, "config untouched")
}

func TestHandleSettingsReload(t *testing.T) {
	t.Parallel()

	env, p, _ := newEnv(t, "")
	p.On("UpdateSettings", mock.AnythingOfType("config.Printer")).Return(nil).Once()
	_, err := HandleSettingsReload(env)
	require.NoError(t, err)
}

func TestHandleVersion(t *testing.T) {
	t.Parallel()

	env, _, _ := newEnv(t, "")
	resp, err := HandleVersion(env)
	require.NoError(t, err)
	v, ok := resp.(models.VersionResponse)
	require.True(t, ok)
	assert.Equal(t, config.AppVersion, v.Version)
}

func TestHandleLogsDownload(t *testing.T) {
	t.Parallel()

	env, _, _ := newEnv(t, "")
	env.LogDir = t.TempDir()
	_, err := HandleLogsDownload(env)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(env.LogDir, config.LogFile), []byte("hello"), 0o600))
	resp, err := HandleLogsDownload(env)
	require.NoError(t, err)
	logs, ok := resp.(models.LogDownloadResponse)
	require.True(t, ok)
	assert.Equal(t, 5, logs.Size)
	assert.Equal(t, "aGVsbG8=", logs.Content)
}
