package utils_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oca/repo-maintainer/internal/utils"
)

const (
	testLoggerMessageConstant          = "reconciliation pass finished"
	testLoggerSubtestTemplateConstant  = "%d_%s"
	testUnknownLoggerSettingConstant   = "verbose"
	testConsoleCapitalLevelConstant    = "INFO"
	testStructuredLevelFieldConstant   = "level"
	testStructuredMessageFieldConstant = "msg"
	testStructuredLowerLevelValueConst = "info"
	testApplicationNameConstant        = "repo-maintainer"
	testApplicationFieldConstant       = "app"
	testStructuredTimeFieldConstant    = "timestamp"
)

func captureStandardError(testInstance *testing.T, action func()) []byte {
	testInstance.Helper()

	pipeReader, pipeWriter, pipeError := os.Pipe()
	require.NoError(testInstance, pipeError)

	originalStandardError := os.Stderr
	os.Stderr = pipeWriter
	action()
	os.Stderr = originalStandardError

	require.NoError(testInstance, pipeWriter.Close())
	capturedOutput, readError := io.ReadAll(pipeReader)
	require.NoError(testInstance, readError)
	require.NoError(testInstance, pipeReader.Close())
	return bytes.TrimSpace(capturedOutput)
}

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name           string
		logLevel       utils.LogLevel
		logFormat      utils.LogFormat
		expectError    bool
		expectJSON     bool
		expectedMarker string
	}{
		{name: "structured_debug", logLevel: utils.LogLevelDebug, logFormat: utils.LogFormatStructured, expectJSON: true},
		{name: "structured_info", logLevel: utils.LogLevelInfo, logFormat: utils.LogFormatStructured, expectJSON: true},
		{name: "console_info", logLevel: utils.LogLevelInfo, logFormat: utils.LogFormatConsole, expectedMarker: testConsoleCapitalLevelConstant},
		{name: "mixed_case_settings", logLevel: utils.LogLevel(" INFO "), logFormat: utils.LogFormat("Structured"), expectJSON: true},
		{name: "unknown_level", logLevel: utils.LogLevel(testUnknownLoggerSettingConstant), logFormat: utils.LogFormatConsole, expectError: true},
		{name: "unknown_format", logLevel: utils.LogLevelInfo, logFormat: utils.LogFormat(testUnknownLoggerSettingConstant), expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLoggerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			var creationError error
			capturedOutput := captureStandardError(testInstance, func() {
				logger, createError := utils.NewLoggerFactory(testApplicationNameConstant).CreateLogger(testCase.logLevel, testCase.logFormat)
				creationError = createError
				if createError != nil {
					require.Nil(testInstance, logger)
					return
				}
				logger.Info(testLoggerMessageConstant)
				syncError := logger.Sync()
				if syncError != nil {
					require.True(testInstance, errors.Is(syncError, syscall.ENOTSUP) || errors.Is(syncError, syscall.EINVAL))
				}
			})

			if testCase.expectError {
				require.Error(testInstance, creationError)
				require.Empty(testInstance, capturedOutput)
				return
			}

			require.NoError(testInstance, creationError)
			require.Contains(testInstance, string(capturedOutput), testLoggerMessageConstant)
			require.Equal(testInstance, testCase.expectJSON, json.Valid(capturedOutput))

			if testCase.expectJSON {
				decodedEntry := map[string]any{}
				require.NoError(testInstance, json.Unmarshal(capturedOutput, &decodedEntry))
				require.Equal(testInstance, testStructuredLowerLevelValueConst, decodedEntry[testStructuredLevelFieldConstant])
				require.Equal(testInstance, testLoggerMessageConstant, decodedEntry[testStructuredMessageFieldConstant])
				require.Equal(testInstance, testApplicationNameConstant, decodedEntry[testApplicationFieldConstant])
				require.Contains(testInstance, decodedEntry, testStructuredTimeFieldConstant)
			}
			if len(testCase.expectedMarker) > 0 {
				require.Contains(testInstance, string(capturedOutput), testCase.expectedMarker)
			}
		})
	}
}

func TestParseLogSettings(testInstance *testing.T) {
	testCases := []struct {
		name           string
		levelValue     string
		formatValue    string
		expectedLevel  utils.LogLevel
		expectedFormat utils.LogFormat
		expectedError  string
	}{
		{name: "canonical", levelValue: "warn", formatValue: "console", expectedLevel: utils.LogLevelWarn, expectedFormat: utils.LogFormatConsole},
		{name: "normalized", levelValue: " DEBUG\n", formatValue: "Structured", expectedLevel: utils.LogLevelDebug, expectedFormat: utils.LogFormatStructured},
		{name: "unknown_level", levelValue: testUnknownLoggerSettingConstant, formatValue: "console", expectedError: `unsupported log level "verbose" (expected one of debug, info, warn, error)`},
		{name: "unknown_format", levelValue: "info", formatValue: "xml", expectedError: `unsupported log format "xml" (expected one of structured, console)`},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLoggerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			logLevel, levelError := utils.ParseLogLevel(testCase.levelValue)
			logFormat, formatError := utils.ParseLogFormat(testCase.formatValue)
			if len(testCase.expectedError) > 0 {
				settingError := errors.Join(levelError, formatError)
				var unsupportedError utils.UnsupportedLogSettingError
				require.ErrorAs(testInstance, settingError, &unsupportedError)
				require.EqualError(testInstance, unsupportedError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, levelError)
			require.NoError(testInstance, formatError)
			require.Equal(testInstance, testCase.expectedLevel, logLevel)
			require.Equal(testInstance, testCase.expectedFormat, logFormat)
		})
	}
}
