package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant           = "debug"
	logLevelInfoStringConstant            = "info"
	logLevelWarnStringConstant            = "warn"
	logLevelErrorStringConstant           = "error"
	logFormatStructuredStringConstant     = "structured"
	logFormatConsoleStringConstant        = "console"
	jsonZapEncodingStringConstant         = "json"
	consoleZapEncodingStringConstant      = "console"
	logSettingLevelConstant               = "log level"
	logSettingFormatConstant              = "log format"
	unsupportedLogSettingTemplateConstant = "unsupported %s %q (expected one of %s)"
	logSettingChoicesSeparatorConstant    = ", "
	structuredTimeKeyConstant             = "timestamp"
	applicationFieldNameConstant          = "app"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logLevelChoices = []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

var logFormatChoices = []LogFormat{LogFormatStructured, LogFormatConsole}

// UnsupportedLogSettingError reports a log level or format outside the supported set.
type UnsupportedLogSettingError struct {
	Setting string
	Value   string
	Choices []string
}

// Error lists the accepted values.
func (settingError UnsupportedLogSettingError) Error() string {
	return fmt.Sprintf(unsupportedLogSettingTemplateConstant, settingError.Setting, settingError.Value, strings.Join(settingError.Choices, logSettingChoicesSeparatorConstant))
}

// ParseLogLevel accepts a configured level in any case and surrounding whitespace.
func ParseLogLevel(value string) (LogLevel, error) {
	candidate := LogLevel(strings.ToLower(strings.TrimSpace(value)))
	if _, supported := logLevelMapping[candidate]; supported {
		return candidate, nil
	}
	choices := make([]string, 0, len(logLevelChoices))
	for _, choice := range logLevelChoices {
		choices = append(choices, string(choice))
	}
	return "", UnsupportedLogSettingError{Setting: logSettingLevelConstant, Value: value, Choices: choices}
}

// ParseLogFormat accepts a configured format in any case and surrounding whitespace.
func ParseLogFormat(value string) (LogFormat, error) {
	candidate := LogFormat(strings.ToLower(strings.TrimSpace(value)))
	choices := make([]string, 0, len(logFormatChoices))
	for _, choice := range logFormatChoices {
		if choice == candidate {
			return candidate, nil
		}
		choices = append(choices, string(choice))
	}
	return "", UnsupportedLogSettingError{Setting: logSettingFormatConstant, Value: value, Choices: choices}
}

// LoggerFactory builds zap.Logger instances tagged with the application name.
type LoggerFactory struct {
	applicationName string
}

// NewLoggerFactory constructs a factory whose loggers carry applicationName on every entry.
func NewLoggerFactory(applicationName string) *LoggerFactory {
	return &LoggerFactory{applicationName: strings.TrimSpace(applicationName)}
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
// Structured loggers write JSON with ISO8601 timestamps; console loggers drop stack traces
// and print capitalized levels so a reconciliation run reads like a report.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	logLevel, levelError := ParseLogLevel(string(requestedLogLevel))
	if levelError != nil {
		return nil, levelError
	}
	logFormat, formatError := ParseLogFormat(string(requestedLogFormat))
	if formatError != nil {
		return nil, formatError
	}

	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(logLevelMapping[logLevel])
	configuration.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch logFormat {
	case LogFormatConsole:
		configuration.Encoding = consoleZapEncodingStringConstant
		configuration.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		configuration.DisableStacktrace = true
	default:
		configuration.Encoding = jsonZapEncodingStringConstant
		configuration.EncoderConfig.TimeKey = structuredTimeKeyConstant
	}
	if len(factory.applicationName) > 0 {
		configuration.InitialFields = map[string]any{applicationFieldNameConstant: factory.applicationName}
	}

	return configuration.Build()
}
