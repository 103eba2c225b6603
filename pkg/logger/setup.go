package logger

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// SetupLogger builds the process-wide default logger from CLI options.
func SetupLogger(level LogLevel, logJSON, logSource bool) Logger {
	l := NewLogger(&Config{
		Level:      level,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
	SetDefault(l)
	return l
}

// GetLoggerConfig reads the logging flags. Persistent flags of parent
// commands are resolved as well.
func GetLoggerConfig(cmd *cobra.Command) (string, bool, bool, error) {
	logLevel, err := flagValue(cmd, "log-level")
	if err != nil {
		return "", false, false, err
	}
	logJSON, err := boolFlag(cmd, "log-json")
	if err != nil {
		return "", false, false, err
	}
	logSource, err := boolFlag(cmd, "log-source")
	if err != nil {
		return "", false, false, err
	}
	return logLevel, logJSON, logSource, nil
}

func flagValue(cmd *cobra.Command, name string) (string, error) {
	f := cmd.Flag(name)
	if f == nil {
		return "", fmt.Errorf("failed to get %s flag: not defined", name)
	}
	return f.Value.String(), nil
}

func boolFlag(cmd *cobra.Command, name string) (bool, error) {
	raw, err := flagValue(cmd, name)
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse %s flag: %w", name, err)
	}
	return v, nil
}
