package logx

import (
	"fmt"
	"strings"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorWhite  = "\033[97m"

	colorBoldRed    = "\033[1;31m"
	colorBoldYellow = "\033[1;33m"
	colorBoldCyan   = "\033[1;36m"
	colorBoldGreen  = "\033[1;32m"
)

// ConsoleFormatter formats logs for console output with colors
type ConsoleFormatter struct {
	config *Config
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(config *Config) *ConsoleFormatter {
	return &ConsoleFormatter{config: config}
}

// Format formats a log entry for console output
func (f *ConsoleFormatter) Format(entry *LogEntry) ([]byte, error) {
	var builder strings.Builder

	if f.config.EnableTimestamp {
		timestamp := formatTimestamp(entry.Timestamp, f.config.TimeFormat)
		if f.config.EnableColors {
			builder.WriteString(colorGray)
			builder.WriteString(timestamp)
			builder.WriteString(colorReset)
		} else {
			builder.WriteString(timestamp)
		}
		builder.WriteString(" ")
	}

	builder.WriteString(f.formatLevel(entry.Level))
	builder.WriteString(" ")

	if f.config.EnableCaller && entry.Caller != "" {
		if f.config.EnableColors {
			builder.WriteString(colorGray)
		}
		builder.WriteString("[")
		builder.WriteString(entry.Caller)
		builder.WriteString("]")
		if f.config.EnableColors {
			builder.WriteString(colorReset)
		}
		builder.WriteString(" ")
	}

	if f.config.EnableColors {
		builder.WriteString(colorWhite)
		builder.WriteString(entry.Message)
		builder.WriteString(colorReset)
	} else {
		builder.WriteString(entry.Message)
	}

	if len(entry.Fields) > 0 {
		builder.WriteString(" ")
		if f.config.EnableColors {
			builder.WriteString(colorCyan)
		}

		i := 0
		for k, v := range entry.Fields {
			if i > 0 {
				builder.WriteString(" ")
			}
			builder.WriteString(k)
			builder.WriteString("=")
			builder.WriteString(fmt.Sprintf("%v", v))
			i++
		}

		if f.config.EnableColors {
			builder.WriteString(colorReset)
		}
	}

	if entry.Error != nil {
		builder.WriteString("\n")
		if f.config.EnableColors {
			builder.WriteString(colorRed)
		}
		builder.WriteString("  error: ")
		builder.WriteString(entry.Error.Error())
		if f.config.EnableColors {
			builder.WriteString(colorReset)
		}
	}

	builder.WriteString("\n")
	return []byte(builder.String()), nil
}

// formatLevel renders the level marker with colors when enabled
func (f *ConsoleFormatter) formatLevel(level Level) string {
	label := fmt.Sprintf("%-5s", level.String())
	if !f.config.EnableColors {
		return label
	}

	switch level {
	case LevelDebug:
		return colorGray + label + colorReset
	case LevelInfo:
		return colorBoldGreen + label + colorReset
	case LevelWarn:
		return colorBoldYellow + label + colorReset
	case LevelError:
		return colorBoldRed + label + colorReset
	case LevelFatal:
		return colorBoldRed + label + colorReset
	default:
		return label
	}
}
