package queue

import "fmt"

// significantEvents lists the info messages printed to stdout when no
// Logger is configured — every other info message is silently dropped so
// an unconfigured host isn't spammed per job. Warnings and errors are
// always printed.
var significantEvents = map[string]bool{
	"configuration loaded":          true,
	"backend switch succeeded":      true,
	"poll: converged to peer state": true,
}

func printFallback(prefix, msg string, args ...interface{}) {
	fmt.Printf("[queue] %s: %s", prefix, msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Printf(" %v=%v", args[i], args[i+1])
	}
	fmt.Println()
}

// logInfo logs an informational message, tagging it with the component
// name. With no Logger configured, only significantEvents print, via a
// bare fmt.Printf fallback.
func (m *Manager) logInfo(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.With("component", "queue").Info(msg, args...)
		return
	}
	if significantEvents[msg] {
		printFallback("info", msg, args...)
	}
}

func (m *Manager) logWarn(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.With("component", "queue").Warn(msg, args...)
		return
	}
	printFallback("warn", msg, args...)
}

func (m *Manager) logError(msg string, err error, args ...interface{}) {
	fullArgs := append([]interface{}{"error", err}, args...)
	if m.logger != nil {
		m.logger.With("component", "queue").Error(msg, fullArgs...)
		return
	}
	printFallback("error", msg, fullArgs...)
}
