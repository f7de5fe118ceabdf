package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrPageFetch           = errors.New("page fetch failed")                // Wraps timeout/driver/network errors for one page
	ErrStrategyUnavailable = errors.New("browser strategy unavailable")     // Browser driver could not be initialized
	ErrExtraction          = errors.New("extraction error")                 // Per-node parsing failure
	ErrMonitorNotFound     = errors.New("monitor not found")
	ErrMonitorDisabled     = errors.New("monitor is disabled")
	ErrPersistence         = errors.New("persistence error")                // Wraps file/DB write errors
	ErrDatabase            = errors.New("database error")                   // Wraps badger errors
	ErrNotification        = errors.New("notification failed")              // Wraps SMTP errors
)

// CategorizeError maps an error to a category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrStrategyUnavailable):
		return "Strategy_Unavailable"
	case errors.Is(err, ErrPageFetch):
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
			return "PageFetch_Timeout"
		}
		return "PageFetch_Other"
	case errors.Is(err, ErrExtraction):
		return "Extraction"
	case errors.Is(err, ErrMonitorNotFound):
		return "Monitor_NotFound"
	case errors.Is(err, ErrMonitorDisabled):
		return "Monitor_Disabled"
	case errors.Is(err, ErrPersistence):
		return "Persistence"
	case errors.Is(err, ErrDatabase):
		return "Database"
	case errors.Is(err, ErrNotification):
		return "Notification"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}

	return "Unknown"
}
