package health

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// MemoryCheckConfig configures the memory check.
type MemoryCheckConfig struct {
	// Name of the check. Default: "memory"
	Name string

	// Description is the message prefix. Default: "Memory usage"
	Description string

	// WarningThreshold is the share of MaxAlloc that reports WARNING.
	// Value should be between 0 and 1. Default: 0.8 (80%)
	WarningThreshold float64

	// CriticalThreshold is the share of MaxAlloc that reports ERROR.
	// Value should be between 0 and 1. Default: 0.95 (95%)
	CriticalThreshold float64

	// MaxAlloc is the maximum expected heap allocation in bytes.
	// If zero, memory obtained from the OS is used.
	MaxAlloc uint64

	// Timeout bounds the check. Default: DefaultTimeout
	Timeout time.Duration
}

// MemoryCheck returns a check reporting heap usage against thresholds.
// Usage above the warning threshold passes with WARNING; above the
// critical threshold the check fails.
func MemoryCheck(config MemoryCheckConfig) Check {
	if config.Name == "" {
		config.Name = "memory"
	}
	if config.Description == "" {
		config.Description = "Memory usage"
	}
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold + 0.1
		if config.CriticalThreshold > 1 {
			config.CriticalThreshold = 0.99
		}
	}

	return Check{
		Name:        config.Name,
		Description: config.Description,
		Timeout:     config.Timeout,
		Fn: func(_ context.Context, s *State) (string, error) {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)

			maxAlloc := config.MaxAlloc
			if maxAlloc == 0 {
				maxAlloc = stats.Sys
			}
			if maxAlloc == 0 {
				return "memory stats unavailable", nil
			}

			usage := float64(stats.Alloc) / float64(maxAlloc) * 100

			switch {
			case usage >= config.CriticalThreshold*100:
				return "", fmt.Errorf("memory usage critical: %.1f%%", usage)
			case usage >= config.WarningThreshold*100:
				s.Warn(fmt.Sprintf("%s: memory usage high: %.1f%%", config.Description, usage))
				return "", nil
			default:
				return fmt.Sprintf("%.1f%% of %d bytes", usage, maxAlloc), nil
			}
		},
	}
}
