package monitor

import (
	"fmt"
	"time"
)

// AlertType identifies a threshold violation category.
type AlertType string

const (
	AlertSlowResolution AlertType = "slow_resolution"
	AlertLowHitRatio    AlertType = "low_hit_ratio"
	AlertHighErrorRate  AlertType = "high_error_rate"
	AlertMemoryPressure AlertType = "memory_pressure"
)

// Alert describes a threshold violation.
type Alert struct {
	Type      AlertType
	Message   string
	Value     float64
	Threshold float64
	At        time.Time
}

// AlertFunc is invoked for every emitted alert. It runs under the monitor's
// lock and must not call back into the monitor.
type AlertFunc func(Alert)

// emitLocked fires an alert unless one of the same type fired within the
// cooldown window; must hold the lock.
func (m *Monitor) emitLocked(typ AlertType, value, threshold float64) {
	now := time.Now()
	if last, ok := m.lastAlert[typ]; ok && now.Sub(last) < m.cfg.AlertCooldown {
		return
	}
	m.lastAlert[typ] = now

	alert := Alert{
		Type:      typ,
		Message:   alertMessage(typ, value, threshold),
		Value:     value,
		Threshold: threshold,
		At:        now,
	}

	m.logger.Warn("cache performance alert",
		"alert_type", string(alert.Type),
		"value", alert.Value,
		"threshold", alert.Threshold,
	)
	if m.alertFn != nil {
		m.alertFn(alert)
	}
}

func alertMessage(typ AlertType, value, threshold float64) string {
	switch typ {
	case AlertSlowResolution:
		return fmt.Sprintf("tenant resolution took %.2fs, threshold %.2fs", value, threshold)
	case AlertLowHitRatio:
		return fmt.Sprintf("cache hit ratio %.2f below threshold %.2f", value, threshold)
	case AlertHighErrorRate:
		return fmt.Sprintf("resolution error rate %.2f above threshold %.2f", value, threshold)
	case AlertMemoryPressure:
		return fmt.Sprintf("cache holds %.0f entries, threshold %.0f", value, threshold)
	default:
		return fmt.Sprintf("threshold violation: %.2f vs %.2f", value, threshold)
	}
}
