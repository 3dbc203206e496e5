// Package vitals turns raw vital-sign readings into the concern summary the
// wellness call opens with.
package vitals

import (
	"fmt"
	"strconv"
	"strings"
)

// AlertType identifies why a wellness check was triggered.
type AlertType string

const (
	AlertHigh    AlertType = "high_alert"
	AlertRoutine AlertType = "routine"
)

// Severity is the tier derived from the alert type.
type Severity string

const (
	SeveritySevere   Severity = "severe"
	SeverityModerate Severity = "moderate"
)

// Thresholds outside which a high alert reports a reading.
const (
	MinHeartRate = 50
	MaxHeartRate = 110
	MinSpO2      = 93
	MaxStress    = 60
)

// FallbackConcern is used whenever no specific reading can be named.
const FallbackConcern = "vital sign changes"

// Data is one vital-sign snapshot.
type Data struct {
	HeartRate   float64 `json:"heart_rate"`
	SpO2        float64 `json:"spo2"`
	StressLevel float64 `json:"stress_level"`
}

// Context is the human-readable summary of an alert.
type Context struct {
	ConcernText string   `json:"concernText"`
	Severity    Severity `json:"severity"`
}

// BuildContext derives the concern text and severity for an alert.
// Only high alerts inspect thresholds; every other type is moderate.
func BuildContext(data Data, alertType AlertType) Context {
	if alertType != AlertHigh {
		return Context{ConcernText: FallbackConcern, Severity: SeverityModerate}
	}

	var concerns []string
	if data.HeartRate > MaxHeartRate || data.HeartRate < MinHeartRate {
		concerns = append(concerns, "HR="+formatReading(data.HeartRate))
	}
	if data.SpO2 < MinSpO2 {
		concerns = append(concerns, fmt.Sprintf("SpO2=%s%%", formatReading(data.SpO2)))
	}
	if data.StressLevel > MaxStress {
		concerns = append(concerns, "Stress="+formatReading(data.StressLevel))
	}

	text := strings.Join(concerns, " and ")
	if text == "" {
		text = FallbackConcern
	}
	return Context{ConcernText: text, Severity: SeveritySevere}
}

// formatReading prints integral readings without a decimal point.
func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
