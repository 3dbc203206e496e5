package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildContextRoutine(t *testing.T) {
	snapshots := []Data{
		{HeartRate: 70, SpO2: 98, StressLevel: 20},
		{HeartRate: 150, SpO2: 80, StressLevel: 95},
		{},
	}
	for _, d := range snapshots {
		ctx := BuildContext(d, AlertRoutine)
		assert.Equal(t, SeverityModerate, ctx.Severity)
		assert.Equal(t, FallbackConcern, ctx.ConcernText)
	}

	// Unknown types behave like routine.
	ctx := BuildContext(Data{HeartRate: 150}, AlertType("weekly"))
	assert.Equal(t, SeverityModerate, ctx.Severity)
	assert.Equal(t, FallbackConcern, ctx.ConcernText)
}

func TestBuildContextHighAlert(t *testing.T) {
	ctx := BuildContext(Data{HeartRate: 120, SpO2: 88, StressLevel: 75}, AlertHigh)

	assert.Equal(t, SeveritySevere, ctx.Severity)
	assert.Equal(t, "HR=120 and SpO2=88% and Stress=75", ctx.ConcernText)
}

func TestBuildContextThresholds(t *testing.T) {
	tests := []struct {
		name string
		data Data
		want string
	}{
		{"all normal", Data{HeartRate: 80, SpO2: 97, StressLevel: 40}, FallbackConcern},
		{"boundaries are normal", Data{HeartRate: 110, SpO2: 93, StressLevel: 60}, FallbackConcern},
		{"low heart rate", Data{HeartRate: 45, SpO2: 97}, "HR=45"},
		{"low oxygen", Data{HeartRate: 80, SpO2: 90.5}, "SpO2=90.5%"},
		{"stress only", Data{HeartRate: 80, SpO2: 97, StressLevel: 61}, "Stress=61"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := BuildContext(tt.data, AlertHigh)
			assert.Equal(t, tt.want, ctx.ConcernText)
			assert.Equal(t, SeveritySevere, ctx.Severity)
		})
	}
}
