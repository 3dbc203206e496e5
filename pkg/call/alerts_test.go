package call

import (
	"fmt"
	"testing"

	"github.com/realtime-ai/wellness-call/pkg/session"
	"github.com/realtime-ai/wellness-call/pkg/vitals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertRegistryCreate(t *testing.T) {
	r := NewAlertRegistry()
	assert.Nil(t, r.LatestResult())

	_, ok := r.Latest()
	assert.False(t, ok)

	a := r.Create(vitals.Data{HeartRate: 120, SpO2: 88, StressLevel: 75}, vitals.AlertHigh, "+15550001")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusInitiated, a.Status)
	assert.Equal(t, "HR=120 and SpO2=88% and Stress=75", a.Vitals.ConcernText)
	assert.Equal(t, vitals.SeveritySevere, a.Vitals.Severity)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, a.ID, latest.ID)

	res := r.LatestResult()
	require.NotNil(t, res)
	assert.Equal(t, StatusInitiated, res.Status)
	assert.Nil(t, res.Outcome)
	assert.Equal(t, a.ID, res.AlertID)
}

func TestAlertRegistryBindAndComplete(t *testing.T) {
	r := NewAlertRegistry()
	a := r.Create(vitals.Data{}, vitals.AlertRoutine, "")

	assert.ErrorIs(t, r.Bind("missing", "CA1"), ErrAlertNotFound)
	require.NoError(t, r.Bind(a.ID, "CA1"))

	bound, ok := r.ForCall("CA1")
	require.True(t, ok)
	assert.Equal(t, a.ID, bound.ID)
	assert.Equal(t, "CA1", bound.CallSid)

	_, ok = r.ForCall("CA2")
	assert.False(t, ok)

	outcome := session.Positive
	r.Complete(a.ID, Result{Outcome: &outcome, Reason: ReasonNormal, CallSid: "CA1", ConversationLength: 4})

	res := r.LatestResult()
	require.NotNil(t, res)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, session.Positive, *res.Outcome)
	assert.Equal(t, a.ID, res.AlertID)

	got, ok := r.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 4, got.Result.ConversationLength)
}

func TestAlertRegistryReturnsCopies(t *testing.T) {
	r := NewAlertRegistry()
	a := r.Create(vitals.Data{}, vitals.AlertRoutine, "")
	a.Status = StatusCompleted

	got, ok := r.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, StatusInitiated, got.Status)
}

func TestAlertRegistryCompleteUnknownAlert(t *testing.T) {
	r := NewAlertRegistry()
	r.Complete("", Result{Reason: ReasonTimeout})

	res := r.LatestResult()
	require.NotNil(t, res)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, r.List())
}

func TestAlertRegistryPrunesCompleted(t *testing.T) {
	r := NewAlertRegistry()
	r.maxAlerts = 3

	var ids []string
	for i := 0; i < 3; i++ {
		a := r.Create(vitals.Data{}, vitals.AlertRoutine, "")
		require.NoError(t, r.Bind(a.ID, fmt.Sprintf("CA%d", i)))
		r.Complete(a.ID, Result{})
		ids = append(ids, a.ID)
	}

	r.Create(vitals.Data{}, vitals.AlertRoutine, "")

	list := r.List()
	assert.Len(t, list, 3)
	_, ok := r.Get(ids[0])
	assert.False(t, ok, "oldest completed alert pruned")
	_, ok = r.ForCall("CA0")
	assert.False(t, ok)
	_, ok = r.Get(ids[1])
	assert.True(t, ok)
}

func TestAlertRegistryAgesOutUncalledAlerts(t *testing.T) {
	r := NewAlertRegistry()
	r.maxAlerts = 2

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, r.Create(vitals.Data{}, vitals.AlertRoutine, "").ID)
	}

	assert.Len(t, r.List(), 2)
	_, ok := r.Get(ids[0])
	assert.False(t, ok, "oldest uncalled alert aged out")
	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, ids[3], latest.ID)
}

func TestAlertRegistryPrefersDroppingUnboundAlerts(t *testing.T) {
	r := NewAlertRegistry()
	r.maxAlerts = 2

	inCall := r.Create(vitals.Data{}, vitals.AlertRoutine, "")
	require.NoError(t, r.Bind(inCall.ID, "CA1"))
	uncalled := r.Create(vitals.Data{}, vitals.AlertRoutine, "")
	r.Create(vitals.Data{}, vitals.AlertRoutine, "")

	_, ok := r.Get(uncalled.ID)
	assert.False(t, ok)
	a, ok := r.ForCall("CA1")
	require.True(t, ok, "alert bound to a live call is kept")
	assert.Equal(t, inCall.ID, a.ID)
}

func TestAlertRegistryRebindDropsPreviousCall(t *testing.T) {
	r := NewAlertRegistry()
	a := r.Create(vitals.Data{}, vitals.AlertRoutine, "")

	require.NoError(t, r.Bind(a.ID, "CA1"))
	require.NoError(t, r.Bind(a.ID, "CA2"))

	_, ok := r.ForCall("CA1")
	assert.False(t, ok)
	got, ok := r.ForCall("CA2")
	require.True(t, ok)
	assert.Equal(t, "CA2", got.CallSid)
	assert.Len(t, r.byCall, 1)
}
