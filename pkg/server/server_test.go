package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/realtime-ai/wellness-call/pkg/call"
	"github.com/realtime-ai/wellness-call/pkg/session"
	"github.com/realtime-ai/wellness-call/pkg/telephony"
	"github.com/realtime-ai/wellness-call/pkg/twiml"
	"github.com/realtime-ai/wellness-call/pkg/vitals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReplier struct{}

func (stubReplier) Reply(context.Context, string, []session.Message, string, session.EmotionalState) string {
	return "Tell me more about that."
}

type stubAssessor struct{ state session.EmotionalState }

func (a stubAssessor) Assess(context.Context, string, []session.Message, session.EmotionalState) session.EmotionalState {
	return a.state
}

type fakeDialer struct {
	sid     string
	err     error
	to      string
	webhook string
}

func (d *fakeDialer) Originate(_ context.Context, to, webhookURL string) (string, error) {
	d.to, d.webhook = to, webhookURL
	return d.sid, d.err
}

type brokenStore struct {
	*session.MemoryStore
}

func (brokenStore) Get(context.Context, string) (*session.CallSession, bool, error) {
	return nil, false, errors.New("store down")
}

func (brokenStore) Count(context.Context) (int, error) {
	return 0, errors.New("store down")
}

func vitalsHigh() vitals.Data {
	return vitals.Data{HeartRate: 120, SpO2: 88, StressLevel: 75}
}

type testServer struct {
	srv    *WellnessServer
	orch   *call.Orchestrator
	store  *session.MemoryStore
	dialer *fakeDialer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := session.NewMemoryStore()
	orch := call.NewOrchestrator(call.DefaultConfig(), store, call.NewAlertRegistry(), stubReplier{}, stubAssessor{state: session.Neutral})
	dialer := &fakeDialer{sid: "CA-new"}
	srv := New(Config{
		PublicURL:   "https://calls.example.com",
		UserNumber:  "+15550100",
		Environment: map[string]string{"TWILIO_AUTH_TOKEN": "Set"},
	}, orch, dialer, NewEventHub())

	return &testServer{srv: srv, orch: orch, store: store, dialer: dialer}
}

func (ts *testServer) do(t *testing.T, method, target, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postJSON(t *testing.T, target, body string) *httptest.ResponseRecorder {
	return ts.do(t, http.MethodPost, target, body, "application/json")
}

func (ts *testServer) postForm(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	return ts.do(t, http.MethodPost, target, form.Encode(), "application/x-www-form-urlencoded")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStartTherapeuticCall(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postJSON(t, "/start-therapeutic-call",
		`{"vitalData":{"heart_rate":120,"spo2":88,"stress_level":75},"alertType":"high_alert","phoneNumber":"+15550123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "HR=120 and SpO2=88% and Stress=75", body["vitalsContext"])
	alertID, _ := body["alertId"].(string)
	require.NotEmpty(t, alertID)

	alert, ok := ts.orch.Alerts().Get(alertID)
	require.True(t, ok)
	assert.Equal(t, "+15550123", alert.PhoneNumber)
	assert.Equal(t, call.StatusInitiated, ts.orch.Alerts().LatestResult().Status)
}

func TestStartTherapeuticCallValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing vitalData", `{"alertType":"high_alert"}`},
		{"missing alertType", `{"vitalData":{"heart_rate":120}}`},
		{"empty body", ``},
		{"invalid json", `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.postJSON(t, "/start-therapeutic-call", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	_, ok := ts.orch.Alerts().Latest()
	assert.False(t, ok, "no alert created")
}

func TestVoiceWebhookGreets(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/voice", url.Values{"CallSid": {"CA1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, twiml.ContentType, rec.Header().Get("Content-Type"))

	doc := rec.Body.String()
	assert.Contains(t, doc, "Dr. Sarah")
	assert.Contains(t, doc, `input="speech"`)
	assert.Contains(t, doc, `action="/process-speech"`)
	assert.Contains(t, doc, "/voice-timeout")

	sess, ok, err := ts.store.Get(context.Background(), "CA1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.Neutral, sess.EmotionalState)
	assert.Empty(t, sess.Transcript)
}

func TestVoiceWebhookBindsAlertFromQuery(t *testing.T) {
	ts := newTestServer(t)
	first := ts.orch.Alerts().Create(vitalsHigh(), "high_alert", "")
	ts.orch.Alerts().Create(vitalsHigh(), "high_alert", "")

	rec := ts.postForm(t, "/voice?alertId="+first.ID, url.Values{"CallSid": {"CA1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	bound, ok := ts.orch.Alerts().ForCall("CA1")
	require.True(t, ok)
	assert.Equal(t, first.ID, bound.ID)
}

func TestVoiceWebhookRequiresCallSid(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/voice", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessSpeechFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.postForm(t, "/voice", url.Values{"CallSid": {"CA1"}})

	rec := ts.postForm(t, "/process-speech", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"Not great, my chest feels tight"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tell me more about that.")
	assert.NotContains(t, rec.Body.String(), "<Hangup>")

	rec = ts.postForm(t, "/process-speech", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"I am okay now"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Hangup>")

	_, ok, err := ts.store.Get(context.Background(), "CA1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessSpeechCrisis(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/process-speech", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"I want to kill myself"}})
	require.Equal(t, http.StatusOK, rec.Code)

	doc := rec.Body.String()
	assert.Contains(t, doc, "988")
	assert.Contains(t, doc, "emergency room")
	assert.Contains(t, doc, "<Hangup>")
}

func TestProcessSpeechEmpty(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/process-speech", url.Values{"CallSid": {"CA1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could you please tell me how you")
	assert.NotContains(t, rec.Body.String(), "<Hangup>")
}

func TestVoiceTimeoutRetriesThenEnds(t *testing.T) {
	ts := newTestServer(t)
	ts.postForm(t, "/voice", url.Values{"CallSid": {"CA1"}})

	rec := ts.postForm(t, "/voice-timeout", url.Values{"CallSid": {"CA1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Are you still there?")
	assert.Contains(t, rec.Body.String(), `timeout="10"`)

	rec = ts.postForm(t, "/voice-timeout", url.Values{"CallSid": {"CA1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Hangup>")
	assert.Equal(t, call.ReasonTimeout, ts.orch.Alerts().LatestResult().Reason)
}

func TestWebhookStoreFailureSpeaksTrouble(t *testing.T) {
	store := brokenStore{session.NewMemoryStore()}
	orch := call.NewOrchestrator(call.DefaultConfig(), store, call.NewAlertRegistry(), stubReplier{}, stubAssessor{})
	srv := New(Config{}, orch, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/process-speech",
		strings.NewReader(url.Values{"CallSid": {"CA1"}, "SpeechResult": {"hello"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trouble processing that")
	assert.Contains(t, rec.Body.String(), "<Gather")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTriggerTherapeuticCall(t *testing.T) {
	ts := newTestServer(t)
	alert := ts.orch.Alerts().Create(vitalsHigh(), "high_alert", "+15550123")

	rec := ts.postJSON(t, "/trigger-therapeutic-call", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "CA-new", body["callSid"])
	assert.Equal(t, "+15550123", body["phoneNumber"])
	assert.Equal(t, alert.ID, body["alertId"])

	assert.Equal(t, "+15550123", ts.dialer.to)
	assert.Equal(t, "https://calls.example.com/voice?alertId="+alert.ID, ts.dialer.webhook)

	bound, ok := ts.orch.Alerts().ForCall("CA-new")
	require.True(t, ok)
	assert.Equal(t, alert.ID, bound.ID)
}

func TestTriggerTherapeuticCallExplicitNumber(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postJSON(t, "/trigger-therapeutic-call", `{"phoneNumber":"+15559999"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+15559999", ts.dialer.to)
	assert.Equal(t, "https://calls.example.com/voice", ts.dialer.webhook)
}

func TestTriggerTherapeuticCallUnknownAlert(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postJSON(t, "/trigger-therapeutic-call", `{"alertId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, ts.dialer.to)
}

func TestTriggerCallNoNumber(t *testing.T) {
	store := session.NewMemoryStore()
	orch := call.NewOrchestrator(call.DefaultConfig(), store, call.NewAlertRegistry(), stubReplier{}, stubAssessor{})
	dialer := &fakeDialer{sid: "CA-new"}
	srv := New(Config{PublicURL: "https://calls.example.com"}, orch, dialer, nil)

	req := httptest.NewRequest(http.MethodPost, "/trigger-therapeutic-call", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, dialer.to)
}

func TestTriggerCallProviderFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.dialer.err = errors.New("twilio unavailable")

	rec := ts.do(t, http.MethodGet, "/trigger-call", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "+15550100", ts.dialer.to)

	body := decode(t, rec)
	assert.Equal(t, "Failed to initiate call", body["error"])
}

func TestTriggerCallWithoutDialer(t *testing.T) {
	store := session.NewMemoryStore()
	orch := call.NewOrchestrator(call.DefaultConfig(), store, call.NewAlertRegistry(), stubReplier{}, stubAssessor{})
	srv := New(Config{UserNumber: "+15550100"}, orch, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/trigger-call", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), telephony.ErrNotConfigured.Error())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Nil(t, body["callResult"])
	assert.Nil(t, body["callContext"])
	assert.Equal(t, float64(0), body["activeConversations"])

	ts.do(t, http.MethodGet, "/test-vital-alert", "", "")
	ts.postForm(t, "/voice", url.Values{"CallSid": {"CA1"}})

	rec = ts.do(t, http.MethodGet, "/health", "", "")
	body = decode(t, rec)
	assert.Equal(t, float64(1), body["activeConversations"])
	assert.Equal(t, map[string]any{"status": "initiated"}, body["callContext"])
	result, _ := body["callResult"].(map[string]any)
	assert.Equal(t, "initiated", result["status"])
}

func TestTestVitalAlert(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/test-vital-alert", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "HR=120 and SpO2=88% and Stress=75", body["vitalsContext"])

	latest, ok := ts.orch.Alerts().Latest()
	require.True(t, ok)
	assert.Equal(t, latest.ID, body["alertId"])
	assert.Equal(t, "+15550100", latest.PhoneNumber)
}

func TestDebug(t *testing.T) {
	ts := newTestServer(t)
	ts.postForm(t, "/process-speech", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"A bit tired"}})

	rec := ts.do(t, http.MethodGet, "/debug", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	conversations, _ := body["conversations"].(map[string]any)
	assert.Len(t, conversations["CA1"], 2)
	states, _ := body["emotionalState"].(map[string]any)
	assert.Equal(t, "NEUTRAL", states["CA1"])
	assert.Equal(t, map[string]any{"TWILIO_AUTH_TOKEN": "Set"}, body["environment"])
}

func TestVoiceURL(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, "https://calls.example.com/voice", ts.srv.voiceURL(""))
	assert.Equal(t, "https://calls.example.com/voice?alertId=a+b", ts.srv.voiceURL("a b"))
}
