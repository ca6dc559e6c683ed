package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	contractx "sellerpilot/agent/contract"
)

type fakeAnalyzer struct {
	res contractx.AnalyzeResponse
	err error
}

func (f *fakeAnalyzer) Analyze(context.Context, contractx.AnalyzeRequest) (contractx.AnalyzeResponse, error) {
	return f.res, f.err
}

type fakeSessions struct {
	rec       contractx.SessionRecord
	lookupErr error
	appends   []contractx.AppendRequest
}

func (f *fakeSessions) Lookup(_ context.Context, sessionID string) (contractx.SessionRecord, error) {
	if f.lookupErr != nil {
		return contractx.SessionRecord{}, f.lookupErr
	}
	rec := f.rec
	rec.SessionID = sessionID
	return rec, nil
}

func (f *fakeSessions) Append(_ context.Context, req contractx.AppendRequest) error {
	f.appends = append(f.appends, req)
	return nil
}

func newTestServer(analyzer Analyzer, sessions Sessions) *Server {
	return New(Config{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second}, analyzer, sessions)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestAnalyzeEndpointOK(t *testing.T) {
	analyzer := &fakeAnalyzer{res: contractx.AnalyzeResponse{SessionID: "s1", RequestID: "r1"}}
	s := newTestServer(analyzer, &fakeSessions{})

	rr := doRequest(t, s, http.MethodPost, "/api/analyze", `{"query": "q", "marketplaces": ["amazon"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", rr.Code, rr.Body)
	}
	var res contractx.AnalyzeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.SessionID != "s1" || res.RequestID != "r1" {
		t.Fatalf("response: %+v", res)
	}
}

func TestAnalyzeEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: query is required", contractx.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: session s1", contractx.ErrSessionLockTimeout), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: all providers exhausted", contractx.ErrLLMUnavailable), http.StatusBadGateway},
		{&contractx.PipelineFailure{Reason: contractx.ErrSchemaViolation, State: "failed"}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}

	for _, tc := range cases {
		s := newTestServer(&fakeAnalyzer{err: tc.err}, &fakeSessions{})
		rr := doRequest(t, s, http.MethodPost, "/api/analyze", `{"query": "q", "marketplaces": ["amazon"]}`)
		if rr.Code != tc.want {
			t.Fatalf("error %v: status %d, want %d", tc.err, rr.Code, tc.want)
		}
	}
}

func TestAnalyzeEndpointRejectsMalformedBody(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{}, &fakeSessions{})
	rr := doRequest(t, s, http.MethodPost, "/api/analyze", `{"query": `)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rr.Code)
	}
}

func TestPipelineFailureBodyCarriesLastPlan(t *testing.T) {
	plan := contractx.ActionPlan{OverallSummary: "last good plan"}
	failure := &contractx.PipelineFailure{
		Reason: contractx.ErrLLMUnavailable,
		State:  "failed",
		Plan:   &plan,
		Trace:  []contractx.StageRecord{{Name: "final_answer", Outcome: contractx.StageFailed}},
	}
	s := newTestServer(&fakeAnalyzer{err: failure}, &fakeSessions{})

	rr := doRequest(t, s, http.MethodPost, "/api/analyze", `{"query": "q", "marketplaces": ["amazon"]}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "last good plan") {
		t.Fatalf("body should carry the last valid plan: %s", rr.Body)
	}
	if !strings.Contains(rr.Body.String(), "execution_trace") {
		t.Fatalf("body should carry the trace: %s", rr.Body)
	}
}

func TestCreateSessionEndpoint(t *testing.T) {
	sessions := &fakeSessions{}
	s := newTestServer(&fakeAnalyzer{}, sessions)

	rr := doRequest(t, s, http.MethodPost, "/api/sessions", `{"seller_id": "seller-1", "seller_name": "Asha"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: %d body: %s", rr.Code, rr.Body)
	}
	var res createSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.SessionID == "" {
		t.Fatal("session id missing")
	}
	if len(sessions.appends) != 1 || sessions.appends[0].SellerName != "Asha" {
		t.Fatalf("appends: %+v", sessions.appends)
	}
}

func TestSessionMessagesEndpoint(t *testing.T) {
	sessions := &fakeSessions{rec: contractx.SessionRecord{
		Messages: []contractx.Message{{Role: contractx.RoleUser, Content: "hello"}},
	}}
	s := newTestServer(&fakeAnalyzer{}, sessions)

	rr := doRequest(t, s, http.MethodGet, "/api/sessions/abc/messages", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}
	var rec contractx.SessionRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.SessionID != "abc" || len(rec.Messages) != 1 {
		t.Fatalf("record: %+v", rec)
	}
}

func TestSessionMessagesEndpointUnknownSessionIs404(t *testing.T) {
	sessions := &fakeSessions{
		lookupErr: fmt.Errorf("%w: nope", contractx.ErrSessionNotFound),
	}
	s := newTestServer(&fakeAnalyzer{}, sessions)

	rr := doRequest(t, s, http.MethodGet, "/api/sessions/nope/messages", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: %d body: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), "session not found") {
		t.Fatalf("body: %s", rr.Body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{}, &fakeSessions{})
	rr := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}
}
