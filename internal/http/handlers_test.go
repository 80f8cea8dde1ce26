package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"triageroom/internal/core"
	"triageroom/internal/engine"
	"triageroom/internal/escalation"
	"triageroom/internal/store"
	"triageroom/pkg"
)

func setup(t *testing.T) (http.Handler, *engine.Engine) {
	t.Helper()
	mem := store.NewMemory()
	eng := engine.New(mem, escalation.NewDetector(escalation.DefaultPhrases), 20*time.Minute, 60*time.Minute)
	return NewServer(eng).Router(), eng
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, role pkg.Role) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Actor-Role", string(role))
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	resp := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{"subject": "patient-9"}, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Session      pkg.Session `json:"session"`
		NextQuestion string      `json:"next_question"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Session.State != pkg.StateIntake {
		t.Fatalf("new session state %s", out.Session.State)
	}
	if out.NextQuestion == "" {
		t.Fatal("expected first intake question")
	}
	return out.Session.ID
}

func finishIntake(t *testing.T, h http.Handler, id string) {
	t.Helper()
	for i := range core.IntakeSchema {
		resp := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/answers",
			map[string]string{"answer": fmt.Sprintf("answer %d", i)}, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("answer %d: %d %s", i, resp.Code, resp.Body.String())
		}
	}
}

func TestCreateSessionRequiresSubject(t *testing.T) {
	h, _ := setup(t)
	resp := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{}, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", resp.Code)
	}
}

func TestIntakeToQueueFlow(t *testing.T) {
	h, eng := setup(t)
	id := createSession(t, h)
	finishIntake(t, h, id)

	got, err := eng.Store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != pkg.StateWaitingForNurse {
		t.Fatalf("state after intake: %s", got.State)
	}

	resp := doJSON(t, h, http.MethodGet, "/api/nurse/queue", nil, pkg.RoleNurse)
	if resp.Code != http.StatusOK {
		t.Fatalf("queue: %d", resp.Code)
	}
	var queue struct {
		Entries []pkg.QueueEntry `json:"entries"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &queue); err != nil {
		t.Fatal(err)
	}
	if len(queue.Entries) != 1 || queue.Entries[0].SessionID != id {
		t.Fatalf("unexpected queue: %+v", queue.Entries)
	}
}

func TestEmergencyEndpointEscalates(t *testing.T) {
	h, _ := setup(t)
	id := createSession(t, h)

	resp := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/emergency", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("emergency: %d %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Session pkg.Session `json:"session"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Session.State != pkg.StateUrgent || !out.Session.Urgent {
		t.Fatalf("state=%s urgent=%v", out.Session.State, out.Session.Urgent)
	}
}

func TestPatientCompletionForbidden(t *testing.T) {
	h, _ := setup(t)
	id := createSession(t, h)
	finishIntake(t, h, id)

	if resp := doJSON(t, h, http.MethodPost, "/api/nurse/sessions/"+id+"/open", nil, pkg.RoleNurse); resp.Code != http.StatusOK {
		t.Fatalf("nurse open: %d", resp.Code)
	}
	resp := doJSON(t, h, http.MethodPost, "/api/nurse/sessions/"+id+"/complete",
		map[string]string{"note": "all good"}, pkg.RolePatient)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("patient complete: got %d want 403", resp.Code)
	}

	resp = doJSON(t, h, http.MethodPost, "/api/nurse/sessions/"+id+"/complete",
		map[string]string{"note": "advised follow-up"}, pkg.RoleNurse)
	if resp.Code != http.StatusOK {
		t.Fatalf("nurse complete: got %d %s", resp.Code, resp.Body.String())
	}
}

func TestMessageToClosedSessionGone(t *testing.T) {
	h, _ := setup(t)
	id := createSession(t, h)
	finishIntake(t, h, id)

	if resp := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/close", nil, ""); resp.Code != http.StatusOK {
		t.Fatalf("close: %d", resp.Code)
	}
	resp := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/messages",
		map[string]string{"content": "anyone there?"}, "")
	if resp.Code != http.StatusGone {
		t.Fatalf("message to closed: got %d want 410", resp.Code)
	}
}

func TestUnknownSessionNotFound(t *testing.T) {
	h, _ := setup(t)
	resp := doJSON(t, h, http.MethodGet, "/api/sessions/00000000-0000-0000-0000-000000000000", nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("got %d want 404", resp.Code)
	}
}

func TestInvalidTransitionConflict(t *testing.T) {
	h, _ := setup(t)
	id := createSession(t, h)

	// Nurse cannot open a session that is still in intake.
	resp := doJSON(t, h, http.MethodPost, "/api/nurse/sessions/"+id+"/open", nil, pkg.RoleNurse)
	if resp.Code != http.StatusConflict {
		t.Fatalf("open during intake: got %d want 409", resp.Code)
	}
}

func TestSessionTranscriptReturned(t *testing.T) {
	h, _ := setup(t)
	id := createSession(t, h)
	doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/answers", map[string]string{"answer": "headache"}, "")

	resp := doJSON(t, h, http.MethodGet, "/api/sessions/"+id, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("get session: %d", resp.Code)
	}
	var out struct {
		Messages     []pkg.Message `json:"messages"`
		NextQuestion string        `json:"next_question"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) < 2 {
		t.Fatalf("expected question and answer in transcript, got %d messages", len(out.Messages))
	}
	if out.NextQuestion == "" {
		t.Fatal("expected next question while intake in progress")
	}
}
