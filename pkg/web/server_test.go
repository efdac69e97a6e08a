package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/miravoice/mira/pkg/contacts"
	"github.com/miravoice/mira/pkg/session"
	"github.com/miravoice/mira/pkg/transcript"
)

// fakeController implements SessionController without any audio.
type fakeController struct {
	state       session.State
	muted       bool
	connects    int
	disconnects int
	failConnect bool
}

func (f *fakeController) Connect(ctx context.Context) error {
	f.connects++
	if f.failConnect {
		return session.ErrNoMicrophone
	}
	f.state = session.StateOpen
	return nil
}

func (f *fakeController) Disconnect() {
	f.disconnects++
	f.state = session.StateClosed
}

func (f *fakeController) SetMuted(m bool)      { f.muted = m }
func (f *fakeController) Muted() bool          { return f.muted }
func (f *fakeController) State() session.State { return f.state }

func newTestServer(t *testing.T, ctrl *fakeController) *Server {
	t.Helper()
	log, err := transcript.NewLog(nil, nil)
	if err != nil {
		t.Fatalf("NewLog() error: %v", err)
	}
	store, err := contacts.NewStore(filepath.Join(t.TempDir(), "contacts.json"))
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return NewServer(
		Config{Port: "0", StaticDir: t.TempDir()},
		Deps{Session: ctrl, Transcript: log, Contacts: store},
		nil,
	)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	ctrl := &fakeController{state: session.StateIdle}
	s := newTestServer(t, ctrl)

	resp := doJSON(t, s, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != session.StateIdle || st.Muted {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestSessionEndpoints(t *testing.T) {
	ctrl := &fakeController{state: session.StateIdle}
	s := newTestServer(t, ctrl)

	resp := doJSON(t, s, http.MethodPost, "/api/session/connect", nil)
	if resp.StatusCode != http.StatusOK || ctrl.connects != 1 {
		t.Fatalf("connect: status=%d connects=%d", resp.StatusCode, ctrl.connects)
	}

	resp = doJSON(t, s, http.MethodPost, "/api/session/mute", MuteRequest{Muted: true})
	if resp.StatusCode != http.StatusOK || !ctrl.muted {
		t.Fatalf("mute: status=%d muted=%v", resp.StatusCode, ctrl.muted)
	}

	resp = doJSON(t, s, http.MethodPost, "/api/session/disconnect", nil)
	if resp.StatusCode != http.StatusOK || ctrl.disconnects != 1 {
		t.Fatalf("disconnect: status=%d disconnects=%d", resp.StatusCode, ctrl.disconnects)
	}
}

func TestSessionConnectFailure(t *testing.T) {
	ctrl := &fakeController{failConnect: true}
	s := newTestServer(t, ctrl)

	resp := doJSON(t, s, http.MethodPost, "/api/session/connect", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestContactsEndpoints(t *testing.T) {
	s := newTestServer(t, &fakeController{})

	resp := doJSON(t, s, http.MethodPost, "/api/contacts", contacts.Contact{
		Name: "Marco", Handle: "+39123", Channel: contacts.ChannelWhatsApp,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}
	var created contacts.Contact
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Error("expected assigned ID")
	}

	resp = doJSON(t, s, http.MethodGet, "/api/contacts", nil)
	var list []contacts.Contact
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(list))
	}

	// Invalid contact rejected.
	resp = doJSON(t, s, http.MethodPost, "/api/contacts", contacts.Contact{Name: "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid create: status = %d", resp.StatusCode)
	}

	resp = doJSON(t, s, http.MethodDelete, "/api/contacts/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete: status = %d", resp.StatusCode)
	}
	resp = doJSON(t, s, http.MethodDelete, "/api/contacts/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing: status = %d", resp.StatusCode)
	}
}

func TestTranscriptEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeController{})
	s.deps.Transcript.AppendFragment(transcript.SenderUser, "ciao")

	resp := doJSON(t, s, http.MethodGet, "/api/transcript", nil)
	var entries []transcript.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "ciao" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestCalendarUnconfigured(t *testing.T) {
	s := newTestServer(t, &fakeController{})

	resp := doJSON(t, s, http.MethodGet, "/api/calendar/status", nil)
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["configured"] != false {
		t.Errorf("unexpected body: %v", body)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/calendar/auth", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("auth: status = %d", resp.StatusCode)
	}
}
