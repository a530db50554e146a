package repl_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeduel/internal/cli/command"
	httpclient "codeduel/internal/cli/http"
	"codeduel/internal/cli/repl"
	"codeduel/internal/cli/state"
)

type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) SetPrompt(prompt string) {
	r.prompts = append(r.prompts, prompt)
}

type recorded struct {
	method string
	uri    string
	auth   string
	body   map[string]string
}

func newServer(t *testing.T, calls *[]recorded) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recorded{method: r.Method, uri: r.URL.RequestURI(), auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&call.body)
		}
		*calls = append(*calls, call)
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/end") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":14000,"message":"Room not found","trace_id":"t-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"message":"Success","data":{}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSessionRun(t *testing.T) {
	var calls []recorded
	server := newServer(t, &calls)
	statePath := filepath.Join(t.TempDir(), "state.json")
	st := state.Session{}
	client := httpclient.New(server.URL, time.Second, func() string { return st.AccessToken })
	out := &bytes.Buffer{}
	session := repl.New(client, command.Registry(), &st, statePath, false, out)

	reader := &scriptedReader{lines: []string{
		"tournament details",
		"r0",
		"set room r1",
		"set token abc",
		"tournament round",
		"tournament leave player=p9",
		"tournament end",
		"bogus cmd",
		"exit",
		"tournament start",
	}}
	session.Run(context.Background(), reader)

	if len(calls) != 4 {
		t.Fatalf("expected 4 requests, got %d: %+v", len(calls), calls)
	}
	if calls[0].method != http.MethodGet || calls[0].uri != "/api/v1/tournament/details?roomId=r0" || calls[0].auth != "" {
		t.Fatalf("prompted room not used: %+v", calls[0])
	}
	if calls[1].uri != "/api/v1/tournament/round" || calls[1].body["roomId"] != "r1" || calls[1].auth != "Bearer abc" {
		t.Fatalf("unexpected round call %+v", calls[1])
	}
	if calls[2].body["playerId"] != "p9" || calls[2].body["roomId"] != "r1" {
		t.Fatalf("unexpected leave call %+v", calls[2])
	}
	found := false
	for _, p := range reader.prompts {
		if p == "room_id: " {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a room_id prompt, got %v", reader.prompts)
	}
	if len(reader.lines) != 1 {
		t.Fatalf("exit should stop the session, %d lines left", len(reader.lines))
	}

	text := out.String()
	for _, want := range []string{"room updated", "14000 Room not found", "trace: t-1", "unknown command: bogus cmd", "bye"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}

	saved, err := state.Load(statePath)
	if err != nil || saved.RoomID != "r1" || saved.AccessToken != "abc" {
		t.Fatalf("session not persisted: %+v %v", saved, err)
	}
}
