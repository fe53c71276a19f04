package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

func TestSSEStreamsUntilFinished(t *testing.T) {
	server, service, _ := newTestServer(t)
	ctx := context.Background()

	session, err := service.StartSession(ctx, testParticipants())
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(server.URL + "/sessions/" + session.ID + "/stream?userId=u1")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var phases []domain.Phase
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Type string           `json:"type"`
			Data domain.StateView `json:"data"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Type != "state" {
			t.Fatalf("expected state event, got %s", ev.Type)
		}
		phases = append(phases, ev.Data.Phase)
		if len(phases) == 1 {
			if err := service.FinishSession(ctx, session.ID); err != nil {
				t.Fatalf("finish: %v", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}

	if len(phases) != 2 || phases[0] != domain.PhaseQuestion || phases[1] != domain.PhaseFinished {
		t.Fatalf("expected question then finished, got %v", phases)
	}
}

func TestSSEReportsPollFailure(t *testing.T) {
	store := newFlakyStore()
	server, service, _ := newTestServerWithStore(t, store)

	session, err := service.StartSession(context.Background(), testParticipants())
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(server.URL + "/sessions/" + session.ID + "/stream?userId=u1")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var types []string
	var last struct {
		Type  string `json:"type"`
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		types = append(types, last.Type)
		if len(types) == 1 {
			store.down.Store(true)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}

	if len(types) != 2 || types[0] != "state" || types[1] != "error" {
		t.Fatalf("expected state then error, got %v", types)
	}
	if last.Error != errStoreDown.Error() || last.Code != "internal" {
		t.Fatalf("unexpected error event %+v", last)
	}
}

func TestSSEUnknownSession(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/sessions/missing/stream?userId=u1")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
