package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestUpstashStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashStore{keyPrefix: defaultKeyPrefix}
	got, err := store.redisKey("wa:+911234567890")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "kirana:transcript:wa:+911234567890" {
		t.Fatalf("redisKey() = %q", got)
	}
}

func TestUpstashStoreRedisKeyEmptyTenant(t *testing.T) {
	t.Parallel()

	store := &UpstashStore{keyPrefix: defaultKeyPrefix}
	_, err := store.redisKey("   ")
	if !errors.Is(err, ErrInvalidTenantKey) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidTenantKey", err)
	}
}

func TestUpstashStoreReadMissingTranscriptIsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashStore(
		UpstashConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashStore() error = %v", err)
	}

	got, err := store.ReadTranscript(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("ReadTranscript() error = %v", err)
	}
	if got != "" {
		t.Fatalf("ReadTranscript() = %q, want empty", got)
	}
}

func TestUpstashStoreAppendTurnTrimsWindow(t *testing.T) {
	t.Parallel()

	existing := make([]Turn, 0, 12)
	for i := 0; i < 6; i++ {
		existing = append(existing,
			Turn{Role: "user", Text: fmt.Sprintf("u%d", i), At: time.Now().UTC()},
			Turn{Role: "assistant", Text: fmt.Sprintf("a%d", i), At: time.Now().UTC()},
		)
	}
	payload, err := json.Marshal(existing)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var saved []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		switch cmd[0] {
		case "GET":
			fmt.Fprintf(w, `{"result":%s}`, encoded)
		case "SET":
			saved = cmd
			fmt.Fprint(w, `{"result":"OK"}`)
		default:
			t.Fatalf("unexpected command %v", cmd[0])
		}
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashStore(
		UpstashConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashStore() error = %v", err)
	}

	if err := store.AppendTurn(context.Background(), "tenant-1", "4 maggi", "Done, 20 left."); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	if len(saved) < 3 {
		t.Fatalf("unexpected SET command: %#v", saved)
	}
	if saved[1] != "kirana:transcript:tenant-1" {
		t.Fatalf("SET key = %v", saved[1])
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(saved[2].(string)), &turns); err != nil {
		t.Fatalf("unmarshal saved transcript: %v", err)
	}
	if len(turns) != defaultMaxTurns {
		t.Fatalf("saved %d turns, want %d", len(turns), defaultMaxTurns)
	}
	last := turns[len(turns)-1]
	if last.Role != "assistant" || last.Text != "Done, 20 left." {
		t.Fatalf("last turn = %+v", last)
	}
}

func TestUpstashStoreAppendTurnSetsTTL(t *testing.T) {
	t.Parallel()

	var saved []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		if cmd[0] == "GET" {
			fmt.Fprint(w, `{"result":null}`)
			return
		}
		saved = cmd
		fmt.Fprint(w, `{"result":"OK"}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashStore(
		UpstashConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithTTL(90*time.Second),
	)
	if err != nil {
		t.Fatalf("NewUpstashStore() error = %v", err)
	}

	if err := store.AppendTurn(context.Background(), "tenant-1", "hi", "Namaste!"); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	if len(saved) != 5 || saved[3] != "EX" {
		t.Fatalf("SET command = %#v, want trailing EX <seconds>", saved)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	turns := []Turn{
		{Role: "user", Text: "4 maggi bik gaye"},
		{Role: "assistant", Text: "Done, 20 left."},
	}
	got := Render(turns)
	want := "Shopkeeper: 4 maggi bik gaye\nAssistant: Done, 20 left."
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
	if strings.Contains(Render(nil), "\n") {
		t.Fatal("Render(nil) should be empty")
	}
}
