package discord

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeAPI is an in-memory stand-in for the Discord REST API.
type fakeAPI struct {
	mu       sync.Mutex
	server   *httptest.Server
	channels []Channel
	messages []Message
	typing   []string
	listed   int
	nextID   int
	failWith int
	failOnce int // сколько раз подряд ответить 500
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{nextID: 1000}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /channels/{id}/messages", f.createMessage)
	mux.HandleFunc("POST /channels/{id}/typing", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.typing = append(f.typing, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /guilds/{id}/channels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listed++
		writeJSON(w, http.StatusOK, f.channels)
	})
	mux.HandleFunc("POST /guilds/{id}/channels", func(w http.ResponseWriter, r *http.Request) {
		var ch Channel
		_ = json.NewDecoder(r.Body).Decode(&ch)
		f.mu.Lock()
		defer f.mu.Unlock()
		ch.ID = f.id()
		f.channels = append(f.channels, ch)
		writeJSON(w, http.StatusCreated, ch)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) createMessage(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bot test-token" {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "401: Unauthorized", Code: 0})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != 0 {
		writeJSON(w, f.failWith, apiError{Message: "You are being rate limited.", Code: 20028, RetryAfter: 1.5})
		return
	}
	if f.failOnce > 0 {
		f.failOnce--
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}

	var m Message
	_ = json.NewDecoder(r.Body).Decode(&m)
	m.ID = f.id()
	m.ChannelID = r.PathValue("id")
	f.messages = append(f.messages, m)
	writeJSON(w, http.StatusOK, m)
}

func (f *fakeAPI) id() string {
	f.nextID++
	return fmt.Sprint(f.nextID)
}

func (f *fakeAPI) client() *Client {
	return NewClient(f.server.URL, "test-token", 0, 5*time.Second)
}

func (f *fakeAPI) sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}
