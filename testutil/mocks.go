package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockTwitchServer fakes the Helix and id.twitch.tv endpoints the bot calls.
// Handlers are keyed by URL path.
type MockTwitchServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
}

// NewMockTwitchServer starts a server that answers 404 until handlers are added.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		h, ok := m.handlers[r.URL.Path]
		m.hits[r.URL.Path]++
		m.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers h for path.
func (m *MockTwitchServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

// Hits reports how many requests reached path.
func (m *MockTwitchServer) Hits(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

// MockUsers answers /helix/users?login=... from a login to id table. Unknown
// logins get an empty data array, as Helix does.
func (m *MockTwitchServer) MockUsers(ids map[string]string) {
	m.Handle("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		type user struct {
			ID    string `json:"id"`
			Login string `json:"login"`
		}
		data := []user{}
		for _, login := range r.URL.Query()["login"] {
			if id, ok := ids[login]; ok {
				data = append(data, user{ID: id, Login: login})
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": data})
	})
}

// MockTokenResponse answers /oauth2/token with a fixed grant.
func (m *MockTwitchServer) MockTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handle("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"scope":         []string{"chat:read", "chat:edit"},
			"token_type":    "bearer",
		})
	})
}

// MockStatus makes path answer with status and an error body.
func (m *MockTwitchServer) MockStatus(path string, status int) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]any{"status": status, "message": http.StatusText(status)})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}
