package browser

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const sessionIDParam = "sessionID"

// ExtractSessionID returns the sessionID query parameter of rawURL, or "".
func ExtractSessionID(rawURL string) string {
	if !strings.Contains(rawURL, sessionIDParam) {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(sessionIDParam)
}

// Tracker remembers the last session identifier seen in console traffic.
// Observers only record; the session Manager pulls the value.
type Tracker struct {
	mu   sync.Mutex
	last string
}

// ObserveRequest records the identifier of an outgoing POST.
func (t *Tracker) ObserveRequest(method, rawURL string) {
	if method != http.MethodPost {
		return
	}
	t.record(rawURL)
}

// ObserveResponse records the identifier of an incoming response.
func (t *Tracker) ObserveResponse(rawURL string) {
	t.record(rawURL)
}

func (t *Tracker) record(rawURL string) {
	id := ExtractSessionID(rawURL)
	if id == "" {
		return
	}
	t.mu.Lock()
	t.last = id
	t.mu.Unlock()
}

// Last returns the most recent identifier, or "" if none was seen.
func (t *Tracker) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
