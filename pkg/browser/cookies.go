package browser

import (
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/enroll/pkg/session"
)

// cookiesFromCDP converts a Network.getAllCookies result.
func cookiesFromCDP(result interface{}) ([]session.Cookie, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cdp result: %w", err)
	}

	var payload struct {
		Cookies []session.Cookie `json:"cookies"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode cdp cookies: %w", err)
	}
	if payload.Cookies == nil {
		return nil, fmt.Errorf("cdp result has no cookies field")
	}
	return payload.Cookies, nil
}

func cookiesFromContext(cookies []playwright.Cookie) []session.Cookie {
	out := make([]session.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		})
	}
	return out
}
