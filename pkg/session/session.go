package session

import (
	"errors"
	"fmt"
	"strings"
)

// PlaceholderID is the session identifier the process starts with, before any
// console traffic has revealed a real one.
const PlaceholderID = "x5NSrl1tGGxzFisSHBHS3"

// RequiredCookies are the cookies every API call must present.
var RequiredCookies = []string{"acn01", "myacinfo", "apple_eesession"}

// Cookie is one entry of the browser cookie jar.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// Session is the authenticated context required by API calls.
type Session struct {
	ID            string
	Cookies       []Cookie
	Authenticated bool

	// Epoch changes on every successful login
	Epoch int
}

// Lookup returns the value of the named cookie.
func (s Session) Lookup(name string) (string, bool) {
	for _, c := range s.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// clone returns a copy that shares no memory with s.
func (s Session) clone() Session {
	out := s
	if s.Cookies != nil {
		out.Cookies = make([]Cookie, len(s.Cookies))
		copy(out.Cookies, s.Cookies)
	}
	return out
}

// ErrNotReady is returned when no authenticated session is available.
var ErrNotReady = errors.New("session is not ready!!!")

// ConnectError reports that the browser could not be launched or attached.
// Without a browser no session can ever be captured.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect browser: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// LoginFailedError reports that the login surface could not be driven.
type LoginFailedError struct {
	Reason string
	Err    error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %v", e.Reason, e.Err)
	}
	return "login failed: " + e.Reason
}

func (e *LoginFailedError) Unwrap() error {
	return e.Err
}

// MissingCookieError reports that the cookie jar lacks a required cookie.
type MissingCookieError struct {
	Name string
}

func (e *MissingCookieError) Error() string {
	return fmt.Sprintf("missing cookie %q in session", e.Name)
}

// CookieHeader builds the Cookie header sent to the console API from the
// three required cookies plus the fixed locale cookies.
func CookieHeader(cookies []Cookie) (string, error) {
	s := Session{Cookies: cookies}

	parts := []string{"dslang=CN-ZH", "site=CHN", "geo=CN"}
	for _, name := range RequiredCookies {
		value, ok := s.Lookup(name)
		if !ok {
			return "", &MissingCookieError{Name: name}
		}
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, "; "), nil
}
