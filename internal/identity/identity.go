// Package identity resolves the participant id a request acts for.
package identity

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	CookieName = "study_pid"
	HeaderName = "X-Participant-ID"
	QueryParam = "pid"
	cookieTTL  = 90 * 24 * time.Hour
	maxIDRunes = 128
)

// ErrInvalidParticipantID is returned when a supplied id cannot be used as-is.
var ErrInvalidParticipantID = errors.New("invalid participant id")

type contextKey int

const participantIDKey contextKey = iota

type resolved struct {
	id  string
	err error
}

// ParticipantIDFromContext returns the id resolved by Middleware. The error is
// ErrInvalidParticipantID when the request supplied an id that was rejected.
func ParticipantIDFromContext(ctx context.Context) (string, error) {
	if v, ok := ctx.Value(participantIDKey).(resolved); ok {
		return v.id, v.err
	}
	return "", nil
}

// Normalize trims id. Ids are opaque; only control characters, invalid
// UTF-8 and ids longer than 128 characters are rejected. An empty id is not
// an error.
func Normalize(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", nil
	}
	if !utf8.ValidString(id) || utf8.RuneCountInString(id) > maxIDRunes {
		return "", ErrInvalidParticipantID
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return "", ErrInvalidParticipantID
	}
	return id, nil
}

// FromRequest reads the participant id from the query, header or cookie. The
// first source carrying a non-empty value decides; a malformed value is an
// error and never falls through to a later source.
func FromRequest(r *http.Request) (string, error) {
	if raw := strings.TrimSpace(r.URL.Query().Get(QueryParam)); raw != "" {
		return Normalize(raw)
	}
	if raw := strings.TrimSpace(r.Header.Get(HeaderName)); raw != "" {
		return Normalize(raw)
	}
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", nil
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", ErrInvalidParticipantID
	}
	return Normalize(raw)
}

// SetCookie remembers the participant id on this device. The value is
// query-escaped so non-ASCII ids survive the cookie jar.
func SetCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    url.QueryEscape(id),
		Path:     "/",
		MaxAge:   int(cookieTTL.Seconds()),
		Expires:  time.Now().Add(cookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// Middleware injects the participant id, when one is present, into the request context.
// Requests without an id pass through; handlers decide whether one is required,
// and see the rejection when the supplied id was malformed.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := FromRequest(r)
		if id != "" || err != nil {
			r = r.WithContext(context.WithValue(r.Context(), participantIDKey, resolved{id: id, err: err}))
		}
		next.ServeHTTP(w, r)
	})
}
