// Package channels holds pieces shared by the transport adapters.
// Every adapter reduces its inbound payload to an utterance, drives
// the same synthesis pipeline, and lifts the reply into its own
// outbound format without touching the reply text.
package channels

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingQuery is the client-input error for payloads that carry no
// utterance. Adapters surface it as their transport's 400-equivalent.
var ErrMissingQuery = errors.New("channels: no query provided")

// BuildAbsoluteURL reconstructs the externally visible URL of a
// request, honoring forwarding headers set by proxies.
func BuildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}

// BaseURL returns just the scheme://host part of the request URL.
func BaseURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}
