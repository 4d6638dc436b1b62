package transport

import (
	"encoding/base64"
	"net/http"
)

// Auth applies credentials to an outgoing request.
type Auth interface {
	Apply(req *http.Request)
}

// NoAuth sends no credentials.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) {}

// BasicAuth uses HTTP Basic Authentication (Jira username and API token).
type BasicAuth struct {
	Username string
	Password string
}

// Apply adds the Basic auth header.
func (a BasicAuth) Apply(req *http.Request) {
	if a.Username == "" && a.Password == "" {
		return
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	req.Header.Set("Authorization", "Basic "+credentials)
}

// BearerToken uses a pre-issued access token.
type BearerToken struct {
	Token string
}

// Apply adds the Bearer header.
func (a BearerToken) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}
