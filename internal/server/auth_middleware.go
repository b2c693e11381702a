package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authorize checks the configured token. A server without a token is open.
func (s *Server) authorize(r *http.Request) error {
	if s.cfg.Token == "" {
		return nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
