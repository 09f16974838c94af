package admin

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
)

// tokenAuth gates every admin route behind a constant-time comparison of
// the configured admin token against the Authorization: Bearer or
// X-Admin-Token header. When no token is configured, the gate falls back
// to localhost-only access, per §6's "admin access policy" requirement
// that the surface never be open by default.
func (s *Server) tokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminCfg.Token == "" {
			if !isLocalhost(r.RemoteAddr) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "admin surface requires a token or localhost access")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !constantTimeTokenMatch(s.adminCfg.Token, requestToken(r)) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("X-Admin-Token"); h != "" {
		return h
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func constantTimeTokenMatch(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func isLocalhost(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
