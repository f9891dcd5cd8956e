package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/logger"
)

// authMiddleware gates the /api surface. Local callers pass through; remote
// callers need the shared function key or, when a secret is configured, an
// HS256 bearer token. With nothing configured the surface stays open, which
// is the local-dev default.
func authMiddleware(cfg *config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.FunctionKey == "" && cfg.JWTSecret == "" {
			next.ServeHTTP(w, r)
			return
		}
		if isLocal(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}
		if cfg.FunctionKey != "" && functionKeyOf(r) == cfg.FunctionKey {
			next.ServeHTTP(w, r)
			return
		}
		if cfg.JWTSecret != "" && validBearer(r, cfg.JWTSecret) {
			next.ServeHTTP(w, r)
			return
		}

		logger.New().WithRequest(r).Warn("rejected unauthenticated request")
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func isLocal(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// functionKeyOf mirrors the Azure Functions convention: header first, then
// the code query parameter.
func functionKeyOf(r *http.Request) string {
	if key := r.Header.Get("x-functions-key"); key != "" {
		return key
	}
	return r.URL.Query().Get("code")
}

func validBearer(r *http.Request, secret string) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	raw := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	return err == nil && token.Valid
}
