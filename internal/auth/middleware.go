package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

var publicAPIPaths = map[string]struct{}{
	"/api/health": {},
}

// publicAPIPrefixes covers token-addressed routes: public share links carry
// their own capability token, so no session is required.
var publicAPIPrefixes = []string{
	"/api/s/",
}

func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		if _, ok := publicAPIPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range publicAPIPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w)
			return
		}

		claims, err := s.ParseToken(token)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		if s.provisioner != nil {
			if err := s.provisioner.EnsureUser(r.Context(), claims.UserID, claims.Email, claims.Name); err != nil {
				log.Warn().Err(err).Int64("user", claims.UserID).Msg("failed to provision user")
			}
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "Unauthorized",
	})
}
