package auth

import (
	"net/http"
	"strings"

	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/httputil"
	"stagepass/pkg/requestcontext"
)

// RequireUser authenticates the Bearer token and puts the caller's user ID
// on the request context. Handlers below it can assume
// requestcontext.UserID is populated.
func RequireUser(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			userID, err := tokens.ExtractUserID(token)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			ctx := requestcontext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
