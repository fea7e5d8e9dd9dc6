package shared

import (
	"net/http"
	"net/url"
)

// RequireUser resolves the session user into the request context. Anonymous
// browser requests are redirected to loginPath with a next parameter; when
// unauthorized is set it handles anonymous requests instead.
func RequireUser(loginPath string, unauthorized http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if id := sess.UserID(); id > 0 {
				ctx := ContextWithUser(r.Context(), CurrentUser{ID: id, Username: sess.Username()})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if unauthorized != nil {
				unauthorized.ServeHTTP(w, r)
				return
			}
			target := loginPath
			if r.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(r.URL.RequestURI())
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
		})
	}
}
