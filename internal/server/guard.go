package server

import "net/http"

// requireAuth gates the protected routes. A request passes only when the
// browser session carries a user and the auth manager still reports an
// authenticated session; everything else redirects to the login view with
// no other side effect.
func (h *handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.sessions.User(r.Context()); err != nil || !h.auth.IsAuthenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}
