package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/emosense/authd/internal/auth"
	"github.com/emosense/authd/internal/middleware"
	"github.com/emosense/authd/internal/model"
	"github.com/emosense/authd/internal/template"
	"go.uber.org/zap"
)

type handlers struct {
	log        *zap.Logger
	auth       *auth.Manager
	sessions   *middleware.SessionManager
	otpLimiter *identifierLimiter
}

type credentialsRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type otpRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type classificationRequest struct {
	Classification string `json:"classification"`
}

type loginResponse struct {
	User        *model.User `json:"user"`
	Destination string      `json:"destination"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.auth.LoginWithPassword(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.sessions.SetUser(r.Context(), user)
	respondJSON(w, http.StatusOK, loginResponse{
		User:        user,
		Destination: h.destination(),
	})
}

func (h *handlers) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Identifier != "" && !h.otpLimiter.allow(req.Identifier) {
		respondJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "too many passcode requests",
		})
		return
	}

	receipt, err := h.auth.RequestOTP(r.Context(), req.Identifier)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// The code is echoed back because no real delivery channel exists.
	respondJSON(w, http.StatusOK, map[string]any{
		"code":            receipt.Code,
		"validityMinutes": receipt.ValidityMinutes,
	})
}

func (h *handlers) loginOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.auth.LoginWithOTP(r.Context(), req.Identifier, req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.sessions.SetUser(r.Context(), user)
	respondJSON(w, http.StatusOK, loginResponse{
		User:        user,
		Destination: h.destination(),
	})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.Register(r.Context(), req.Identifier, req.Secret); err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.sessions.Clear(r.Context()); err != nil {
		h.log.Warn("failed clearing browser session", zap.Error(err))
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": h.auth.IsAuthenticated(),
		"user":          h.auth.CurrentUser(),
	})
}

func (h *handlers) giveConsent(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.GiveConsent(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"destination": "/user-classification",
	})
}

func (h *handlers) setClassification(w http.ResponseWriter, r *http.Request) {
	var req classificationRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.SetClassification(r.Context(), req.Classification); err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"destination": auth.PostLoginPath,
	})
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	if h.auth.IsAuthenticated() {
		http.Redirect(w, r, auth.PostLoginPath, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// destination picks where a freshly logged-in user lands: the consent gate
// until onboarding completes, the journal afterwards.
func (h *handlers) destination() string {
	profile := h.auth.Profile()
	if !profile.ConsentGiven {
		return "/consent-form"
	}
	if !profile.ClassificationDone {
		return "/user-classification"
	}

	return auth.PostLoginPath
}

func (h *handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", &template.Data{PageTitle: "login"})
}

func (h *handlers) registerPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", &template.Data{PageTitle: "register"})
}

func (h *handlers) journalPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "journal.html", &template.Data{
		PageTitle:   "journal",
		DisplayName: h.displayName(),
	})
}

func (h *handlers) profilePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "profile.html", &template.Data{
		PageTitle:   "profile",
		DisplayName: h.displayName(),
	})
}

func (h *handlers) consentPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "consent.html", &template.Data{PageTitle: "consent"})
}

func (h *handlers) classificationPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "classification.html", &template.Data{
		PageTitle:   "classification",
		Destination: auth.PostLoginPath,
	})
}

func (h *handlers) displayName() string {
	if u := h.auth.CurrentUser(); u != nil {
		return u.DisplayName
	}
	return ""
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, tmpl string, td *template.Data) {
	if err := template.Render(w, r, tmpl, td); err != nil {
		h.log.Error("failed rendering page", zap.String("template", tmpl), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrBusy):
		status = http.StatusConflict
	}

	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
