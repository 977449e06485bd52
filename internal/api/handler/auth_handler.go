package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"social_auth/internal/api/middleware"
	"social_auth/internal/app/service"
	"social_auth/internal/common"
	"social_auth/internal/domain/model"
)

const sessionCookieName = "jwt"

// AuthService is the subset of service.AuthService the handler drives.
type AuthService interface {
	Signup(ctx context.Context, req service.SignupRequest) (*service.AuthResponse, error)
	Login(ctx context.Context, req service.LoginRequest) (*service.AuthResponse, error)
	Logout() (string, time.Time)
	ForgotPassword(ctx context.Context, req service.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req service.ResetPasswordRequest) (*service.AuthResponse, error)
	UpdatePassword(ctx context.Context, userID string, req service.UpdatePasswordRequest) (*service.AuthResponse, error)
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
	Clock  common.Clock
}

type AuthHandler struct {
	authService AuthService
	cookie      CookieConfig
}

func NewAuthHandler(authService AuthService, cookie CookieConfig) *AuthHandler {
	if cookie.Clock == nil {
		cookie.Clock = common.SystemClock{}
	}
	return &AuthHandler{authService: authService, cookie: cookie}
}

type successEnvelope struct {
	Status  string `json:"status"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type userData struct {
	User *model.User `json:"user"`
}

func (h *AuthHandler) RegisterRoutes(r chi.Router, gate *middleware.Gate) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Get("/logout", h.logout)
	r.Post("/forgotPassword", h.forgotPassword)
	r.Patch("/resetPassword", h.resetPassword)
	r.With(gate.Protect).Patch("/updateMyPassword", h.updatePassword)
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	h.respondWithSession(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	h.respondWithSession(w, http.StatusOK, resp)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	token, expires := h.authService.Logout()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	common.RespondWithJSON(w, http.StatusOK, successEnvelope{Status: "success"})
}

func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.authService.ForgotPassword(r.Context(), req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, successEnvelope{Status: "success", Message: "Code sent to email!"})
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.authService.ResetPassword(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	h.respondWithSession(w, http.StatusOK, resp)
}

func (h *AuthHandler) updatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		common.RespondWithDomainError(w, common.ErrUnauthorized)
		return
	}
	var req service.UpdatePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.authService.UpdatePassword(r.Context(), user.ID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	h.respondWithSession(w, http.StatusOK, resp)
}

// respondWithSession sets the session cookie and writes token and user.
func (h *AuthHandler) respondWithSession(w http.ResponseWriter, code int, resp *service.AuthResponse) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    resp.Token,
		Expires:  h.cookie.Clock.Now().Add(h.cookie.TTL),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	common.RespondWithJSON(w, code, successEnvelope{
		Status: "success",
		Token:  resp.Token,
		Data:   userData{User: resp.User},
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}
