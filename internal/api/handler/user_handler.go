package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"social_auth/internal/api/middleware"
	"social_auth/internal/app/service"
	"social_auth/internal/common"
	"social_auth/internal/domain/model"
)

type UserService interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	Profile(ctx context.Context, id string, viewer *model.User) (*service.PublicProfile, error)
}

type UserHandler struct {
	userService UserService
}

func NewUserHandler(userService UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type profileData struct {
	Profile *service.PublicProfile `json:"profile"`
}

// RegisterRoutes mounts the user routes. Static paths are matched before /{id}.
func (h *UserHandler) RegisterRoutes(r chi.Router, gate *middleware.Gate) {
	r.With(gate.Protect).Get("/me", h.me)
	r.With(gate.Identify).Get("/profile/{id}", h.profile)
	r.With(gate.Protect, middleware.RequireRole(model.RoleAdmin)).Get("/{id}", h.getUser)
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		common.RespondWithDomainError(w, common.ErrUnauthorized)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, successEnvelope{Status: "success", Data: userData{User: user}})
}

func (h *UserHandler) profile(w http.ResponseWriter, r *http.Request) {
	viewer, _ := middleware.UserFromContext(r.Context())
	p, err := h.userService.Profile(r.Context(), chi.URLParam(r, "id"), viewer)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, successEnvelope{Status: "success", Data: profileData{Profile: p}})
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, successEnvelope{Status: "success", Data: userData{User: user}})
}
