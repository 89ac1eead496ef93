package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"voting-platform/internal/platform/apperr"
)

type updateRoleRequest struct {
	Role string `json:"role"`
}

// @Summary     List users
// @Tags        users
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}   user.User
// @Failure     403  {object}  apperr.AppError  "forbidden"
// @Router      /users [get]
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userSvc.List(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// @Summary     Get user
// @Tags        users
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  user.User
// @Failure     404  {object}  apperr.AppError  "not found"
// @Router      /users/{id} [get]
func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, chi.URLParam(r, "id"))
}

// @Summary     Update user role
// @Tags        users
// @Security    BearerAuth
// @Accept      json
// @Param       id       path      string             true  "User ID"
// @Param       request  body      updateRoleRequest  true  "New role"
// @Success     200      {object}  user.User
// @Failure     400      {object}  apperr.AppError  "invalid role"
// @Failure     404      {object}  apperr.AppError  "not found"
// @Router      /users/{id}/role [put]
func (h *Handler) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		errorResponse(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.userSvc.UpdateRole(r.Context(), id, req.Role); err != nil {
		errorResponse(w, err)
		return
	}
	h.writeUser(w, r, id)
}

// @Summary     Override fingerprint verification
// @Tags        users
// @Security    BearerAuth
// @Accept      json
// @Param       id       path      string         true  "User ID"
// @Param       request  body      verifyRequest  true  "Verification flag"
// @Success     200      {object}  user.User
// @Failure     400      {object}  apperr.AppError  "flag missing"
// @Failure     404      {object}  apperr.AppError  "not found"
// @Router      /users/{id}/verify-fingerprint [put]
func (h *Handler) handleSetUserVerified(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req, false); err != nil {
		errorResponse(w, err)
		return
	}
	if req.IsFingerprintVerified == nil {
		errorResponse(w, apperr.FieldErrors{"isFingerprintVerified": "isFingerprintVerified must be a boolean"})
		return
	}
	h.setVerified(w, r, chi.URLParam(r, "id"), *req.IsFingerprintVerified)
}

// @Summary     Delete user
// @Tags        users
// @Security    BearerAuth
// @Param       id   path  string  true  "User ID"
// @Success     204
// @Failure     404  {object}  apperr.AppError  "not found"
// @Router      /users/{id} [delete]
func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		errorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
