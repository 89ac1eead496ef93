package api

import (
	"net/http"

	"voting-platform/internal/domain/user"
	"voting-platform/internal/platform/apperr"
)

type registerRequest struct {
	Username            string  `json:"username"`
	Email               string  `json:"email"`
	Password            string  `json:"password"`
	FingerprintTemplate *string `json:"fingerprintTemplate,omitempty"`
}

// loginRequest accepts either identifier; email wins when both are sent.
type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	IsFingerprintVerified *bool `json:"isFingerprintVerified"`
}

type enrollRequest struct {
	FingerprintTemplate string `json:"fingerprintTemplate"`
}

type authResponse struct {
	*user.User
	Token string `json:"token"`
}

// @Summary     Register
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request  body      registerRequest  true  "New account"
// @Success     201      {object}  authResponse
// @Failure     400      {object}  apperr.AppError  "validation failed"
// @Failure     409      {object}  apperr.AppError  "username or email taken"
// @Router      /auth/register [post]
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req, false); err != nil {
		errorResponse(w, err)
		return
	}

	u, err := h.userSvc.Register(r.Context(), user.RegisterInput{
		Username:            req.Username,
		Email:               req.Email,
		Password:            req.Password,
		FingerprintTemplate: req.FingerprintTemplate,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}
	h.respondWithToken(w, http.StatusCreated, u)
}

// @Summary     Log in
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request  body      loginRequest  true  "Credentials"
// @Success     200      {object}  authResponse
// @Failure     401      {object}  apperr.AppError  "invalid credentials"
// @Router      /auth/login [post]
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		errorResponse(w, err)
		return
	}

	login := req.Email
	if login == "" {
		login = req.Username
	}
	u, err := h.userSvc.Login(r.Context(), login, req.Password)
	if err != nil {
		errorResponse(w, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, u)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, u *user.User) {
	token, err := h.jwtMgr.Generate(u.ID, u.Role)
	if err != nil {
		errorResponse(w, apperr.Internal("token_error", "could not issue token", err))
		return
	}
	writeJSON(w, status, authResponse{User: u, Token: token})
}

// @Summary     Current user
// @Tags        auth
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  user.User
// @Failure     401  {object}  apperr.AppError  "unauthorized"
// @Router      /auth/me [get]
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.userSvc.GetByID(r.Context(), userIDFromCtx(r))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// @Summary     Mark yourself fingerprint verified
// @Description Self-service override; an empty body marks the caller verified.
// @Tags        auth
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       request  body      verifyRequest  false  "Verification flag"
// @Success     200      {object}  user.User
// @Router      /auth/verify-fingerprint [put]
func (h *Handler) handleSelfVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req, true); err != nil {
		errorResponse(w, err)
		return
	}
	verified := true
	if req.IsFingerprintVerified != nil {
		verified = *req.IsFingerprintVerified
	}
	h.setVerified(w, r, userIDFromCtx(r), verified)
}

// @Summary     Enrol a fingerprint template
// @Tags        auth
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       request  body      enrollRequest  true  "Template"
// @Success     200      {object}  user.User
// @Failure     400      {object}  apperr.AppError  "validation failed"
// @Router      /auth/fingerprint [put]
func (h *Handler) handleEnrollFingerprint(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(r, &req, false); err != nil {
		errorResponse(w, err)
		return
	}

	id := userIDFromCtx(r)
	if err := h.userSvc.EnrollFingerprint(r.Context(), id, req.FingerprintTemplate); err != nil {
		errorResponse(w, err)
		return
	}
	h.writeUser(w, r, id)
}

func (h *Handler) setVerified(w http.ResponseWriter, r *http.Request, id string, verified bool) {
	if err := h.userSvc.SetFingerprintVerified(r.Context(), id, verified); err != nil {
		errorResponse(w, err)
		return
	}
	h.writeUser(w, r, id)
}

func (h *Handler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.userSvc.GetByID(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
