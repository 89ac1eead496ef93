package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"voting-platform/internal/domain/election"
	"voting-platform/internal/platform/apperr"
)

type candidateRequest struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

type createElectionRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ImageURL    *string            `json:"imageUrl,omitempty"`
	Candidates  []candidateRequest `json:"candidates"`
	StartDate   *string            `json:"startDate"`
	EndDate     *string            `json:"endDate"`
}

// updateElectionRequest is partial: omitted fields keep their value and a
// present candidates array replaces the whole set.
type updateElectionRequest struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	ImageURL    optionalString     `json:"imageUrl,omitzero" swaggertype:"string"`
	Candidates  []candidateRequest `json:"candidates,omitempty"`
	StartDate   *string            `json:"startDate,omitempty"`
	EndDate     *string            `json:"endDate,omitempty"`
}

// optionalString tells an absent field apart from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}

func (o optionalString) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

func candidateInputs(in []candidateRequest) []election.CandidateInput {
	if in == nil {
		return nil
	}
	out := make([]election.CandidateInput, 0, len(in))
	for _, c := range in {
		out = append(out, election.CandidateInput{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			ImageURL:    c.ImageURL,
		})
	}
	return out
}

// @Summary     Create election
// @Tags        elections
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       request  body      createElectionRequest  true  "Election"
// @Success     201      {object}  election.Election
// @Failure     400      {object}  apperr.AppError  "validation failed"
// @Failure     403      {object}  apperr.AppError  "forbidden"
// @Router      /elections [post]
func (h *Handler) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req createElectionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		errorResponse(w, err)
		return
	}

	fe := apperr.FieldErrors{}
	start := parseTime(fe, "startDate", req.StartDate)
	end := parseTime(fe, "endDate", req.EndDate)
	if err := fe.OrNil(); err != nil {
		errorResponse(w, err)
		return
	}

	in := election.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Candidates:  candidateInputs(req.Candidates),
	}
	if start != nil {
		in.StartDate = *start
	}
	if end != nil {
		in.EndDate = *end
	}

	e, err := h.electionSvc.Create(r.Context(), in, userIDFromCtx(r))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// @Summary     List elections
// @Description Statuses are recomputed before filtering.
// @Tags        elections
// @Security    BearerAuth
// @Produce     json
// @Param       status  query     string  false  "upcoming, ongoing or ended"
// @Success     200     {array}   election.View
// @Failure     400     {object}  apperr.AppError  "invalid status"
// @Router      /elections [get]
func (h *Handler) handleListElections(w http.ResponseWriter, r *http.Request) {
	var status *election.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := election.Status(s)
		status = &st
	}

	views, err := h.electionSvc.List(r.Context(), status, userIDFromCtx(r))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// @Summary     Get election
// @Tags        elections
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Election ID"
// @Success     200  {object}  election.View
// @Failure     404  {object}  apperr.AppError  "not found"
// @Router      /elections/{id} [get]
func (h *Handler) handleGetElection(w http.ResponseWriter, r *http.Request) {
	v, err := h.electionSvc.Get(r.Context(), chi.URLParam(r, "id"), userIDFromCtx(r))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// @Summary     Update election
// @Tags        elections
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id       path      string                 true  "Election ID"
// @Param       request  body      updateElectionRequest  true  "Fields to change"
// @Success     200      {object}  election.Election
// @Failure     400      {object}  apperr.AppError  "validation failed"
// @Failure     404      {object}  apperr.AppError  "not found"
// @Failure     409      {object}  apperr.AppError  "candidate has votes"
// @Router      /elections/{id} [put]
func (h *Handler) handleUpdateElection(w http.ResponseWriter, r *http.Request) {
	var req updateElectionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		errorResponse(w, err)
		return
	}

	fe := apperr.FieldErrors{}
	in := election.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL.Value,
		ClearImage:  req.ImageURL.Set && req.ImageURL.Value == nil,
		Candidates:  candidateInputs(req.Candidates),
		StartDate:   parseTime(fe, "startDate", req.StartDate),
		EndDate:     parseTime(fe, "endDate", req.EndDate),
	}
	if err := fe.OrNil(); err != nil {
		errorResponse(w, err)
		return
	}

	e, err := h.electionSvc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// @Summary     Delete election
// @Description Removes the election and every vote cast in it.
// @Tags        elections
// @Security    BearerAuth
// @Param       id   path  string  true  "Election ID"
// @Success     204
// @Failure     404  {object}  apperr.AppError  "not found"
// @Router      /elections/{id} [delete]
func (h *Handler) handleDeleteElection(w http.ResponseWriter, r *http.Request) {
	if err := h.electionSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		errorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
