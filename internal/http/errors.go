package api

import (
	"database/sql"
	"errors"
	"net/http"

	"voting-platform/internal/domain/election"
	"voting-platform/internal/domain/user"
	"voting-platform/internal/domain/vote"
	"voting-platform/internal/platform/apperr"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		slogLogger.Error("request failed", "error", err)
	}
	writeJSON(w, appErr.StatusCode(), appErr)
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var fields apperr.FieldErrors
	if errors.As(err, &fields) {
		return apperr.Validation(fields)
	}
	var notOngoing *vote.NotOngoingError
	if errors.As(err, &notOngoing) {
		return apperr.BadRequest("election_not_ongoing", "election is not ongoing", err).
			WithDetail("status", string(notOngoing.Status))
	}

	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		return apperr.Unauthorized("invalid_credentials", "invalid credentials", err)
	case errors.Is(err, user.ErrUserTaken):
		return apperr.Conflict("user_taken", "username or email already taken", err)
	case errors.Is(err, user.ErrUserNotFound):
		return apperr.NotFound("user_not_found", "user not found", err)
	case errors.Is(err, election.ErrElectionNotFound):
		return apperr.NotFound("election_not_found", "election not found", err)
	case errors.Is(err, election.ErrCandidateHasVotes):
		return apperr.Conflict("candidate_has_votes", "cannot remove a candidate that already has votes", err)
	case errors.Is(err, vote.ErrVerificationDataRequired):
		return apperr.BadRequest("verification_required", "fingerprint data is required for unverified users", err)
	case errors.Is(err, vote.ErrVerificationNotEnrolled):
		return apperr.BadRequest("verification_not_enrolled", "no fingerprint is enrolled for this user", err)
	case errors.Is(err, vote.ErrVerificationFailed):
		return apperr.BadRequest("verification_failed", "fingerprint verification failed", err)
	case errors.Is(err, vote.ErrCandidateNotFound):
		return apperr.NotFound("candidate_not_found", "candidate not found in this election", err)
	case errors.Is(err, vote.ErrDuplicateVote):
		return apperr.Conflict("duplicate_vote", "user already voted in this election", err)
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("not_found", "resource not found", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
