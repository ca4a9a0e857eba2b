package httptransport

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/verification"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	authmw "custodia/pkg/platform/middleware/auth"
)

type submitRequest struct {
	Kind           string `json:"kind"`
	DocumentNumber string `json:"document_number,omitempty"`
	Front          string `json:"front"`
	Back           string `json:"back,omitempty"`
	Selfie         string `json:"selfie"`
	ContentType    string `json:"content_type,omitempty"`
}

type verificationResponse struct {
	ID              string     `json:"id"`
	SubjectID       string     `json:"subject_id"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ReviewerID      string     `json:"reviewer_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
}

func toVerificationResponse(req *verification.Request) verificationResponse {
	return verificationResponse{
		ID:              req.ID.String(),
		SubjectID:       req.SubjectID.String(),
		Kind:            req.Kind.String(),
		Status:          req.Status.String(),
		RejectionReason: req.RejectionReason,
		ReviewerID:      req.ReviewerID,
		CreatedAt:       req.CreatedAt,
		ReviewedAt:      req.ReviewedAt,
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	kind, err := id.ParseDocumentKind(body.Kind)
	if err != nil {
		writeError(w, err)
		return
	}

	front, err := decodeImage(body.Front)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "front image is not valid base64"))
		return
	}
	back, err := decodeImage(body.Back)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "back image is not valid base64"))
		return
	}
	selfie, err := decodeImage(body.Selfie)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "selfie image is not valid base64"))
		return
	}

	contentType := body.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	req, err := h.intake.Submit(r.Context(), verification.Submission{
		SubjectID:      authmw.GetSubjectID(r.Context()),
		Kind:           kind,
		DocumentNumber: body.DocumentNumber,
		Front:          front,
		Back:           back,
		Selfie:         selfie,
		ContentType:    contentType,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVerificationResponse(req))
}

func (h *Handler) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	req, err := h.intake.FindForSubject(r.Context(), verificationID, authmw.GetSubjectID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerificationResponse(req))
}

type reviewRequest struct {
	Approved        bool   `json:"approved"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	reviewerID := authmw.GetSubjectID(r.Context()).String()
	req, err := h.reviews.Review(r.Context(), verificationID, reviewerID, body.Approved, body.RejectionReason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerificationResponse(req))
}

type reviewBatchRequest struct {
	IDs []string `json:"ids"`
}

type reviewBatchResponse struct {
	ApprovedCount int                  `json:"approved_count"`
	Failures      []batchFailureResult `json:"failures"`
}

type batchFailureResult struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (h *Handler) handleReviewBatch(w http.ResponseWriter, r *http.Request) {
	var body reviewBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	ids := make([]id.VerificationID, 0, len(body.IDs))
	for _, raw := range body.IDs {
		verificationID, err := id.ParseVerificationID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		ids = append(ids, verificationID)
	}

	reviewerID := authmw.GetSubjectID(r.Context()).String()
	result, err := h.reviews.ReviewBatch(r.Context(), ids, reviewerID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := reviewBatchResponse{ApprovedCount: result.ApprovedCount, Failures: []batchFailureResult{}}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, batchFailureResult{ID: f.ID.String(), Reason: f.Reason})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeps.Sweep(r.Context(), time.Now())
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "sweep failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"warned":  result.Warned,
		"expired": result.Expired,
		"errors":  result.Errors,
	})
}

func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(encoded)
}
