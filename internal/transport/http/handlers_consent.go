package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/consent"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	authmw "custodia/pkg/platform/middleware/auth"
)

type setConsentRequest struct {
	Granted         bool   `json:"granted"`
	ClientSignature string `json:"client_signature,omitempty"`
}

type consentResponse struct {
	ID         string    `json:"id"`
	Purpose    string    `json:"purpose"`
	Granted    bool      `json:"granted"`
	RecordedAt time.Time `json:"recorded_at"`
}

func toConsentResponse(record consent.Record) consentResponse {
	return consentResponse{
		ID:         record.ID.String(),
		Purpose:    record.Purpose.String(),
		Granted:    record.Granted,
		RecordedAt: record.RecordedAt,
	}
}

func (h *Handler) handleSetConsent(w http.ResponseWriter, r *http.Request) {
	purpose, err := id.ParseConsentPurpose(chi.URLParam(r, "purpose"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body setConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.consents.Set(r.Context(), authmw.GetSubjectID(r.Context()), purpose, body.Granted, consent.Metadata{
		Origin:          r.RemoteAddr,
		ClientSignature: body.ClientSignature,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsentResponse(*record))
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	records, err := h.consents.History(r.Context(), authmw.GetSubjectID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]consentResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toConsentResponse(record))
	}
	writeJSON(w, http.StatusOK, map[string]any{"consents": out})
}
