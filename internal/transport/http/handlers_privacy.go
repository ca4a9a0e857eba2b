package httptransport

import (
	"net/http"

	authmw "custodia/pkg/platform/middleware/auth"
)

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.privacy.Export(r.Context(), authmw.GetSubjectID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (h *Handler) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	result, err := h.privacy.Anonymize(r.Context(), authmw.GetSubjectID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"subjects_redacted":      result.SubjectsRedacted,
		"verifications_redacted": result.VerificationsRedacted,
		"consents_redacted":      result.ConsentsRedacted,
	})
}

func (h *Handler) handleHardDelete(w http.ResponseWriter, r *http.Request) {
	result, err := h.privacy.HardDelete(r.Context(), authmw.GetSubjectID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consents_deleted":      result.ConsentsDeleted,
		"verifications_deleted": result.VerificationsDeleted,
		"subject_deleted":       result.SubjectDeleted,
	})
}
