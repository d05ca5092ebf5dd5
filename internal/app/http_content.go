package app

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/khony/adzb/internal/export"
	"github.com/khony/adzb/internal/validate"
)

func (s *HTTPServer) handleListKeywords(w http.ResponseWriter, r *http.Request, session Session) {
	keywords, err := s.service.ListKeywords(r.Context(), session, chi.URLParam(r, "slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keywords": keywords})
}

func (s *HTTPServer) handleCreateKeyword(w http.ResponseWriter, r *http.Request, session Session) {
	var body validate.KeywordInput
	if !decode(w, r, &body) {
		return
	}
	kw, err := s.service.CreateKeyword(r.Context(), session, chi.URLParam(r, "slug"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, kw)
}

func (s *HTTPServer) handleUpdateKeyword(w http.ResponseWriter, r *http.Request, session Session) {
	var body validate.KeywordInput
	if !decode(w, r, &body) {
		return
	}
	kw, err := s.service.UpdateKeyword(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kw)
}

func (s *HTTPServer) handleDeleteKeyword(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteKeyword(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

// handleListEvidences accepts filter=positive|negative; anything else lists all.
func (s *HTTPServer) handleListEvidences(w http.ResponseWriter, r *http.Request, session Session) {
	var positive *bool
	switch r.URL.Query().Get("filter") {
	case "positive":
		v := true
		positive = &v
	case "negative":
		v := false
		positive = &v
	}
	evidences, err := s.service.ListEvidences(r.Context(), session, chi.URLParam(r, "slug"), positive)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evidences": evidences})
}

func (s *HTTPServer) handleGetEvidence(w http.ResponseWriter, r *http.Request, session Session) {
	detail, err := s.service.GetEvidenceDetail(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// statusFilter accepts repeated or comma-separated status parameters.
func statusFilter(r *http.Request) []string {
	var out []string
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" && part != "all" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *HTTPServer) handleListNegotiations(w http.ResponseWriter, r *http.Request, session Session) {
	negotiations, err := s.service.ListNegotiations(r.Context(), session, chi.URLParam(r, "slug"), statusFilter(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"negotiations": negotiations})
}

func (s *HTTPServer) handleGetNegotiation(w http.ResponseWriter, r *http.Request, session Session) {
	detail, err := s.service.GetNegotiation(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *HTTPServer) handleCreateNegotiation(w http.ResponseWriter, r *http.Request, session Session) {
	var body validate.NegotiationInput
	if !decode(w, r, &body) {
		return
	}
	n, err := s.service.CreateNegotiation(r.Context(), session, chi.URLParam(r, "slug"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *HTTPServer) handleUpdateNegotiation(w http.ResponseWriter, r *http.Request, session Session) {
	var body validate.NegotiationPatch
	if !decode(w, r, &body) {
		return
	}
	n, err := s.service.UpdateNegotiation(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *HTTPServer) handleUpdateNegotiationStatus(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &body) {
		return
	}
	n, err := s.service.UpdateNegotiationStatus(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *HTTPServer) handleDeleteNegotiation(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteNegotiation(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleAddAttachment(w http.ResponseWriter, r *http.Request, session Session) {
	file, closeFile, err := formFile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer closeFile()
	attachment, err := s.service.AddNegotiationAttachment(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id"), file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (s *HTTPServer) handleSendNegotiation(w http.ResponseWriter, r *http.Request, session Session) {
	result, err := s.service.SendNegotiationEmail(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleExportNegotiation(w http.ResponseWriter, r *http.Request, session Session) {
	if format := r.URL.Query().Get("format"); format != "" && format != string(export.FormatPDF) {
		s.fail(w, r, ValidationError("format", "enum", "format must be pdf"))
		return
	}
	res, err := s.service.ExportNegotiation(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, res)
}

func (s *HTTPServer) handleExportNegotiations(w http.ResponseWriter, r *http.Request, session Session) {
	if format := r.URL.Query().Get("format"); format != "" && format != string(export.FormatXLSX) {
		s.fail(w, r, ValidationError("format", "enum", "format must be xlsx"))
		return
	}
	res, err := s.service.ExportNegotiations(r.Context(), session, chi.URLParam(r, "slug"), statusFilter(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, res)
}

func writeFile(w http.ResponseWriter, res *export.Result) {
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
