package app

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/khony/adzb/internal/validate"
)

const maxMultipartMemory = 8 << 20

// formFile reads the "file" part of a multipart upload.
func formFile(r *http.Request) (Upload, func(), error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Upload{}, nil, ValidationError("file", "max", "file is too large")
		}
		return Upload{}, nil, ValidationError("file", "required", "multipart form with a file is required")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return Upload{}, nil, ValidationError("file", "required", "file is required")
	}
	return Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, nil
}

func (s *HTTPServer) handleListOrganizations(w http.ResponseWriter, r *http.Request, session Session) {
	orgs, err := s.service.ListOrganizations(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (s *HTTPServer) handleCreateOrganization(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	org, err := s.service.CreateOrganization(r.Context(), session, body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (s *HTTPServer) handleGetOrganization(w http.ResponseWriter, r *http.Request, session Session) {
	org, err := s.service.GetOrganization(r.Context(), session, chi.URLParam(r, "slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *HTTPServer) handleUpdateOrganization(w http.ResponseWriter, r *http.Request, session Session) {
	var body validate.OrganizationPatch
	if !decode(w, r, &body) {
		return
	}
	org, err := s.service.UpdateOrganization(r.Context(), session, chi.URLParam(r, "slug"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *HTTPServer) handleUploadLogo(w http.ResponseWriter, r *http.Request, session Session) {
	file, closeFile, err := formFile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer closeFile()
	org, err := s.service.UploadOrganizationLogo(r.Context(), session, chi.URLParam(r, "slug"), file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request, session Session) {
	stats, err := s.service.Dashboard(r.Context(), session, chi.URLParam(r, "slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	resp, err := s.service.Search(r.Context(), session, chi.URLParam(r, "slug"), query.Get("q"), query.Get("type"), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request, session Session) {
	members, err := s.service.ListMembers(r.Context(), session, chi.URLParam(r, "slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *HTTPServer) handleRemoveMember(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.RemoveMember(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "userID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleListInvitations(w http.ResponseWriter, r *http.Request, session Session) {
	invitations, err := s.service.ListInvitations(r.Context(), session, chi.URLParam(r, "slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}

func (s *HTTPServer) handleCreateInvitation(w http.ResponseWriter, r *http.Request, session Session) {
	var body validate.InvitationInput
	if !decode(w, r, &body) {
		return
	}
	inv, err := s.service.CreateInvitation(r.Context(), session, chi.URLParam(r, "slug"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *HTTPServer) handleRevokeInvitation(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.RevokeInvitation(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "invitationID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

// handleInvitationPage sends anonymous visitors to the login page with a
// redirect back to the invitation.
func (s *HTTPServer) handleInvitationPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	session, err := s.sessionFromRequest(r)
	if err != nil || session.UserID == "" {
		target := "/login?redirect=/invitations/" + url.PathEscape(token)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	view, err := s.service.GetInvitation(r.Context(), session, token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleAcceptInvitation(w http.ResponseWriter, r *http.Request, session Session) {
	slug, err := s.service.AcceptInvitation(r.Context(), session, chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slug": slug})
}
