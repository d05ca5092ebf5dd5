package app

import (
	"net/http"

	"github.com/khony/adzb/internal/validate"
)

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body validate.RegisterInput
	if !decode(w, r, &body) {
		return
	}
	result, err := s.service.Register(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, r, result.Session)
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body validate.LoginInput
	if !decode(w, r, &body) {
		return
	}
	result, err := s.service.Login(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, r, result.Session)
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &body) {
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, r, session)
	writeJSON(w, http.StatusOK, session)
}

// handleLogout always succeeds. Whatever tokens were presented are revoked.
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessionFromRequest(r)
	if err != nil {
		session = Session{}
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), session, body.RefreshToken)
	clearSessionCookie(w)
	writeOK(w)
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessionFromRequest(r)
	if err != nil || session.UserID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userId":        session.UserID,
		"email":         session.Email,
		"fullName":      session.FullName,
		"expiresAt":     session.ExpiresAt,
	})
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request, session Session) {
	profile, err := s.service.GetProfile(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request, session Session) {
	var body validate.ProfilePatch
	if !decode(w, r, &body) {
		return
	}
	profile, err := s.service.UpdateProfile(r.Context(), session, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleUploadAvatar(w http.ResponseWriter, r *http.Request, session Session) {
	file, closeFile, err := formFile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer closeFile()
	profile, err := s.service.UploadAvatar(r.Context(), session, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
