package server

import (
	"errors"
	"net/http"
	"strings"

	"shopadmin/internal/model"
	"shopadmin/internal/store"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if !decodeJSON(w, r, &reg) {
		return
	}
	if err := reg.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	u, err := s.db.CreateUser(r.Context(), s.strict.Sanitize(reg.Username), reg.Email, string(hash))
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeMessage(w, http.StatusBadRequest, "User already exists")
			return
		}
		s.writeStoreError(w, r, err, "")
		return
	}
	if !s.startSession(w, r, u.ID) {
		return
	}
	s.logger.Info("user registered", "id", u.ID, "admin", u.IsAdmin)
	writeJSON(w, http.StatusCreated, u.User)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var cred model.Credentials
	if !decodeJSON(w, r, &cred) {
		return
	}
	if err := cred.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.db.UserByEmail(r.Context(), strings.ToLower(cred.Email))
	if err != nil && !store.IsNotFound(err) {
		s.writeStoreError(w, r, err, "")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cred.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !s.startSession(w, r, u.ID) {
		return
	}
	writeJSON(w, http.StatusOK, u.User)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, userID string) bool {
	token, err := s.signToken(userID)
	if err != nil {
		s.logger.Error("sign token", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return false
	}
	s.setSessionCookie(w, r, token)
	return true
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	clearSessionCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (s *Server) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())
	writeJSON(w, http.StatusOK, u)
}

type profileBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	me, _ := currentUser(r.Context())
	var body profileBody
	if !decodeJSON(w, r, &body) {
		return
	}
	patch := store.UserPatch{}
	if v := strings.TrimSpace(body.Username); v != "" {
		v = s.strict.Sanitize(v)
		patch.Username = &v
	}
	if v := strings.TrimSpace(body.Email); v != "" {
		if !strings.Contains(v, "@") {
			writeMessage(w, http.StatusBadRequest, "Email is invalid")
			return
		}
		patch.Email = &v
	}
	if body.Password != "" {
		if len(body.Password) < 6 {
			writeMessage(w, http.StatusBadRequest, "Password must be at least 6 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			s.writeStoreError(w, r, err, "")
			return
		}
		h := string(hash)
		patch.PasswordHash = &h
	}
	u, err := s.db.UpdateUser(r.Context(), me.ID, patch)
	if err != nil {
		s.writeStoreError(w, r, err, "Email already in use")
		return
	}
	writeJSON(w, http.StatusOK, u.User)
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	users, err := s.db.ListUsers(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	u, err := s.db.UserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, u.User)
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	var body model.User
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := body.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	username := s.strict.Sanitize(strings.TrimSpace(body.Username))
	email := strings.TrimSpace(body.Email)
	admin := body.IsAdmin
	u, err := s.db.UpdateUser(r.Context(), chi.URLParam(r, "id"), store.UserPatch{
		Username: &username,
		Email:    &email,
		IsAdmin:  &admin,
	})
	if err != nil {
		s.writeStoreError(w, r, err, "Email already in use")
		return
	}
	writeJSON(w, http.StatusOK, u.User)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := s.db.UserByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	if u.IsAdmin {
		writeMessage(w, http.StatusBadRequest, "Cannot delete admin user")
		return
	}
	deleted, err := s.db.DeleteUser(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}
