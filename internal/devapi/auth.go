package devapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"sensordash/internal/types"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg types.Registration
	if !readJSON(w, r, &reg) {
		return
	}
	if len(reg.Username) < 3 || len(reg.Password) < 8 || reg.Email == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid registration payload")
		return
	}

	s.mu.Lock()
	if _, ok := s.users[reg.Username]; ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Username already registered")
		return
	}
	for _, rec := range s.users {
		if rec.user.Email == reg.Email {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	s.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	s.mu.Lock()
	u := types.User{
		ID:        s.nextUserID,
		Username:  reg.Username,
		Email:     reg.Email,
		IsAdmin:   false,
		CreatedAt: time.Now().UTC(),
	}
	s.nextUserID++
	s.users[reg.Username] = &userRecord{user: u, passwordHash: hash}
	s.mu.Unlock()

	s.log.Info("registered user", zap.String("username", u.Username))
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds types.Credentials
	if !readJSON(w, r, &creds) {
		return
	}

	s.mu.Lock()
	rec, ok := s.users[creds.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(creds.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = creds.Username
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, types.Token{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	var up types.ProfileUpdate
	if !readJSON(w, r, &up) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.users[u.Username]
	if up.Email != nil {
		rec.user.Email = *up.Email
	}
	if up.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*up.Password), bcrypt.DefaultCost)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}
		rec.passwordHash = hash
	}
	writeJSON(w, http.StatusOK, rec.user)
}
