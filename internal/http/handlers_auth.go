package http

import (
	"encoding/json"
	"net/http"
)

type signUpRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	u, err := s.auth.SignUp(r.Context(), req.Email, req.FullName, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserJSON(u)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, u, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  toUserJSON(u),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        viewer.ID,
		"couple_id": viewer.CoupleID,
	})
}

type pairRequest struct {
	PartnerEmail string `json:"partner_email"`
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	coupleID, err := s.auth.Pair(r.Context(), viewerFrom(r).ID, req.PartnerEmail)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"couple_id": coupleID})
}

func (s *Server) handleUnpair(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Unpair(r.Context(), viewerFrom(r).ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
