package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-collab-server/auth"
	"github.com/jrsteele09/go-collab-server/drive"
)

const maxLetterBytes = 4 << 20

type letterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// decodeLetter reads a letter body; a title is mandatory.
func decodeLetter(w http.ResponseWriter, r *http.Request) (*letterRequest, bool) {
	var req letterRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLetterBytes)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if strings.TrimSpace(req.Title) == "" {
		writeMessage(w, http.StatusBadRequest, "Title is required")
		return nil, false
	}
	return &req, true
}

// principal is set by RequireAuth on every storage route.
func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	}
	return p, ok
}

func (s *Server) SaveLetterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		req, ok := decodeLetter(w, r)
		if !ok {
			return
		}

		fileID, err := s.storage.SaveLetter(r.Context(), p.UpstreamToken, req.Title, req.Content)
		if err != nil {
			writeError(w, r, err, "Failed to save letter")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Letter saved in Google Drive!",
			"fileId":  fileID,
		})
	}
}

func (s *Server) ListLettersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		letters, err := s.storage.ListLetters(r.Context(), p.UpstreamToken)
		if err != nil {
			writeError(w, r, err, "Failed to list letters")
			return
		}
		if letters == nil {
			letters = []drive.Letter{}
		}
		writeJSON(w, http.StatusOK, map[string][]drive.Letter{"files": letters})
	}
}

func (s *Server) GetLetterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		letter, err := s.storage.GetLetter(r.Context(), p.UpstreamToken, r.PathValue("fileId"))
		if err != nil {
			writeError(w, r, err, "Failed to fetch letter")
			return
		}
		writeJSON(w, http.StatusOK, letter)
	}
}

func (s *Server) UpdateLetterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		req, ok := decodeLetter(w, r)
		if !ok {
			return
		}

		if err := s.storage.UpdateLetter(r.Context(), p.UpstreamToken, r.PathValue("fileId"), req.Title, req.Content); err != nil {
			writeError(w, r, err, "Failed to update letter")
			return
		}
		writeMessage(w, http.StatusOK, "Letter updated successfully!")
	}
}

func (s *Server) DeleteLetterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		if err := s.storage.DeleteLetter(r.Context(), p.UpstreamToken, r.PathValue("fileId")); err != nil {
			writeError(w, r, err, "Failed to delete letter")
			return
		}
		writeMessage(w, http.StatusOK, "Letter deleted successfully!")
	}
}
