package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/zlnvch/notes/auth"
	"github.com/zlnvch/notes/models"
	"github.com/zlnvch/notes/service"
	"github.com/zlnvch/notes/store"
)

// Request bodies are notes, not media; anything bigger is rejected.
const maxBodyBytes = 1 << 20

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type loginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

type loginResponse struct {
	Id       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Provider == "" || req.Code == "" {
		http.Error(w, "provider and code are required", http.StatusBadRequest)
		return
	}

	user, token, err := h.Service.Login(r.Context(), req.Provider, req.Code)
	if err != nil {
		log.Printf("Login failed: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	resp := loginResponse{
		Id:       user.Id,
		Email:    user.Email,
		Username: user.Username,
		Provider: user.Provider,
		Token:    token,
	}
	h.sendResponse(w, http.StatusOK, resp)
}

type getUserResponse struct {
	Id        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Provider  string `json:"provider"`
	NoteCount int    `json:"noteCount"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetUser(w, r, claims)

	case http.MethodDelete:
		h.handleDeleteUser(w, r, claims)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	user, err := h.Service.GetUser(r.Context(), claims.UserId)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Printf("Get user %s failed: %v", claims.UserId, err)
		http.Error(w, "failed to get user", http.StatusInternalServerError)
		return
	}

	resp := getUserResponse{
		Id:        user.Id,
		Email:     user.Email,
		Username:  user.Username,
		Provider:  user.Provider,
		NoteCount: user.NoteCount,
	}
	h.sendResponse(w, http.StatusOK, resp)
}

type deleteUserResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	if err := h.Service.DeleteUser(r.Context(), claims.UserId); err != nil {
		log.Printf("Delete user %s failed: %v", claims.UserId, err)
		http.Error(w, "failed to delete user", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, http.StatusOK, deleteUserResponse{Success: true})
}

// HandleListNotes serves GET /notes/{userId}. The path must name the caller.
func (h *Handler) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if r.PathValue("userId") != claims.UserId {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	notes, err := h.Service.ListNotes(r.Context(), claims.UserId)
	if err != nil {
		log.Printf("List notes for %s failed: %v", claims.UserId, err)
		http.Error(w, "failed to list notes", http.StatusInternalServerError)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}

	h.sendResponse(w, http.StatusOK, notes)
}

func (h *Handler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var input models.Note
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	note, err := h.Service.CreateNote(r.Context(), claims.UserId, input)
	if err != nil {
		h.sendNoteError(w, "create", err)
		return
	}

	h.sendResponse(w, http.StatusCreated, note)
}

func (h *Handler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var input models.Note
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	note, err := h.Service.UpdateNote(r.Context(), claims.UserId, r.PathValue("noteId"), input)
	if err != nil {
		h.sendNoteError(w, "update", err)
		return
	}

	h.sendResponse(w, http.StatusOK, note)
}

func (h *Handler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteNote(r.Context(), claims.UserId, r.PathValue("noteId")); err != nil {
		h.sendNoteError(w, "delete", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sendNoteError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidNote):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNoteQuotaExceeded):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, store.ErrItemNotFound), errors.Is(err, store.ErrConditionFailed):
		http.Error(w, "note not found", http.StatusNotFound)
	default:
		log.Printf("Note %s failed: %v", op, err)
		http.Error(w, "failed to "+op+" note", http.StatusInternalServerError)
	}
}

// authenticate writes 401 and returns false when the bearer token does not
// verify. No claims from a failed verification are ever used.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, err := h.Service.AuthenticateToken(h.getTokenFromAuthHeader(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	return claims, true
}

func (h *Handler) sendResponse(w http.ResponseWriter, status int, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
