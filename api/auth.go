package api

import (
	"net/http"

	"github.com/garnizeh/bounty/internal/auth"
)

type AuthHandler struct {
	engine *auth.Engine
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(engine *auth.Engine) *AuthHandler {
	return &AuthHandler{engine: engine}
}

type publicKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

type challengeResponse struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

func (h *AuthHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req publicKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.engine.CreateChallenge(r.Context(), req.PublicKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, challengeResponse{Nonce: c.Nonce, Message: c.Message})
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.engine.Verify(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// DevLogin skips signature verification; the engine refuses it unless
// insecure login is enabled.
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	var req publicKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.engine.DevLogin(r.Context(), req.PublicKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}
