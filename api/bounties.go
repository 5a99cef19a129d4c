package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/bounty/internal/apperr"
	"github.com/garnizeh/bounty/internal/bounty"
)

// createBountySchema checks the shape of a create request. Semantic rules
// (trimmed title, RFC 3339 deadline) are enforced by the engine.
const createBountySchema = `{
	"type": "object",
	"required": ["title", "description", "rewardAmount"],
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 150},
		"description": {"type": "string", "minLength": 1},
		"rewardAmount": {"type": "number", "minimum": 0},
		"badgeKey": {"type": ["string", "null"]},
		"deadline": {"type": ["string", "null"]}
	}
}`

type BountiesHandler struct {
	engine *bounty.Engine
	schema *jsonschema.Schema
}

func NewBountiesHandler(engine *bounty.Engine) *BountiesHandler {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(createBountySchema), rs); err != nil {
		panic(fmt.Sprintf("compile create bounty schema: %v", err))
	}
	return &BountiesHandler{engine: engine, schema: rs}
}

type applyRequest struct {
	Content string `json:"content"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

func requesterID(r *http.Request) (string, error) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return "", apperr.ErrMissingCredential
	}
	return id, nil
}

func (h *BountiesHandler) validateCreate(ctx context.Context, body []byte) error {
	verrs, err := h.schema.ValidateBytes(ctx, body)
	if err != nil {
		return fmt.Errorf("%w: invalid json", apperr.ErrInvalidInput)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, ve := range verrs {
			msgs = append(msgs, ve.Error())
		}
		return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, strings.Join(msgs, "; "))
	}
	return nil
}

func (h *BountiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	creatorID, err := requesterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validateCreate(r.Context(), body); err != nil {
		writeError(w, r, err)
		return
	}
	var in bounty.CreateInput
	if err := unmarshalBody(body, &in); err != nil {
		writeError(w, r, err)
		return
	}

	b, err := h.engine.Create(r.Context(), creatorID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *BountiesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *BountiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.engine.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *BountiesHandler) Apply(w http.ResponseWriter, r *http.Request) {
	applicantID, err := requesterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.engine.Apply(r.Context(), mux.Vars(r)["id"], applicantID, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (h *BountiesHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	id, err := requesterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	subs, err := h.engine.ListApplications(r.Context(), mux.Vars(r)["id"], id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

func (h *BountiesHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := requesterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.engine.Accept(r.Context(), mux.Vars(r)["id"], id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *BountiesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := requesterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.engine.Reject(r.Context(), mux.Vars(r)["id"], id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *BountiesHandler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, err := requesterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.engine.DeleteApplication(r.Context(), mux.Vars(r)["id"], id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Deleted: true})
}
