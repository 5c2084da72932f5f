// Package handlers exposes the argument service over HTTP.
package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"nodestand-backend/application/services"
	pkgerrors "nodestand-backend/pkg/errors"
)

// ArgumentHandler handles the mutating argument endpoints.
type ArgumentHandler struct {
	service      *services.ArgumentService
	logger       *zap.Logger
	errorHandler *pkgerrors.ErrorHandler
}

func NewArgumentHandler(service *services.ArgumentService, logger *zap.Logger, errorHandler *pkgerrors.ErrorHandler) *ArgumentHandler {
	return &ArgumentHandler{service: service, logger: logger, errorHandler: errorHandler}
}

// CreateAssertion handles POST /assertions
func (h *ArgumentHandler) CreateAssertion(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req CreateAssertionRequest
	if err := decode(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	links, err := parseNodeIDs("links", req.Links)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	detail, err := h.service.CreateAssertion(r.Context(), user, req.AuthorID, services.AssertionInput{
		Title: req.Title, Qualifier: req.Qualifier, Body: req.Body, Links: links,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, toDetailResponse(detail))
}

// CreateInterpretation handles POST /interpretations
func (h *ArgumentHandler) CreateInterpretation(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req CreateInterpretationRequest
	if err := decode(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	source, err := parseOptionalNodeID("sourceId", req.SourceID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	detail, err := h.service.CreateInterpretation(r.Context(), user, req.AuthorID, services.InterpretationInput{
		Title: req.Title, Qualifier: req.Qualifier, Body: req.Body, SourceID: source,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, toDetailResponse(detail))
}

// CreateSource handles POST /sources
func (h *ArgumentHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req CreateSourceRequest
	if err := decode(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	detail, err := h.service.CreateSource(r.Context(), user, req.AuthorID, services.SourceInput{
		Title: req.Title, Qualifier: req.Qualifier, URL: req.URL,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, toDetailResponse(detail))
}

// EditAssertion handles PUT /assertions/{nodeID}
func (h *ArgumentHandler) EditAssertion(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	nodeID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req EditAssertionRequest
	if err := decode(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	links, err := parseNodeIDs("links", req.Links)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	detail, err := h.service.EditAssertion(r.Context(), user, nodeID, services.AssertionInput{
		Title: req.Title, Qualifier: req.Qualifier, Body: req.Body, Links: links,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toDetailResponse(detail))
}

// EditInterpretation handles PUT /interpretations/{nodeID}
func (h *ArgumentHandler) EditInterpretation(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	nodeID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req EditInterpretationRequest
	if err := decode(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	source, err := parseOptionalNodeID("sourceId", req.SourceID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	detail, err := h.service.EditInterpretation(r.Context(), user, nodeID, services.InterpretationInput{
		Title: req.Title, Qualifier: req.Qualifier, Body: req.Body, SourceID: source,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toDetailResponse(detail))
}

// EditSource handles PUT /sources/{nodeID}
func (h *ArgumentHandler) EditSource(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	nodeID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req EditSourceRequest
	if err := decode(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	detail, err := h.service.EditSource(r.Context(), user, nodeID, services.SourceInput{
		Title: req.Title, Qualifier: req.Qualifier, URL: req.URL,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toDetailResponse(detail))
}

// MakeDraft handles POST /nodes/{nodeID}/drafts
func (h *ArgumentHandler) MakeDraft(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	nodeID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req MakeDraftRequest
	if err := decode(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.service.MakeDraft(r.Context(), user, req.AuthorID, nodeID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, DraftResponse{
		Draft: toDetailResponse(result.Draft),
		Graph: toGraphResponse(result.Graph),
	})
}

// AdoptChild handles POST /nodes/{nodeID}/adopt
func (h *ArgumentHandler) AdoptChild(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	parentID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req AdoptChildRequest
	if err := decode(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	ids, err := parseNodeIDs("body", []string{req.ExistingChildID, req.ReplacementID})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	detail, err := h.service.AdoptDraftChild(r.Context(), user, parentID, ids[0], ids[1])
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toDetailResponse(detail))
}

// Publish handles POST /nodes/{nodeID}/publish
func (h *ArgumentHandler) Publish(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	nodeID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.service.Publish(r.Context(), user, nodeID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toPublishResponse(result))
}

// DiscardDraft handles DELETE /nodes/{nodeID}
func (h *ArgumentHandler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	nodeID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.service.DiscardDraft(r.Context(), user, nodeID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
