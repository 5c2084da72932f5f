package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/application/services"
	"nodestand-backend/domain/core/entities"
	pkgerrors "nodestand-backend/pkg/errors"
)

// QueryHandler serves the read side: nodes, lineages, authors and search.
type QueryHandler struct {
	service      *services.ArgumentService
	authors      ports.AuthorResolver
	logger       *zap.Logger
	errorHandler *pkgerrors.ErrorHandler
}

func NewQueryHandler(service *services.ArgumentService, authors ports.AuthorResolver, logger *zap.Logger, errorHandler *pkgerrors.ErrorHandler) *QueryHandler {
	return &QueryHandler{service: service, authors: authors, logger: logger, errorHandler: errorHandler}
}

// GetNode handles GET /nodes/{nodeID}
func (h *QueryHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	detail, err := h.service.GetFullDetail(r.Context(), nodeID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toDetailResponse(detail))
}

// GetConsumers handles GET /nodes/{nodeID}/consumers
func (h *QueryHandler) GetConsumers(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeIDParam(r, "nodeID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	details, err := h.service.GetConsumerNodes(r.Context(), userID(r), nodeID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newList(toDetailResponses(details)))
}

// ListNodes handles GET /nodes
func (h *QueryHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	details, err := h.service.ListNodes(r.Context(), limit)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newList(toDetailResponses(details)))
}

// GetRoots handles GET /nodes/roots
func (h *QueryHandler) GetRoots(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetRootNodes(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newList(toDetailResponses(details)))
}

// GetGraph handles GET /lineages/{stableID}/graph
func (h *QueryHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	stableID, err := stableIDParam(r, "stableID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	graph, err := h.service.GetGraph(r.Context(), stableID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toGraphResponse(graph))
}

// GetHistory handles GET /lineages/{stableID}/history
func (h *QueryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	stableID, err := stableIDParam(r, "stableID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	details, err := h.service.GetEditHistory(r.Context(), stableID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newList(toDetailResponses(details)))
}

// GetMajorVersion handles GET /major-versions/{stableID}/nodes
func (h *QueryHandler) GetMajorVersion(w http.ResponseWriter, r *http.Request) {
	stableID, err := stableIDParam(r, "stableID")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	details, err := h.service.GetNodesInMajorVersion(r.Context(), stableID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newList(toDetailResponses(details)))
}

// GetAuthorNodes handles GET /authors/{authorID}/nodes
func (h *QueryHandler) GetAuthorNodes(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetNodesPublishedByAuthor(r.Context(), chi.URLParam(r, "authorID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newList(toDetailResponses(details)))
}

// GetAuthorDrafts handles GET /authors/{authorID}/drafts
func (h *QueryHandler) GetAuthorDrafts(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	details, err := h.service.GetDraftNodes(r.Context(), user, chi.URLParam(r, "authorID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newList(toDetailResponses(details)))
}

// GetMyAuthors handles GET /me/authors
func (h *QueryHandler) GetMyAuthors(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	authors, err := h.authors.AuthorsOf(r.Context(), user)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newList(authors))
}

// Search handles GET /search?q=&type=. Without a type parameter every kind
// is searched.
func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	kinds, err := parseKinds(r.URL.Query()["type"])
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if len(kinds) == 0 {
		kinds = entities.AllKinds
	}
	bodies, err := h.service.Search(r.Context(), userID(r), r.URL.Query().Get("q"), kinds)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	out := make([]BodyResponse, 0, len(bodies))
	for _, b := range bodies {
		out = append(out, toBodyResponse(b))
	}
	respondJSON(w, h.logger, http.StatusOK, newList(out))
}
