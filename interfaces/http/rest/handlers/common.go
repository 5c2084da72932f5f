package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	"nodestand-backend/pkg/auth"
	pkgerrors "nodestand-backend/pkg/errors"
	"nodestand-backend/pkg/utils"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// decode reads and validates a JSON request body.
func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return pkgerrors.InvalidInput("body", "invalid request body: "+err.Error())
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return pkgerrors.InvalidInput("body", err.Error())
	}
	return nil
}

// userID returns the authenticated caller, or an empty string for anonymous reads.
func userID(r *http.Request) string {
	if u, err := auth.GetUserFromContext(r.Context()); err == nil {
		return u.UserID
	}
	return ""
}

func requireUser(r *http.Request) (string, error) {
	u, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return "", pkgerrors.ErrUnauthenticated.Clone()
	}
	return u.UserID, nil
}

func nodeIDParam(r *http.Request, name string) (valueobjects.NodeID, error) {
	id, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, name))
	if err != nil {
		return valueobjects.NodeID{}, pkgerrors.InvalidInput(name, err.Error())
	}
	return id, nil
}

func stableIDParam(r *http.Request, name string) (valueobjects.StableID, error) {
	id, err := valueobjects.NewStableIDFromString(chi.URLParam(r, name))
	if err != nil {
		return valueobjects.StableID{}, pkgerrors.InvalidInput(name, err.Error())
	}
	return id, nil
}

func parseNodeIDs(field string, raw []string) ([]valueobjects.NodeID, error) {
	ids := make([]valueobjects.NodeID, 0, len(raw))
	for _, s := range raw {
		id, err := valueobjects.NewNodeIDFromString(s)
		if err != nil {
			return nil, pkgerrors.InvalidInput(field, err.Error())
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalNodeID(field string, raw *string) (*valueobjects.NodeID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := valueobjects.NewNodeIDFromString(*raw)
	if err != nil {
		return nil, pkgerrors.InvalidInput(field, err.Error())
	}
	return &id, nil
}

// parseKinds accepts repeated or comma separated type parameters.
func parseKinds(values []string) ([]entities.Kind, error) {
	var kinds []entities.Kind
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := entities.ParseKind(part)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, pkgerrors.InvalidInput("limit", "limit must be a non-negative integer")
	}
	return limit, nil
}
