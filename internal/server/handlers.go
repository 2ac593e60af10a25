package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/inferloop/dqcore/internal/config"
	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// runChecksRequest selects one configured asset. Data optionally carries an
// inline table for dataframe-sourced assets, replacing whatever the resolver
// has registered under the asset's table name.
type runChecksRequest struct {
	AssetID string        `json:"asset_id"`
	Data    *models.Table `json:"data,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": constants.AppName,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": constants.AppVersion,
		"service": constants.AppName,
	})
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets := make([]map[string]interface{}, 0, len(s.suite.Assets))
	for _, id := range s.suite.AssetIDs() {
		asset := s.suite.Assets[id]
		assets = append(assets, map[string]interface{}{
			"asset_id":    id,
			"source_kind": asset.Handle.SourceKind,
			"checks":      len(asset.Checks),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"environment": s.suite.Environment,
		"assets":      assets,
	})
}

func (s *Server) handleRunChecks(w http.ResponseWriter, r *http.Request) {
	var req runChecksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("failed to decode request body: %v", err))
		return
	}
	if req.AssetID == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "asset_id is required")
		return
	}

	asset, ok := s.suite.Assets[req.AssetID]
	if !ok {
		s.writeError(w, http.StatusNotFound, "UNKNOWN_ASSET", fmt.Sprintf("asset '%s' is not configured", req.AssetID))
		return
	}

	accessor, err := s.resolveAccessor(r, asset, req.Data)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "ACCESSOR_ERROR", err.Error())
		return
	}

	report := s.engine.EvaluateAsset(r.Context(), req.AssetID, accessor, asset.Checks)
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) resolveAccessor(r *http.Request, asset *config.AssetConfig, data *models.Table) (interfaces.Accessor, error) {
	if data != nil {
		if asset.Handle.SourceKind != models.SourceInMemory {
			return nil, fmt.Errorf("inline data is only accepted for dataframe-sourced assets")
		}
		return dataset.NewDataFrameAccessor(asset.Handle, data, s.logger)
	}
	return s.resolver.Resolve(r.Context(), asset.Handle)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
