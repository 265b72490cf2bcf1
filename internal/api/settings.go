package api

import (
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/srcfl/srcful-gateway-sub001/internal/settings"
)

// endpointRequest is the body of POST /api/endpoints.
type endpointRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, _ *http.Request) {
	eps := s.bb.Settings().Harvest.Endpoints()
	if eps == nil {
		eps = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoints": eps, "count": len(eps)})
}

// handleAddEndpoint adds a harvest endpoint. Running harvest tasks pick it
// up on their next flush.
func (s *Server) handleAddEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := url.Parse(req.Endpoint)
	if err != nil || u.Scheme == "" {
		writeValidationError(w, "endpoint must be an absolute URL")
		return
	}
	if s.schemes != nil && !s.schemes[u.Scheme] {
		writeValidationError(w, "unsupported endpoint scheme: "+u.Scheme)
		return
	}

	s.bb.Settings().Harvest.AddEndpoint(req.Endpoint, settings.SourceLocal)
	writeJSON(w, http.StatusCreated, map[string]any{"endpoints": s.bb.Settings().Harvest.Endpoints()})
}

// handleDeleteEndpoints removes the endpoint named by ?endpoint=, or all of
// them when the parameter is absent.
func (s *Server) handleDeleteEndpoints(w http.ResponseWriter, r *http.Request) {
	h := s.bb.Settings().Harvest

	ep := r.URL.Query().Get("endpoint")
	if ep == "" {
		h.ClearEndpoints(settings.SourceLocal)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !slices.Contains(h.Endpoints(), ep) {
		writeNotFound(w, "endpoint not found")
		return
	}
	h.RemoveEndpoint(ep, settings.SourceLocal)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	data, err := s.bb.Settings().MarshalJSON()
	if err != nil {
		writeInternalError(w, "failed to encode settings")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // Best-effort write to response
}

// handleUpdateSettings applies a partial settings document as a local
// change. Sections missing from the body are left as they are.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading body: "+err.Error())
		return
	}

	if err := s.bb.Settings().UpdateFromJSON(data, settings.SourceLocal); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.handleGetSettings(w, r)
}

