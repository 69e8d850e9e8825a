package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mishgancheg/wiki-rag/search"
	"github.com/mishgancheg/wiki-rag/source"
)

type searchRequest struct {
	Query     string   `json:"query"`
	Threshold *float64 `json:"threshold,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
}

type searchResult struct {
	FragmentID      string  `json:"fragmentId"`
	DocumentID      string  `json:"documentId"`
	DisplayText     string  `json:"displayText"`
	MatchedQuestion string  `json:"matchedQuestion,omitempty"`
	Distance        float64 `json:"distance"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	threshold := search.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	limit := search.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	results, err := s.searcher.Search(r.Context(), req.Query, threshold, limit)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery),
			errors.Is(err, search.ErrInvalidThreshold),
			errors.Is(err, search.ErrInvalidLimit):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("search failed", "error", err)
			respondError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}

	resp := searchResponse{Results: make([]searchResult, 0, len(results))}
	for _, result := range results {
		resp.Results = append(resp.Results, searchResult{
			FragmentID:      result.FragmentID,
			DocumentID:      result.DocumentID,
			DisplayText:     result.DisplayText,
			MatchedQuestion: result.MatchedQuestion,
			Distance:        result.Distance,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

type indexRequest struct {
	PageIDs []string `json:"pageIds"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.PageIDs) == 0 {
		respondError(w, http.StatusBadRequest, "pageIds is required")
		return
	}

	// Ingestion outlives the request; status is polled via /api/status.
	go func(ids []string) {
		if _, err := s.indexer.IngestDocuments(context.Background(), ids); err != nil {
			s.logger.Error("ingestion aborted", "error", err)
		}
	}(req.PageIDs)

	respondJSON(w, http.StatusAccepted, map[string]int{"accepted": len(req.PageIDs)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.indexer.Registry().Snapshot())
}

func (s *Server) handleSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.source.ListSpaces(r.Context())
	if err != nil {
		s.logger.Error("listing spaces failed", "error", err)
		respondError(w, http.StatusBadGateway, "content source unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]source.Space{"spaces": spaces})
}

// pageNode is a page listing entry with its index state.
type pageNode struct {
	source.PageRef
	Indexed bool `json:"indexed"`
}

func (s *Server) handleRootPages(w http.ResponseWriter, r *http.Request) {
	refs, err := s.source.ListRootPages(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.logger.Error("listing root pages failed", "error", err)
		respondError(w, http.StatusBadGateway, "content source unavailable")
		return
	}
	s.respondPageNodes(w, r, refs)
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	refs, err := s.source.ListChildren(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("listing children failed", "error", err)
		respondError(w, http.StatusBadGateway, "content source unavailable")
		return
	}
	s.respondPageNodes(w, r, refs)
}

func (s *Server) respondPageNodes(w http.ResponseWriter, r *http.Request, refs []source.PageRef) {
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	indexedIDs, err := s.store.ListIndexedDocumentIDs(r.Context(), ids)
	if err != nil {
		s.logger.Error("listing indexed documents failed", "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	indexed := make(map[string]bool, len(indexedIDs))
	for _, id := range indexedIDs {
		indexed[id] = true
	}

	nodes := make([]pageNode, 0, len(refs))
	for _, ref := range refs {
		nodes = append(nodes, pageNode{PageRef: ref, Indexed: indexed[ref.ID]})
	}
	respondJSON(w, http.StatusOK, map[string][]pageNode{"pages": nodes})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
