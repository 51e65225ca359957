package api

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/ingest"
	"github.com/JakeFAU/collection-ingest/internal/mapping"
)

const (
	msgCollectionNotFound = "컬렉션을 찾을 수 없습니다."
	msgMappingDeleted     = "필드 매핑이 삭제되었습니다."
)

// saveMapping handles POST /api/scraper/save-mapping.
func (s *Server) saveMapping(w http.ResponseWriter, r *http.Request) {
	var req saveMappingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := mapping.Validate(req.Mapping); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.requireCollection(w, r, req.CollectionID) {
		return
	}
	fm := catalog.FieldMapping{Mapping: req.Mapping, IgnoreUnmapped: boolOrDefault(req.IgnoreUnmapped, true)}
	if err := s.deps.Collections.SaveFieldMapping(r.Context(), req.CollectionID, fm); err != nil {
		s.writeCollectionError(w, "save field mapping failed", req.CollectionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"mapping":         fm.Mapping,
		"ignore_unmapped": fm.IgnoreUnmapped,
	})
}

// getMapping handles GET /api/scraper/get-mapping/{collection_id}. A
// collection without a mapping returns an empty object.
func (s *Server) getMapping(w http.ResponseWriter, r *http.Request) {
	id, err := parseCollectionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.requireCollection(w, r, id) {
		return
	}
	fm, err := s.deps.Collections.GetFieldMapping(r.Context(), id)
	if err != nil {
		s.writeCollectionError(w, "load field mapping failed", id, err)
		return
	}
	var view any = map[string]any{}
	if v := mapping.ToView(fm); v != nil {
		view = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"mapping": view})
}

// deleteMapping handles DELETE /api/scraper/delete-mapping/{collection_id}.
func (s *Server) deleteMapping(w http.ResponseWriter, r *http.Request) {
	id, err := parseCollectionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.requireCollection(w, r, id) {
		return
	}
	if err := s.deps.Collections.DeleteFieldMapping(r.Context(), id); err != nil {
		s.writeCollectionError(w, "delete field mapping failed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msgMappingDeleted})
}

// requireCollection writes 404 and returns false when the collection is unknown.
func (s *Server) requireCollection(w http.ResponseWriter, r *http.Request, id int64) bool {
	if _, err := s.deps.Collections.GetCollection(r.Context(), id); err != nil {
		s.writeCollectionError(w, "load collection failed", id, err)
		return false
	}
	return true
}

func (s *Server) writeCollectionError(w http.ResponseWriter, msg string, id int64, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgCollectionNotFound)
		return
	}
	s.logger.Error(msg, zap.Int64("collection_id", id), zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

// scrapeURL handles POST /api/scraper/scrape-url. Nothing is persisted.
func (s *Server) scrapeURL(w http.ResponseWriter, r *http.Request) {
	var req scrapeURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	md, err := s.deps.Scraper.ScrapeURL(r.Context(), req.URL, req.CollectionID, boolOrDefault(req.ApplyMapping, true))
	if err != nil {
		s.logger.Warn("scrape failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("스크래핑 실패: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": md, "source_url": req.URL})
}

// scrapeAndCreate handles POST /api/scraper/scrape-and-create. The scraped
// metadata is stored without applying the collection's mapping.
func (s *Server) scrapeAndCreate(w http.ResponseWriter, r *http.Request) {
	var req scrapeURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.deps.Scraper.ScrapeAndCreate(r.Context(), req.URL, req.CollectionID)
	if err != nil {
		s.logger.Warn("scrape and create failed", zap.String("url", req.URL), zap.Error(err))
		var persistErr *ingest.PersistenceError
		if errors.As(err, &persistErr) {
			writeError(w, http.StatusInternalServerError, persistErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("아이템 생성 실패: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "item": item.Ref()})
}

// bulkScrape handles POST /api/scraper/bulk-scrape.
func (s *Server) bulkScrape(w http.ResponseWriter, r *http.Request) {
	var req bulkScrapeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.runBatch(w, r, req.CollectionID, ingest.RowsFromURLs(req.URLs), req.ApplyMapping)
}

// bulkScrapeCSV handles POST /api/scraper/bulk-scrape-csv.
func (s *Server) bulkScrapeCSV(w http.ResponseWriter, r *http.Request) {
	form, err := parseUpload(w, r)
	if err != nil {
		writeError(w, statusFor(err), clientMessage(err))
		return
	}
	defer form.File.Close()

	rows, err := ingest.ParseCSV(form.File)
	if err != nil {
		writeError(w, statusFor(err), clientMessage(err))
		return
	}
	s.runBatch(w, r, form.CollectionID, rows, form.ApplyMapping)
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request, collectionID int64, rows []ingest.Row, apply bool) {
	ctx := r.Context()
	fm, err := s.deps.Scraper.ResolveMapping(ctx, collectionID, apply)
	if err != nil {
		s.logger.Error("resolve mapping failed", zap.Int64("collection_id", collectionID), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	result, err := s.deps.Batch.Run(ctx, collectionID, rows, fm)
	if err != nil {
		writeError(w, statusFor(err), clientMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
