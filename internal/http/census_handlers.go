package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ictrack/internal/service"

	"go.uber.org/zap"
)

// CensusHandler 普查导入/查询 API
type CensusHandler struct {
	svc    service.CensusService
	logger *zap.Logger
}

func NewCensusHandler(svc service.CensusService, logger *zap.Logger) *CensusHandler {
	return &CensusHandler{svc: svc, logger: logger}
}

// POST /census/api/v1/import/preview
// body: { "text": "<raw pasted census>" }
func (h *CensusHandler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	var req service.PreviewImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	resp, err := h.svc.PreviewImport(r.Context(), req)
	if err != nil {
		h.logger.Error("preview import failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// POST /census/api/v1/import/apply
// body: { "batch_token": "...", "selected_keys": [...], "allow_error_override": false }
func (h *CensusHandler) ApplyImport(w http.ResponseWriter, r *http.Request) {
	var req service.ApplyImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.BatchToken == "" {
		writeJSON(w, http.StatusBadRequest, Fail("batch_token is required"))
		return
	}

	resp, err := h.svc.ApplyImport(r.Context(), req)
	if err != nil {
		h.logger.Error("apply import failed", zap.Error(err))
		// 存储故障是服务端错误；行级问题（error 行未 override、
		// 批次过期）是调用方可恢复的
		if errors.Is(err, service.ErrStorage) {
			writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GET /census/api/v1/residents?active=true&page=1&size=50
func (h *CensusHandler) ListResidents(w http.ResponseWriter, r *http.Request) {
	req := service.ListResidentsRequest{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Page:       parseInt(r.URL.Query().Get("page"), 1),
		Size:       parseInt(r.URL.Query().Get("size"), 50),
	}

	resp, err := h.svc.ListResidents(r.Context(), req)
	if err != nil {
		h.logger.Error("list residents failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GET /census/api/v1/audit?page=1&size=50
func (h *CensusHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	req := service.ListAuditRequest{
		Page: parseInt(r.URL.Query().Get("page"), 1),
		Size: parseInt(r.URL.Query().Get("size"), 50),
	}

	resp, err := h.svc.ListAudit(r.Context(), req)
	if err != nil {
		h.logger.Error("list audit failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GET /census/api/v1/export
// 导出感染控制台账 Excel（住民 + 审计轨迹）
func (h *CensusHandler) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("export snapshot failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	data, err := GenerateCensusWorkbook(doc)
	if err != nil {
		h.logger.Error("export workbook failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	filename := fmt.Sprintf("ictrack-census-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
