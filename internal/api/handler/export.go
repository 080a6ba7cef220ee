package handler

import (
	"io"
	"net/http"
)

// GetExport serves /export: the last-refreshed DuckDB OLAP snapshot as
// Parquet bytes. Returns 503 if DuckDB export is not configured or no
// snapshot has been produced yet.
// @Summary Download the DuckDB export snapshot
// @Description Returns the most recently refreshed OLAP snapshot as a Parquet file.
// @Tags export
// @Produce application/octet-stream
// @Success 200 {file} binary
// @Failure 503 {string} string "error"
// @Router /export [get]
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	var data []byte
	if h.Export != nil {
		data = h.Export.Snapshot()
	}
	if data == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "export snapshot not available")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="chron-export.parquet"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
