package http

import (
	"encoding/csv"
	"fmt"
	"mime"
	"net/http"
	"time"

	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/service"
)

const maxCSVUpload = 10 << 20

// ImportCSV accepts a raw text/csv body. Rows the parser cannot read are
// reported as skipped next to the rows the ledger rejected.
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mediaType != "text/csv" && mediaType != "application/csv" && mediaType != "text/plain") {
		writeError(w, r, fmt.Errorf("%w: expected text/csv", errUnsupported))
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxCSVUpload)
	rows, skipped, err := service.ParseImportCSV(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusOK, service.ImportResult{Skipped: skipped})
		return
	}

	result, err := h.ledger.Import(r.Context(), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result.Skipped = append(skipped, result.Skipped...)
	writeJSON(w, http.StatusCreated, result)
}

// ExportCSV streams the filtered ledger as a CSV attachment.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := h.export.Export(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("ledger-%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		logger.Error("Failed to write export", "error", err)
	}
}
