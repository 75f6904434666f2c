package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/idena-watch/flipwatch/pkg/scan"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseEpoch(r *http.Request) (uint64, bool) {
	raw := mux.Vars(r)["epoch"]
	epoch, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return epoch, true
}

// HandleHealth reports process and store health.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := c.App.Store.ScannedEpochs(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "store error"})
		return
	}
	if c.App.Publisher != nil {
		if err := c.App.Publisher.Health(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "redis error"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleEpochs lists every epoch a report exists for.
func (c *Controller) HandleEpochs(w http.ResponseWriter, r *http.Request) {
	epochs, err := c.App.Store.ScannedEpochs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"epochs": epochs})
}

// HandleEpochReport serves the stored offense report for one epoch.
func (c *Controller) HandleEpochReport(w http.ResponseWriter, r *http.Request) {
	epoch, ok := parseEpoch(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}
	report, found, err := c.App.CachedReport(r.Context(), epoch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "epoch not scanned")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleWindowReport serves the stored reports for a window of epochs. The
// window defaults to everything scanned; `start` and `end` query parameters
// narrow it.
func (c *Controller) HandleWindowReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	epochs, err := c.App.Store.ScannedEpochs(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	if len(epochs) == 0 {
		writeJSON(w, http.StatusOK, &scan.WindowReport{
			Reports:       []scan.EpochReport{},
			SkippedEpochs: []uint64{},
		})
		return
	}

	start, end := epochs[0], epochs[len(epochs)-1]
	qs := r.URL.Query()
	if v := qs.Get("start"); v != "" {
		n, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid start")
			return
		}
		start = n
	}
	if v := qs.Get("end"); v != "" {
		n, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid end")
			return
		}
		end = n
	}
	if start > end {
		writeError(w, http.StatusBadRequest, "start is after end")
		return
	}

	report, err := c.App.Store.WindowReport(ctx, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleLeaderboard computes the grade-score leaderboard for one epoch on
// demand. This always hits the upstream API; it is not persisted.
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	epoch, ok := parseEpoch(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}
	lb, err := scan.BuildLeaderboard(r.Context(), c.App.Runner.Client, c.App.Logger, epoch)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream error")
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
