package handlers

import (
	"log/slog"
	"net/http"

	"go_5_course_keep/internal/service"
	"go_5_course_keep/internal/webutil"
)

// RepairHandler はチェーン修復を手動で実行します。定期実行は scheduler が行います。
type RepairHandler struct {
	repair service.ChainRepairService
	logger *slog.Logger
}

func NewRepairHandler(repair service.ChainRepairService, logger *slog.Logger) *RepairHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepairHandler{repair: repair, logger: logger}
}

// RepairAll は POST /maintenance/repair
func (h *RepairHandler) RepairAll(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "RepairAll"))
	actor, ok := actorFrom(w, r, logger)
	if !ok || !requireTeacher(w, logger, actor) {
		return
	}

	report, err := h.repair.RepairAll(r.Context())
	if err != nil {
		respondServiceError(w, logger, "Error repairing chains in service", err)
		return
	}
	logger.Info("Chain repair finished", slog.Int("healed", report.Healed), slog.Int("failed", report.Failed))
	webutil.RespondWithJSON(w, http.StatusOK, report, logger)
}
