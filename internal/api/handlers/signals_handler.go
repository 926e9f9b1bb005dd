package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/marketscout/backend/internal/ingestion"
	"github.com/marketscout/backend/internal/scan"
	"github.com/marketscout/backend/internal/scheduler"
	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/internal/storage/sqlite"
)

type SignalsHandler struct {
	ingestor *ingestion.Service
	runner   *scheduler.Runner
	store    *sqlite.Client
}

func NewSignalsHandler(ingestor *ingestion.Service, runner *scheduler.Runner, store *sqlite.Client) *SignalsHandler {
	return &SignalsHandler{
		ingestor: ingestor,
		runner:   runner,
		store:    store,
	}
}

// Ingest accepts pre-fetched raw observations, e.g. from an external
// scan pipeline pushing results in.
func (h *SignalsHandler) Ingest(c *fiber.Ctx) error {
	var req struct {
		Observations []scan.RawObservation `json:"observations"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	outcomes, err := h.ingestor.Ingest(c.Context(), tenantID(c), req.Observations)
	if err != nil {
		return respondError(c, err)
	}

	results := make([]fiber.Map, 0, len(outcomes))
	for _, o := range outcomes {
		item := fiber.Map{"source": o.Observation.Source}
		if o.Err != nil {
			item["error"] = o.Err.Error()
		} else {
			item["signal_id"] = o.Signal.ID
			item["confidence"] = o.Signal.Confidence
			item["strength"] = string(o.Signal.Strength)
			item["red_flags"] = o.Verification.RedFlags
		}
		results = append(results, item)
	}

	return c.JSON(fiber.Map{"results": results})
}

func (h *SignalsHandler) List(c *fiber.Ctx) error {
	filter := models.SignalFilter{
		Strength: models.Strength(c.Query("strength")),
		Type:     models.SignalType(c.Query("type")),
		Limit:    c.QueryInt("limit", 50),
	}
	if days := c.QueryInt("window_days", 0); days > 0 {
		filter.Since = time.Now().UTC().AddDate(0, 0, -days)
	}

	signals, err := h.store.ListSignals(c.Context(), tenantID(c), filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"signals": signals})
}

func (h *SignalsHandler) Get(c *fiber.Ctx) error {
	signal, err := h.store.GetSignal(c.Context(), tenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(signal)
}

// ManualScan runs a one-off scan outside the task table, tracked only
// by its transient scan id.
func (h *SignalsHandler) ManualScan(c *fiber.Ctx) error {
	var req struct {
		ScanType  string   `json:"scan_type"`
		SourceIDs []string `json:"source_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	result, err := h.runner.RunManualScan(c.Context(), tenantID(c), req.ScanType, req.SourceIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
