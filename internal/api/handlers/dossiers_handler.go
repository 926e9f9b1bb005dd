package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marketscout/backend/internal/dossier"
	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/internal/storage/sqlite"
)

type DossiersHandler struct {
	synthesizer *dossier.Synthesizer
	store       *sqlite.Client
}

func NewDossiersHandler(synthesizer *dossier.Synthesizer, store *sqlite.Client) *DossiersHandler {
	return &DossiersHandler{
		synthesizer: synthesizer,
		store:       store,
	}
}

func (h *DossiersHandler) Synthesize(c *fiber.Ctx) error {
	var req struct {
		CampaignID         string   `json:"campaign_id"`
		SignalIDs          []string `json:"signal_ids"`
		Strength           string   `json:"strength"`
		IncludeHypotheses  bool     `json:"include_hypotheses"`
		IncludeExperiments bool     `json:"include_experiments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	synthReq := dossier.Request{
		SignalIDs:          req.SignalIDs,
		IncludeHypotheses:  req.IncludeHypotheses,
		IncludeExperiments: req.IncludeExperiments,
	}
	if req.Strength != "" {
		synthReq.Filter = &models.SignalFilter{Strength: models.Strength(req.Strength)}
	}

	d, err := h.synthesizer.Synthesize(c.Context(), tenantID(c), req.CampaignID, synthReq)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(d)
}

func (h *DossiersHandler) Get(c *fiber.Ctx) error {
	d, err := h.store.GetDossier(c.Context(), tenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(d)
}
