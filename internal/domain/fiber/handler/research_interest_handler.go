package handler

import (
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/dto"
	"github.com/fadilmartias/aca-radar/internal/middleware"
	"github.com/fadilmartias/aca-radar/internal/usecase"
	"github.com/fadilmartias/aca-radar/internal/util"
	"github.com/gofiber/fiber/v2"
)

type ResearchInterestHandler struct {
	uc *usecase.ResearchInterestUsecase
}

func NewResearchInterestHandler(uc *usecase.ResearchInterestUsecase) *ResearchInterestHandler {
	return &ResearchInterestHandler{uc: uc}
}

func (h *ResearchInterestHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/research_interest", middleware.RateLimiter(10, 1*time.Minute), h.Submit)
	router.Get("/research_interest/:job_id", h.Status)
}

func (h *ResearchInterestHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitResearchInterestRequest
	if err := c.BodyParser(&req); err != nil {
		return util.AppErrorResponse(c, "invalid request body",
			apperror.NewValidation("invalid request body", map[string]string{"term": "is required"}))
	}

	res, err := h.uc.Submit(c.UserContext(), req.Term)
	if err != nil {
		return util.AppErrorResponse(c, "failed to submit research interest", err)
	}

	message := "Research interest queued for embedding"
	if res.Cached {
		message = "Research interest already embedded"
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusAccepted,
		Message: message,
		Data: dto.SubmitResearchInterestResponse{
			JobID:  res.JobID,
			Status: string(res.Status),
			Cached: res.Cached,
		},
	})
}

func (h *ResearchInterestHandler) Status(c *fiber.Ctx) error {
	job, err := h.uc.GetJob(c.UserContext(), c.Params("job_id"))
	if err != nil {
		return util.AppErrorResponse(c, "failed to get research interest", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get research interest",
		Data:    dto.NewResearchInterestJobDTO(job),
	})
}
