package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/dto"
	"github.com/fadilmartias/aca-radar/internal/middleware"
	"github.com/fadilmartias/aca-radar/internal/response"
	"github.com/fadilmartias/aca-radar/internal/usecase"
	"github.com/fadilmartias/aca-radar/internal/util"
	"github.com/gofiber/fiber/v2"
)

type PaperHandler struct {
	uc *usecase.PaperUsecase
}

func NewPaperHandler(uc *usecase.PaperUsecase) *PaperHandler {
	return &PaperHandler{uc: uc}
}

func (h *PaperHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/papers", h.List)
	router.Post("/papers/embeddings", middleware.RateLimiter(1, 10*time.Second), h.Backfill)
}

// List serves GET /papers?journals=a,b&page=&top_n=&min_date=&max_date=&job_id=
func (h *PaperHandler) List(c *fiber.Ctx) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return util.AppErrorResponse(c, "invalid query", err)
	}
	topN, err := queryInt(c, "top_n")
	if err != nil {
		return util.AppErrorResponse(c, "invalid query", err)
	}

	req := usecase.ListPapersRequest{
		Journals: splitList(c.Query("journals")),
		TopN:     topN,
		MinDate:  c.Query("min_date"),
		MaxDate:  c.Query("max_date"),
		JobID:    c.Query("job_id"),
	}
	if page != nil {
		req.Page = *page
	}

	res, err := h.uc.ListPapers(c.UserContext(), req)
	if err != nil {
		return util.AppErrorResponse(c, "failed to list papers", err)
	}

	out := util.SuccessResponseFormat{
		Message: "Success list papers",
		Data:    dto.NewPaperDTOs(res.Papers),
		Meta:    dto.NewPapersMeta(req.Journals, res),
	}
	if res.Page != nil {
		out.Pagination = response.NewPagination(*res.Page)
	}
	return util.SuccessResponse(c, out)
}

func (h *PaperHandler) Backfill(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return util.AppErrorResponse(c, "invalid query", err)
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	stored, err := h.uc.BackfillEmbeddings(c.UserContext(), n)
	if err != nil {
		return util.AppErrorResponse(c, "failed to embed papers", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success embed papers",
		Data:    fiber.Map{"embedded": stored},
	})
}

func queryInt(c *fiber.Ctx, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid query", map[string]string{key: "must be an integer"})
	}
	return &n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
