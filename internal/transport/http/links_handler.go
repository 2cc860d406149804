package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mfontes/shortlink/internal/config"
	"github.com/mfontes/shortlink/internal/constants"
	"github.com/mfontes/shortlink/internal/infrastructure/logger"
	appvalidation "github.com/mfontes/shortlink/internal/infrastructure/validation"
	"github.com/mfontes/shortlink/internal/shortener"
	"github.com/mfontes/shortlink/pkg/httputils"
)

type LinksHandler struct {
	cfg *config.Config
	svc *shortener.Service
}

func NewLinksHandler(cfg *config.Config, svc *shortener.Service) *LinksHandler {
	return &LinksHandler{cfg: cfg, svc: svc}
}

type createLinkRequest struct {
	URL        string `json:"url" validate:"required,notblank,http_url"`
	CustomCode string `json:"customCode,omitempty" validate:"omitempty,shortcode"`
	TTLSeconds int64  `json:"ttlSeconds,omitempty" validate:"omitempty,gt=0"`
}

type createLinkResponse struct {
	Code      string     `json:"code"`
	URL       string     `json:"url"`
	ShortURL  string     `json:"shortUrl"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		apiErr := constants.ErrInvalidRequestBody
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, e := range validationErrs {
				if e.Field() == "url" {
					apiErr = constants.ErrInvalidURL
					break
				}
				if e.Field() == "customCode" {
					apiErr = constants.ErrInvalidCode
					break
				}
				if e.Field() == "ttlSeconds" {
					apiErr = apiErr.WithMessage("ttlSeconds must be positive")
					break
				}
			}
		}
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	record, err := h.svc.Create(r.Context(), shortener.CreateLinkInput{
		TargetURL:  req.URL,
		CustomCode: req.CustomCode,
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		switch {
		case errors.Is(err, shortener.ErrInvalidURL):
			httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
		case errors.Is(err, shortener.ErrInvalidCode):
			httputils.WriteAPIError(w, r, constants.ErrInvalidCode)
		case errors.Is(err, shortener.ErrCodeTaken):
			httputils.WriteAPIError(w, r, constants.ErrCustomCodeTaken)
		case errors.Is(err, shortener.ErrGenerationExhausted):
			logger.Error("code generation exhausted", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrGenerationExhausted)
		case errors.Is(err, shortener.ErrTargetUnreachable):
			httputils.WriteAPIError(w, r, constants.ErrInvalidURL.WithMessage("Target URL is unreachable"))
		case errors.Is(err, shortener.ErrUnavailable):
			httputils.WriteAPIError(w, r, constants.ErrStoreUnavailable)
		default:
			logger.Error("failed to create link", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkCreated, createLinkResponse{
		Code:      record.Code,
		URL:       record.TargetURL,
		ShortURL:  strings.TrimRight(h.cfg.Shortener.BaseURL, "/") + "/" + record.Code,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	})
}

func (h *LinksHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Shortener.ResolveTimeout)
	defer cancel()

	record, err := h.svc.Resolve(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, shortener.ErrInvalidCode):
			httputils.WriteAPIError(w, r, constants.ErrInvalidCode)
		case errors.Is(err, shortener.ErrNotFound):
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		case errors.Is(err, shortener.ErrExpired):
			httputils.WriteAPIError(w, r, constants.ErrLinkExpired)
		case errors.Is(err, shortener.ErrUnavailable):
			httputils.WriteAPIError(w, r, constants.ErrStoreUnavailable)
		default:
			logger.Error("failed to resolve code", zap.Error(err), zap.String("code", code))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	http.Redirect(w, r, record.TargetURL, h.cfg.Shortener.RedirectStatus)
}

type statsResponse struct {
	Code   string                 `json:"code"`
	Clicks int64                  `json:"clicks"`
	From   string                 `json:"from"`
	To     string                 `json:"to"`
	Daily  []shortener.DailyCount `json:"daily"`
}

type statsQueryParams struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

func (h *LinksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw == "" && toRaw == "" {
		// Default window: last 30 days inclusive.
		now := time.Now().UTC()
		fromRaw = now.AddDate(0, 0, -29).Format(time.DateOnly)
		toRaw = now.Format(time.DateOnly)
	}
	if err := appvalidation.Validate(statsQueryParams{From: fromRaw, To: toRaw}); err != nil {
		apiErr := constants.ErrInvalidRequestBody.WithMessage("from and to must be YYYY-MM-DD")
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	from, err := time.Parse(time.DateOnly, fromRaw)
	if err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody.WithMessage("invalid from (YYYY-MM-DD)"))
		return
	}
	to, err := time.Parse(time.DateOnly, toRaw)
	if err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody.WithMessage("invalid to (YYYY-MM-DD)"))
		return
	}

	stats, err := h.svc.Stats(r.Context(), code, from, to)
	if err != nil {
		switch {
		case errors.Is(err, shortener.ErrInvalidCode):
			httputils.WriteAPIError(w, r, constants.ErrInvalidCode)
		case errors.Is(err, shortener.ErrNotFound):
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		case errors.Is(err, shortener.ErrInvalidRange):
			httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody.WithMessage("from must be <= to"))
		case errors.Is(err, shortener.ErrUnavailable):
			httputils.WriteAPIError(w, r, constants.ErrStoreUnavailable)
		default:
			logger.Error("failed to fetch stats", zap.Error(err), zap.String("code", code))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessStatsFound, statsResponse{
		Code:   stats.Code,
		Clicks: stats.Clicks,
		From:   from.Format(time.DateOnly),
		To:     to.Format(time.DateOnly),
		Daily:  stats.Daily,
	})
}
