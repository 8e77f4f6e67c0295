package handler

import (
	"errors"
	"net/http"
	"strconv"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/logger"
	"SVIXScreener/internal/model"
	"SVIXScreener/internal/screener"
	"SVIXScreener/internal/table"

	"github.com/gin-gonic/gin"
)

const (
	_intervalQuery  = "interval"
	_lookbackQuery  = "lookback"
	_thresholdQuery = "threshold"
	_searchQuery    = "search"
	_sortQuery      = "sort"
	_marketCapQuery = "market_cap"
	_limitQuery     = "limit"
)

type Handler struct {
	service  *screener.Service
	defaults screener.Query

	logger logger.Logger
}

// NewHandler serves queries on top of defaults. The API returns every matching row unless
// the request sets limit, so any report limit in defaults is dropped.
func NewHandler(service *screener.Service, defaults screener.Query, logger logger.Logger) *Handler {
	defaults.Limit = 0
	return &Handler{
		service:  service,
		defaults: defaults,
		logger:   logger,
	}
}

func (h *Handler) InitRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Health)
	api := r.Group("/api")
	api.GET("/svix", h.Screen)
	api.POST("/refresh", h.Refresh)

	return r
}

type screenResponse struct {
	Updated   string             `json:"updated,omitempty"`
	Interval  string             `json:"interval"`
	Lookback  int                `json:"lookback"`
	Threshold float64            `json:"threshold"`
	Columns   []string           `json:"columns"`
	Rows      []model.DisplayRow `json:"rows"`
	Skipped   int                `json:"skipped"`
}

func (h *Handler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Screen(ctx *gin.Context) {
	q, err := h.parseQuery(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.service.Query(ctx.Request.Context(), q)
	if err != nil {
		if errors.Is(err, calculator.ErrInvalidArgument) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("%s: screen", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	resp := screenResponse{
		Interval:  res.Query.Interval.String(),
		Lookback:  res.Query.Lookback,
		Threshold: res.Query.Threshold,
		Columns:   res.Table.Columns,
		Rows:      res.Table.Rows,
		Skipped:   res.Skipped,
	}
	if !res.LastDate.IsZero() {
		resp.Updated = res.LastDate.Format("2006-01-02")
	}
	ctx.JSON(http.StatusOK, resp)
}

func (h *Handler) Refresh(ctx *gin.Context) {
	snap, err := h.service.Refresh(ctx.Request.Context())
	if err != nil {
		h.logger.Errorf("%s: refresh", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{
		"id":      snap.ID,
		"tickers": len(snap.Records),
	}
	if !snap.LastDate.IsZero() {
		resp["updated"] = snap.LastDate.Format("2006-01-02")
	}
	ctx.JSON(http.StatusOK, resp)
}

func (h *Handler) parseQuery(ctx *gin.Context) (screener.Query, error) {
	q := h.defaults
	if v := ctx.Query(_intervalQuery); v != "" {
		iv, err := calculator.ParseInterval(v)
		if err != nil {
			return q, err
		}
		q.Interval = iv
	}
	if v := ctx.Query(_lookbackQuery); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, errors.New("lookback must be an integer")
		}
		q.Lookback = n
	}
	if v := ctx.Query(_thresholdQuery); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return q, errors.New("threshold must be a number")
		}
		q.Threshold = f
	}
	if v, ok := ctx.GetQuery(_searchQuery); ok {
		q.Search = v
	}
	if v := ctx.Query(_sortQuery); v != "" {
		key, err := table.ParseSortKey(v)
		if err != nil {
			return q, err
		}
		q.SortKey = key
	}
	if v := ctx.Query(_marketCapQuery); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, errors.New("market_cap must be a boolean")
		}
		q.ShowMarketCap = b
	}
	if v := ctx.Query(_limitQuery); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, errors.New("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	return q, nil
}
