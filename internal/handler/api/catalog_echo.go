package api

import (
	"errors"
	"net/http"
	"time"

	models "PriceHunter/internal/domain/models"
	domrepo "PriceHunter/internal/domain/repository"
	"PriceHunter/internal/usecase"
	xhttp "PriceHunter/pkg/http"
	xlogger "PriceHunter/pkg/logger"
	"PriceHunter/pkg/queue"
	"PriceHunter/pkg/util"

	"github.com/labstack/echo/v4"
)

// CatalogEchoHandler exposes the catalog, scrape sessions, tracking, and
// refresh operations over HTTP.
type CatalogEchoHandler struct {
	logger     *xlogger.Logger
	catalog    *usecase.Catalog
	sessions   *usecase.SessionManager
	analyzer   *usecase.Analyzer
	options    domrepo.OptionsSource
	tracking   domrepo.TrackingStore
	dispatcher domrepo.RefreshDispatcher
	publisher  queue.QueueService
	history    domrepo.ObservationHistory
}

func NewCatalogEchoHandler(
	logger *xlogger.Logger,
	catalog *usecase.Catalog,
	sessions *usecase.SessionManager,
	analyzer *usecase.Analyzer,
	options domrepo.OptionsSource,
	tracking domrepo.TrackingStore,
	dispatcher domrepo.RefreshDispatcher,
	publisher queue.QueueService,
) *CatalogEchoHandler {
	return &CatalogEchoHandler{
		logger:     logger,
		catalog:    catalog,
		sessions:   sessions,
		analyzer:   analyzer,
		options:    options,
		tracking:   tracking,
		dispatcher: dispatcher,
		publisher:  publisher,
	}
}

// SetHistory enables the archived-history endpoint when the configured
// sink supports read-back.
func (h *CatalogEchoHandler) SetHistory(hist domrepo.ObservationHistory) { h.history = hist }

func (h *CatalogEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/products", h.StartSearch)
	g.GET("/products", h.ListProducts)
	g.DELETE("/products/:id", h.DeleteProduct)
	g.GET("/products/:id/analysis", h.Analysis)

	g.GET("/groups", h.ListGroups)
	g.POST("/groups/:key/collapse", h.ToggleCollapse)
	g.POST("/groups/:key/refresh", h.RefreshGroup)
	g.DELETE("/groups/:key", h.DeleteGroup)

	g.GET("/sessions/:query", h.SessionStatus)
	g.POST("/sessions/:query/cancel", h.CancelSession)

	g.GET("/options", h.StoreOptions)
	g.GET("/history", h.ArchivedHistory)

	g.GET("/tracking", h.ListTracking)
	g.POST("/tracking", h.Track)
	g.DELETE("/tracking/:key", h.Untrack)

	g.POST("/refresh", h.DispatchRefresh)
}

func (h *CatalogEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// StartSearch starts a scrape session for the query. When the catalog is
// full and the query is new, the request is rejected before any stream is
// opened.
func (h *CatalogEchoHandler) StartSearch(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	info, err := h.sessions.StartSearch(c.Request().Context(), req.Query, req.ForceRefresh)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCatalogFull):
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("product limit reached, remove a product first").WithError(err))
		case errors.Is(err, models.ErrThrottled):
			return xhttp.DataResponse(c, http.StatusTooManyRequests, "too many searches, slow down")
		default:
			h.logger.Error("start search error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}

	if req.Track && h.tracking != nil {
		if err := h.tracking.Track(c.Request().Context(), info.Query); err != nil {
			h.logger.Warn("track after search failed",
				xlogger.String("query", info.Query),
				xlogger.Error(err))
		}
	}

	return xhttp.CreatedResponse(c, info)
}

func (h *CatalogEchoHandler) ListProducts(c echo.Context) error {
	products := h.catalog.Products()
	return xhttp.ListResponse(c, products, int64(len(products)))
}

func (h *CatalogEchoHandler) DeleteProduct(c echo.Context) error {
	if err := h.catalog.Delete(c.Param("id")); err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("product not found").WithError(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *CatalogEchoHandler) Analysis(c echo.Context) error {
	p, ok := h.catalog.Product(c.Param("id"))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("product not found"))
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"id":       p.ID,
		"analysis": h.analyzer.Analyze(&p),
	})
}

func (h *CatalogEchoHandler) ListGroups(c echo.Context) error {
	groups := h.catalog.Groups()
	return xhttp.ListResponse(c, groups, int64(len(groups)))
}

func (h *CatalogEchoHandler) ToggleCollapse(c echo.Context) error {
	key := c.Param("key")
	if !h.catalog.HasGroup(key) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("group not found").WithError(models.ErrGroupNotFound))
	}
	collapsed := h.catalog.ToggleCollapsed(key)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"key":       key,
		"collapsed": collapsed,
	})
}

// RefreshGroup enqueues a forced re-scrape of one existing group. With the
// queue disabled the session starts inline instead.
func (h *CatalogEchoHandler) RefreshGroup(c echo.Context) error {
	key := c.Param("key")
	if !h.catalog.HasGroup(key) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("group not found").WithError(models.ErrGroupNotFound))
	}

	if h.publisher != nil {
		err := h.publisher.PublishMessage(c.Request().Context(), usecase.RefreshJobType, usecase.RefreshPayload{Query: key})
		if err != nil {
			h.logger.Error("enqueue refresh error", xlogger.String("key", key), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"key": key, "status": "queued"})
	}

	info, err := h.sessions.StartSession(c.Request().Context(), key, true)
	if err != nil {
		if errors.Is(err, models.ErrThrottled) {
			return xhttp.DataResponse(c, http.StatusTooManyRequests, "too many refreshes, slow down")
		}
		h.logger.Error("refresh group error", xlogger.String("key", key), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, info)
}

func (h *CatalogEchoHandler) DeleteGroup(c echo.Context) error {
	key := c.Param("key")
	removed := h.catalog.DeleteGroup(key)
	if removed == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("group not found").WithError(models.ErrGroupNotFound))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"key":     key,
		"removed": removed,
	})
}

func (h *CatalogEchoHandler) SessionStatus(c echo.Context) error {
	query := util.NormalizeQuery(c.Param("query"))
	info, err := h.sessions.Session(query)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("session not found"))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, info)
}

func (h *CatalogEchoHandler) CancelSession(c echo.Context) error {
	query := util.NormalizeQuery(c.Param("query"))
	if err := h.sessions.CancelSession(query); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("session not found"))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *CatalogEchoHandler) StoreOptions(c echo.Context) error {
	if h.options == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("store options are not configured"))
	}

	req := &models.OptionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	opts, err := h.options.FetchStoreOptions(c.Request().Context(), req.Query, models.Store(req.Store), req.Limit)
	if err != nil {
		h.logger.Error("store options error", xlogger.String("query", req.Query), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, opts, int64(len(opts)))
}

// ArchivedHistory reads archived observations back from the sink. Only
// available when the sink supports queries.
func (h *CatalogEchoHandler) ArchivedHistory(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("the configured sink does not support history queries"))
	}

	query := util.NormalizeQuery(c.QueryParam("query"))
	if query == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("query is required"))
	}
	store := models.Store(c.QueryParam("store"))
	limit := util.ParseIntDefault(c.QueryParam("limit"), 100)
	now := time.Now()
	from := util.ParseTimeDefault(c.QueryParam("from"), now.AddDate(0, -1, 0))
	to := util.ParseTimeDefault(c.QueryParam("to"), now)

	entries, err := h.history.History(c.Request().Context(), query, store, from, to, limit)
	if err != nil {
		h.logger.Error("history query error", xlogger.String("query", query), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *CatalogEchoHandler) ListTracking(c echo.Context) error {
	if h.tracking == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("tracking is not enabled"))
	}
	items, err := h.tracking.List(c.Request().Context())
	if err != nil {
		h.logger.Error("list tracking error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, items, int64(len(items)))
}

func (h *CatalogEchoHandler) Track(c echo.Context) error {
	if h.tracking == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("tracking is not enabled"))
	}
	req := &models.TrackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.tracking.Track(c.Request().Context(), util.NormalizeQuery(req.Query)); err != nil {
		h.logger.Error("track error", xlogger.String("query", req.Query), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, map[string]string{"query": util.NormalizeQuery(req.Query)})
}

func (h *CatalogEchoHandler) Untrack(c echo.Context) error {
	if h.tracking == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("tracking is not enabled"))
	}
	key := c.Param("key")
	if err := h.tracking.Untrack(c.Request().Context(), key); err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("tracked item not found"))
		}
		h.logger.Error("untrack error", xlogger.String("key", key), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

// DispatchRefresh triggers a bulk re-scrape on the scraper backend. An
// expired token surfaces as 401 so the operator knows to rotate it.
func (h *CatalogEchoHandler) DispatchRefresh(c echo.Context) error {
	if h.dispatcher == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("refresh dispatch is not configured"))
	}
	if err := h.dispatcher.Dispatch(c.Request().Context()); err != nil {
		if errors.Is(err, models.ErrAuthRequired) {
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("dispatch token rejected").WithError(err))
		}
		h.logger.Error("dispatch refresh error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"status": "dispatched"})
}
