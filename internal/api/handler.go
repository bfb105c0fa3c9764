package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fanout/internal/ingestion"
	"fanout/internal/logger"
	"fanout/internal/sink"
	"fanout/pkg/errors"
)

// InvocationSource labels batches that arrive through the HTTP API.
const InvocationSource = "api"

type Handler struct {
	invocations *ingestion.InvocationHandler
	records     sink.Reader
	logger      logger.Logger
}

// NewHandler builds the API handler. records may be nil when the sink
// cannot read records back.
func NewHandler(invocations *ingestion.InvocationHandler, records sink.Reader, log logger.Logger) *Handler {
	return &Handler{invocations: invocations, records: records, logger: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/invocations", h.Invoke)
		if h.records != nil {
			v1.GET("/records/:table/:key", h.GetRecord)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.IsValidation(err):
		h.logger.WarnwCtx(ctx, "Rejected invalid request", "error", err, "path", c.Request.URL.Path)
	case errors.IsConfiguration(err):
		h.logger.ErrorwCtx(ctx, "Request failed, service is misconfigured", "error", err, "path", c.Request.URL.Path)
	default:
		h.logger.ErrorwCtx(ctx, "Request error", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// Invoke godoc
// @Summary      Process a batch of queue records
// @Description  Runs every record through the pipeline and lists the records the caller must retry
// @Tags         invocations
// @Accept       json
// @Produce      json
// @Param        event  body      ingestion.SQSEvent  true  "SQS event"
// @Success      200    {object}  ingestion.BatchResponse
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /invocations [post]
func (h *Handler) Invoke(c *gin.Context) {
	var event ingestion.SQSEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err).WithDetail("reason", err.Error()))
		return
	}
	if len(event.Records) == 0 {
		h.handleError(c, errors.ErrValidation.WithMessage("event has no records"))
		return
	}

	resp, err := h.invocations.Handle(c.Request.Context(), InvocationSource, event)
	if err != nil {
		if stderrors.Is(err, ingestion.ErrConfiguration) {
			err = errors.ErrConfiguration.WithCause(err)
		}
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetRecord godoc
// @Summary      Read a stored record
// @Tags         records
// @Produce      json
// @Param        table  path      string  true  "Target table"
// @Param        key    path      string  true  "Record key"
// @Success      200    {object}  map[string]interface{}
// @Failure      404    {object}  errors.ErrorResponse
// @Failure      503    {object}  errors.ErrorResponse
// @Router       /records/{table}/{key} [get]
func (h *Handler) GetRecord(c *gin.Context) {
	table, key := c.Param("table"), c.Param("key")

	item, ok, err := h.records.Get(c.Request.Context(), table, key)
	if err != nil {
		if stderrors.Is(err, sink.ErrTargetNotFound) {
			err = errors.ErrNotFound.WithCause(err).WithDetail("table", table)
		} else {
			err = errors.ErrServiceUnavailable.WithCause(err)
		}
		h.handleError(c, err)
		return
	}
	if !ok {
		h.handleError(c, errors.ErrNotFound.WithDetail("table", table).WithDetail("key", key))
		return
	}

	c.JSON(http.StatusOK, item)
}
