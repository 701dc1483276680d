// api/controller/decision_controller.go
package controller

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	"github.com/dev-sgill/arbiter/api/model"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
	"github.com/dev-sgill/arbiter/api/service"
	"github.com/dev-sgill/arbiter/api/util"
	helper_util "github.com/dev-sgill/arbiter/api/util/helper"
)

type DecisionController struct {
	decisionService service.IDecisionService
}

func NewDecisionController(decisionService service.IDecisionService) *DecisionController {
	return &DecisionController{
		decisionService: decisionService,
	}
}

// RegisterRoutes registers the API routes
func (dc *DecisionController) RegisterRoutes(r *gin.RouterGroup) {
	decisions := r.Group("/decisions")
	{
		decisions.POST("", dc.Decide)
		decisions.POST("/coverage", dc.Coverage)
		decisions.POST("/subscribe", dc.Subscribe)
		decisions.GET("/logs", dc.QueryLogs)
	}
	r.PUT("/configuration", dc.UpdateConfiguration)
	r.POST("/configuration/reload", dc.ReloadConfiguration)
}

// Decide endpoint answers an authorization subscription once
func (dc *DecisionController) Decide(c *gin.Context) {
	var sub pdpmodel.AuthorizationSubscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid authorization subscription", arbiter_errors.ErrInvalidSubscription)
		return
	}
	if sub.Timestamp.IsZero() {
		sub.Timestamp = time.Now()
	}

	vote, err := dc.decisionService.Decide(c, sub)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrConfigurationNotFound):
			util.RespondWithError(c, http.StatusServiceUnavailable, "No active configuration", err)
		case errors.Is(err, arbiter_errors.ErrNoDecision), errors.Is(err, arbiter_errors.ErrDecisionTimeout):
			util.RespondWithError(c, http.StatusGatewayTimeout, "Decision not available", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to render decision", err)
		}
		return
	}

	c.JSON(http.StatusOK, vote)
}

// Coverage endpoint evaluates every policy document for the subscription
func (dc *DecisionController) Coverage(c *gin.Context) {
	var sub pdpmodel.AuthorizationSubscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid authorization subscription", arbiter_errors.ErrInvalidSubscription)
		return
	}
	if sub.Timestamp.IsZero() {
		sub.Timestamp = time.Now()
	}

	coverage, err := dc.decisionService.Coverage(c, sub)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrConfigurationNotFound):
			util.RespondWithError(c, http.StatusServiceUnavailable, "No active configuration", err)
		case errors.Is(err, arbiter_errors.ErrCoverageNotAvailable):
			util.RespondWithError(c, http.StatusNotImplemented, "Coverage evaluation is disabled", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to evaluate coverage", err)
		}
		return
	}

	c.JSON(http.StatusOK, coverage)
}

// Subscribe endpoint streams decisions over server-sent events. The stream
// stays open until the client disconnects; stream-backed configurations
// re-emit whenever a contributing attribute changes.
func (dc *DecisionController) Subscribe(c *gin.Context) {
	var sub pdpmodel.AuthorizationSubscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid authorization subscription", arbiter_errors.ErrInvalidSubscription)
		return
	}
	if sub.Timestamp.IsZero() {
		sub.Timestamp = time.Now()
	}

	votes, id, err := dc.decisionService.Subscribe(c.Request.Context(), sub)
	if err != nil {
		if errors.Is(err, arbiter_errors.ErrConfigurationNotFound) {
			util.RespondWithError(c, http.StatusServiceUnavailable, "No active configuration", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to open subscription", err)
		}
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Subscription-Id", id)

	c.Stream(func(w io.Writer) bool {
		select {
		case vote, ok := <-votes:
			if !ok {
				return false
			}
			c.SSEvent("decision", vote)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// QueryLogs endpoint searches the decision audit trail
func (dc *DecisionController) QueryLogs(c *gin.Context) {
	from, err := helper_util.ParseTime(c.DefaultQuery("from", time.Now().Add(-24*time.Hour).Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid 'from' timestamp", err)
		return
	}
	to, err := helper_util.ParseTime(c.DefaultQuery("to", time.Now().Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid 'to' timestamp", err)
		return
	}

	logs, err := dc.decisionService.QueryDecisionLogs(c, from, to, c.Query("subject"), c.Query("decision"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query decision logs", err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

// UpdateConfiguration endpoint replaces the stored configuration and
// recompiles the decision point against it
func (dc *DecisionController) UpdateConfiguration(c *gin.Context) {
	var config model.PDPConfiguration
	if err := c.ShouldBindJSON(&config); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid configuration payload", arbiter_errors.ErrInvalidConfiguration)
		return
	}

	if err := dc.decisionService.UpdateConfiguration(c, config); err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrInvalidConfiguration), errors.Is(err, arbiter_errors.ErrUnknownAlgorithm):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid configuration", err)
		case errors.Is(err, arbiter_errors.ErrConfigurationLocked):
			util.RespondWithError(c, http.StatusConflict, "Configuration update already in progress", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to update configuration", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// ReloadConfiguration endpoint recompiles the active configuration
func (dc *DecisionController) ReloadConfiguration(c *gin.Context) {
	if err := dc.decisionService.ReloadConfiguration(c); err != nil {
		if errors.Is(err, arbiter_errors.ErrConfigurationNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Configuration not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to reload configuration", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}
