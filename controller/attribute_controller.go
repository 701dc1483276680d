// api/controller/attribute_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
	"github.com/dev-sgill/arbiter/api/util"
)

// AttributeController exposes the live attribute bus. Values published here
// feed dynamic policy conditions; any open decision subscription whose
// policies reference the attribute re-evaluates on publish.
type AttributeController struct {
	bus *util.AttributeBus
}

func NewAttributeController(bus *util.AttributeBus) *AttributeController {
	return &AttributeController{
		bus: bus,
	}
}

// RegisterRoutes registers the API routes
func (ac *AttributeController) RegisterRoutes(r *gin.RouterGroup) {
	attributes := r.Group("/attributes")
	{
		attributes.PUT("/:name", ac.PublishAttribute)
		attributes.GET("/:name", ac.GetAttribute)
	}
}

type attributeRequest struct {
	Value interface{} `json:"value" binding:"required"`
}

// PublishAttribute endpoint
func (ac *AttributeController) PublishAttribute(c *gin.Context) {
	name := c.Param("name")

	var req attributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid attribute value", err)
		return
	}

	ac.bus.Publish(name, pdpmodel.FromNative(req.Value))
	c.Status(http.StatusNoContent)
}

// GetAttribute endpoint
func (ac *AttributeController) GetAttribute(c *gin.Context) {
	name := c.Param("name")

	value, ok := ac.bus.Current(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "attribute not published"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "value": value.String()})
}
