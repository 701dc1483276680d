// api/router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-sgill/arbiter/api/controller"
	"github.com/dev-sgill/arbiter/api/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	api := router.Group("/api/v1")

	// Decision and attribute endpoints serve enforcement points directly
	controllers.Decision.RegisterRoutes(api)
	controllers.Attribute.RegisterRoutes(api)

	// Policy management requires admin group membership
	admin := api.Group("", middleware.GroupAuthMiddleware([]string{"arbiter-admin"}))
	controllers.Policy.RegisterRoutes(admin)

	return router
}
