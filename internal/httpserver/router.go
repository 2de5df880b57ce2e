package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"outreach/internal/util"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(eventHandler *EventHandler, campaignHandler *CampaignHandler, mqConnected func() bool, jwtSecret string) *Router {
	r := gin.Default()

	// Public
	r.GET("/healthz", func(c *gin.Context) {
		if !mqConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mq": "disconnected"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mq": "connected"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks
	hooks := r.Group("/webhooks")
	hooks.Use(AuthMiddleware(jwtSecret))
	{
		hooks.POST("/events", eventHandler.IngestEvent)
	}

	// Campaign management
	campaigns := r.Group("/campaigns")
	campaigns.Use(AuthMiddleware(jwtSecret))
	{
		campaigns.POST("", campaignHandler.StartCampaign)
		campaigns.GET("/:id", campaignHandler.GetCampaign)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}

// AuthMiddleware validates the webhook bearer token and stores the tenant id
// in the request context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		tenantID, err := util.ParseWebhookToken(token, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("tenant_id", tenantID)

		c.Next()
	}
}
