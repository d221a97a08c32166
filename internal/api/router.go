package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Chative-order-agent/server/internal/agent/graph"
)

type RouterConfig struct {
	Runner       graph.Runner
	APIKeys      []string
	AllowOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "x-api-key"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	h := NewHandler(cfg.Runner)
	r.GET("/health", h.Health)

	orders := r.Group("")
	if len(cfg.APIKeys) > 0 {
		orders.Use(APIKeyMiddleware(cfg.APIKeys))
	}
	{
		orders.POST("/start", h.Start)
		orders.POST("/chat", h.Chat)
		orders.GET("/order/:id", h.GetOrder)
	}
	return r
}
