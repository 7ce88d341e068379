package bridge

import (
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router. The gin mode is left
// to the caller.
func SetupRouter(api *API, timeout time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Local snapshot, no daemon round trip
	r.GET("/now-playing", api.NowPlaying)
	r.GET("/events", api.Events)

	// Daemon commands
	cmd := r.Group("/", requestTimeout(timeout))
	{
		cmd.GET("/status", api.Status)
		cmd.GET("/stations", api.Stations)
		cmd.POST("/stations/select", api.SelectStation)
		cmd.POST("/skip", api.Skip)
		cmd.POST("/pause", api.Pause)
		cmd.POST("/play", api.Play)
		cmd.POST("/stop", api.Stop)
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
