package signal

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// NewRouter mounts relay at /ws/:room and a health check at /healthz. A
// non-nil gatherer is served at /metrics.
func NewRouter(relay *Relay, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws/:room", func(c *gin.Context) {
		relay.ServeRoom(c.Writer, c.Request, c.Param("room"))
	})
	r.GET("/rooms/:room", func(c *gin.Context) {
		room := c.Param("room")
		c.JSON(http.StatusOK, gin.H{"room": room, "peers": relay.RoomSize(room)})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	log.Info().Str("module", "signal").Bool("metrics", gatherer != nil).Msg("router setup")
	return r
}
