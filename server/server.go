// Package server exposes the hub's readings over HTTP and websocket.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Uranury/snmphub/sensors"
)

// ReadingSource provides the latest sensor readings.
type ReadingSource interface {
	Readings() []sensors.Reading
	Reading(entityID string) (sensors.Reading, bool)
}

type Server struct {
	source      ReadingSource
	broadcaster *Broadcaster
}

func New(source ReadingSource, broadcaster *Broadcaster) *Server {
	return &Server{source: source, broadcaster: broadcaster}
}

// Router builds the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/sensors", s.handleGetSensors)
		api.GET("/sensors/:entity_id", s.handleGetSensor)
	}

	r.GET("/ws", func(c *gin.Context) {
		s.broadcaster.Serve(c.Writer, c.Request)
	})
	return r
}

func (s *Server) handleGetSensors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sensors": s.source.Readings()})
}

func (s *Server) handleGetSensor(c *gin.Context) {
	id := c.Param("entity_id")
	r, ok := s.source.Reading(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found: " + id})
		return
	}
	c.JSON(http.StatusOK, r)
}
