package gateway

import (
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockwatch/internal/indicator"
	"stockwatch/internal/logger"
	"stockwatch/internal/model"
	"stockwatch/internal/quote"
	"stockwatch/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Server wires the REST and WS surface to the session registry.
type Server struct {
	registry *session.Registry
	quotes   *quote.Service
	hub      *Hub
}

// NewServer builds the HTTP surface.
func NewServer(registry *session.Registry, quotes *quote.Service, hub *Hub) *Server {
	return &Server{registry: registry, quotes: quotes, hub: hub}
}

// Routes builds the gin engine with every endpoint registered.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestTrace())

	api := r.Group("/api")
	{
		api.POST("/sessions", s.createSession)
		api.DELETE("/sessions/:id", s.deleteSession)
		api.GET("/sessions/:id/chart", s.chart)
		api.PUT("/sessions/:id/interval", s.setInterval)
		api.POST("/sessions/:id/overlays", s.addOverlay)
		api.DELETE("/sessions/:id/overlays/:overlayID", s.removeOverlay)
		api.POST("/sessions/:id/zoom", s.zoom)
		api.PUT("/sessions/:id/rsi", s.setRSI)
		api.GET("/quotes", s.getQuotes)
	}

	r.GET("/ws/sessions/:id", s.serveWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// requestTrace stamps every request context with a trace ID so downstream
// calls (providers, quote lookups) log under the same ID.
func requestTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		tid := logger.GenerateTraceID("req", time.Now())
		ctx := logger.WithTraceID(c.Request.Context(), tid)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		attrs := append([]any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
		}, logger.LogWithTrace(ctx)...)
		slog.Debug("http request", attrs...)
	}
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "symbol is required"})
		return
	}
	iv := model.IntervalDaily
	if req.Interval != "" {
		parsed, err := model.ParseInterval(req.Interval)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		iv = parsed
	}

	sess := s.registry.Open(symbol, iv)
	c.JSON(http.StatusCreated, sessionResponse{
		ID:       sess.ID(),
		Symbol:   sess.Symbol(),
		Interval: string(iv),
	})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if !s.registry.Close(id) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	s.hub.DropSession(id)
	c.Status(http.StatusNoContent)
}

func (s *Server) chart(c *gin.Context) {
	sess, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) setInterval(c *gin.Context) {
	sess, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	var req setIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	iv, err := model.ParseInterval(req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := sess.SetInterval(iv); err != nil {
		c.JSON(http.StatusGone, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interval": iv})
}

func (s *Server) addOverlay(c *gin.Context) {
	sess, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	var req addOverlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := indicator.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	id, err := sess.AddOverlay(kind, req.Period, req.Color)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrClosed) {
			status = http.StatusGone
		}
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "label": kind.Label(req.Period)})
}

func (s *Server) removeOverlay(c *gin.Context) {
	sess, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	overlayID, err := strconv.Atoi(c.Param("overlayID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "overlay id must be an integer"})
		return
	}
	if err := sess.RemoveOverlay(overlayID); err != nil {
		c.JSON(http.StatusGone, errorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) zoom(c *gin.Context) {
	sess, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	var req zoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var err error
	switch req.Direction {
	case "in":
		err = sess.ZoomIn()
	case "out":
		err = sess.ZoomOut()
	case "reset":
		err = sess.ResetZoom()
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Error: "direction must be in, out or reset"})
		return
	}
	if err != nil {
		c.JSON(http.StatusGone, errorResponse{Error: err.Error()})
		return
	}

	resp := gin.H{"viewport": nil}
	if tr, ok := sess.ViewportRange(); ok {
		resp["viewport"] = tr
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) setRSI(c *gin.Context) {
	sess, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	var req rsiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := sess.ToggleRSI(req.Enabled, req.Period); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrClosed) {
			status = http.StatusGone
		}
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": req.Enabled})
}

func (s *Server) getQuotes(c *gin.Context) {
	raw := c.Query("symbols")
	if raw == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "symbols query parameter is required"})
		return
	}
	symbols := strings.Split(raw, ",")
	prices := s.quotes.Current(c.Request.Context(), symbols)
	c.JSON(http.StatusOK, prices)
}

func (s *Server) serveWS(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.registry.Get(id); !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	s.hub.Register(id, conn)
}
