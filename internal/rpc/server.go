package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// HandlerFunc serves one command.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (Reply, error)

// Command adapts a typed handler: the payload is decoded into T and
// validated before fn runs.
func Command[T any](v *validatorv10.Validate, fn func(ctx context.Context, req T) (Reply, error)) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (Reply, error) {
		var req T
		if err := validation.DecodeAndValidate(payload, &req, v); err != nil {
			return Reply{}, err
		}
		return fn(ctx, req)
	}
}

// Server dispatches POST /rpc/:cmd to registered handlers.
type Server struct {
	service  string
	engine   *gin.Engine
	logger   *slog.Logger
	handlers map[string]HandlerFunc
}

func NewServer(service string, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		service:  service,
		engine:   gin.New(),
		logger:   logger,
		handlers: map[string]HandlerFunc{},
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	})
	s.engine.POST("/rpc/:cmd", s.dispatch)
	return s
}

// Handle registers h under cmd. Registering the same command twice replaces
// the earlier handler.
func (s *Server) Handle(cmd string, h HandlerFunc) {
	s.handlers[cmd] = h
}

// Engine exposes the router so services can mount plain HTTP routes next to
// the command endpoint.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) dispatch(c *gin.Context) {
	cmd := c.Param("cmd")
	h, ok := s.handlers[cmd]
	if !ok {
		c.JSON(http.StatusNotFound, Envelope{Success: false, Message: "unknown command " + cmd})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: "invalid request body"})
		return
	}

	reply, err := h(c.Request.Context(), payload)
	if err != nil {
		WriteError(c, s.logger.With("cmd", cmd), err)
		return
	}
	WriteReply(c, http.StatusOK, reply)
}

// WriteReply encodes reply as an envelope.
func WriteReply(c *gin.Context, status int, reply Reply) {
	env := Envelope{Success: reply.Success, Message: reply.Message}
	if reply.Data != nil {
		raw, err := json.Marshal(reply.Data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, Envelope{Success: false, Message: "internal server error"})
			return
		}
		env.Data = raw
	}
	c.JSON(status, env)
}

// WriteError logs err and answers with its status and public message.
// Internal faults are logged at error level with their cause.
func WriteError(c *gin.Context, logger *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Info("request rejected", "status", status, "error", err)
	}
	c.JSON(status, Envelope{Success: false, Message: apperr.PublicMessage(err)})
}
