package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ollama/fsmindex/api"
	"github.com/ollama/fsmindex/envconfig"
	"github.com/ollama/fsmindex/fsm"
	"github.com/ollama/fsmindex/grammar"
	"github.com/ollama/fsmindex/tokenizer"
	"github.com/ollama/fsmindex/version"
)

type Server struct {
	addr net.Addr

	// whitespace is the default pattern between JSON tokens when a schema
	// request does not carry its own.
	whitespace *string
	workers    int
	maxBody    int64
}

func (s *Server) GenerateRoutes() (http.Handler, error) {
	config := cors.DefaultConfig()
	config.AllowWildcard = true
	config.AllowBrowserExtensions = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	config.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(config),
		s.limitBody,
	)

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "fsmindex is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "fsmindex is running") })
	r.HEAD("/api/version", s.VersionHandler)
	r.GET("/api/version", s.VersionHandler)

	r.POST("/api/schema", s.SchemaHandler)
	r.POST("/api/index", s.IndexHandler)
	r.POST("/api/walk", s.WalkHandler)

	return r, nil
}

func (s *Server) limitBody(c *gin.Context) {
	if s.maxBody > 0 && c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	}
	c.Next()
}

// bindJSON decodes the request body into v, writing the error response
// itself when it cannot.
func bindJSON(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
	case errors.As(err, &maxErr):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)})
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
	return false
}

func (s *Server) VersionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version})
}

func (s *Server) SchemaHandler(c *gin.Context) {
	var req api.SchemaRequest
	if !bindJSON(c, &req) {
		return
	}

	schema := []byte(req.Schema)
	// a schema may also arrive as a JSON string holding the document
	var text string
	if err := json.Unmarshal(req.Schema, &text); err == nil {
		schema = []byte(text)
	}
	if len(schema) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "schema is required"})
		return
	}

	var opts []grammar.Option
	if req.Whitespace != nil {
		opts = append(opts, grammar.WithWhitespace(*req.Whitespace))
	} else if s.whitespace != nil {
		opts = append(opts, grammar.WithWhitespace(*s.whitespace))
	}

	pattern, err := grammar.BuildRegexFromSchema(schema, opts...)
	if err != nil {
		var cerr *grammar.CompileError
		if errors.As(err, &cerr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, api.SchemaResponse{Pattern: pattern})
}

// automaton validates the descriptor of a request, writing the error
// response itself when it is unusable.
func automaton(c *gin.Context, info *fsm.Info) bool {
	if info == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "fsm is required"})
		return false
	}
	if err := info.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func frozenSet(tokens []string) map[string]struct{} {
	frozen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		frozen[t] = struct{}{}
	}
	return frozen
}

func (s *Server) IndexHandler(c *gin.Context) {
	var req api.IndexRequest
	if !bindJSON(c, &req) || !automaton(c, req.FSM) {
		return
	}

	start := time.Now()
	ix, err := fsm.BuildIndexParallel(c.Request.Context(), req.FSM, req.Vocabulary, frozenSet(req.Frozen), s.workers)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("index request canceled")
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stats := ix.Stats()
	slog.Debug("index built", "states", stats.States, "transitions", stats.Transitions, "tokens", req.Vocabulary.Len(), "duration", time.Since(start))
	c.JSON(http.StatusOK, api.IndexResponse{Index: ix, Stats: stats})
}

func (s *Server) WalkHandler(c *gin.Context) {
	var req api.WalkRequest
	if !bindJSON(c, &req) || !automaton(c, req.FSM) {
		return
	}

	c.JSON(http.StatusOK, Walk(&req))
}

// Walk encodes the request text and walks it through the request automaton.
func Walk(req *api.WalkRequest) api.WalkResponse {
	start := req.FSM.Initial
	if req.Start != nil {
		start = *req.Start
	}

	keys := tokenizer.TransitionKeys(req.FSM, req.Text, frozenSet(req.Frozen))
	states := fsm.Walk(req.FSM.Transitions, keys, start, req.FullMatch)

	resp := api.WalkResponse{
		Keys:    keys,
		States:  states,
		Matched: len(states) == len(keys),
	}
	if resp.Keys == nil {
		resp.Keys = []fsm.Key{}
	}
	if resp.States == nil {
		resp.States = []fsm.State{}
	}

	end := start
	if len(states) > 0 {
		end = states[len(states)-1]
	}
	resp.Final = resp.Matched && req.FSM.IsFinal(end)
	return resp
}

func Serve(ln net.Listener) error {
	slog.Info("server config", "env", envconfig.Values())

	if envconfig.Debug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		addr:    ln.Addr(),
		workers: envconfig.NumParallel(),
		maxBody: int64(envconfig.MaxBodySize()),
	}
	if ws, ok := envconfig.Whitespace(); ok {
		s.whitespace = &ws
	}

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{
		Handler: h,
	}

	ctx, done := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		srvr.Close()
		done()
	}()

	err = srvr.Serve(ln)
	// If server is closed from the signal handler, wait for the ctx to be done
	// otherwise error out quickly
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-ctx.Done()
	return nil
}
