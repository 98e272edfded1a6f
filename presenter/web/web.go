// Package web is the browser facing front end. It serves a JSON API over the
// client and a long poll feed of server pushes.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/presenter"
	"github.com/luma/huddle/protocol"
)

const (
	DefaultPort        = 7362
	DefaultPollTimeout = 25 * time.Second
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen for http requests on
	Port int

	// Debug puts gin in debug mode
	Debug bool

	// PollTimeout bounds how long /events waits for a push
	PollTimeout time.Duration

	// History is the number of pushes kept for pollers
	History int

	Log *zap.Logger
}

// Web serves the client over HTTP.
type Web struct {
	client presenter.Client
	feed   *presenter.Feed

	router      *gin.Engine
	addr        string
	pollTimeout time.Duration

	unsubscribe func()

	log *zap.Logger
}

func New(c presenter.Client, options Options) *Web {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if options.Port == 0 {
		options.Port = DefaultPort
	}

	if options.PollTimeout <= 0 {
		options.PollTimeout = DefaultPollTimeout
	}

	w := &Web{
		client:      c,
		feed:        presenter.NewFeed(options.History),
		addr:        net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		pollTimeout: options.PollTimeout,
		log:         options.Log,
	}

	w.unsubscribe = presenter.Subscribe(c.Events(), w.feed.Publish)
	w.router = setupRouter(options.Debug, options.Log)
	w.routes()

	return w
}

// Handler returns the HTTP handler serving the API.
func (w *Web) Handler() http.Handler {
	return w.router
}

// Run serves HTTP until ctx ends, then shuts the server down and disconnects
// the client.
func (w *Web) Run(ctx context.Context) error {
	defer w.unsubscribe()

	s := &http.Server{
		Addr:    w.addr,
		Handler: w.router,
	}

	serveErr := make(chan error, 1)

	// Serve in a goroutine so that it won't block the graceful shutdown
	// handling below
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	w.log.Info("Listening", zap.String("addr", w.addr))

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	w.log.Info("Shutting down")

	// Give in flight requests, long polls included, 5 seconds to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.SetKeepAlivesEnabled(false)

	if err := s.Shutdown(shutdownCtx); err != nil {
		w.log.Error("Http server forced to shutdown", zap.Error(err))
	}

	if w.client.Connected() {
		if err := w.client.Disconnect(shutdownCtx); err != nil {
			w.log.Warn("Failed to disconnect", zap.Error(err))
		}
	}

	return nil
}

type connectRequest struct {
	Addr string `json:"addr" binding:"required"`
}

type joinRequest struct {
	Username string `json:"username" binding:"required"`
}

type postRequest struct {
	Subject string `json:"subject" binding:"required"`
	Content string `json:"content"`
}

func (w *Web) routes() {
	r := w.router

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"connected": w.client.Connected(),
			"joined":    w.client.Joined(),
			"username":  w.client.Username(),
			"members":   w.client.MemberGroups(),
		})
	})

	r.POST("/connect", func(c *gin.Context) {
		var req connectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		if err := w.client.Connect(c.Request.Context(), req.Addr); err != nil {
			w.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"connected": true})
	})

	r.POST("/join", func(c *gin.Context) {
		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		ok, err := w.client.Join(c.Request.Context(), req.Username)
		if err != nil {
			w.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"joined": ok, "username": req.Username})
	})

	r.POST("/logout", func(c *gin.Context) {
		if err := w.client.LogOut(c.Request.Context()); err != nil {
			w.fail(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	})

	r.POST("/disconnect", func(c *gin.Context) {
		if err := w.client.Disconnect(c.Request.Context()); err != nil {
			w.fail(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	})

	r.GET("/groups", func(c *gin.Context) {
		groups, err := w.client.Groups(c.Request.Context())
		if err != nil {
			w.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, groups)
	})

	groups := r.Group("/groups/:group")

	groups.GET("/users", w.withGroup(func(c *gin.Context, groupID int) {
		g, err := w.client.GroupUsers(c.Request.Context(), groupID)
		if err != nil {
			w.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, g)
	}))

	groups.POST("/join", w.withGroup(func(c *gin.Context, groupID int) {
		if err := w.client.JoinGroup(c.Request.Context(), groupID); err != nil {
			w.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"members": w.client.MemberGroups()})
	}))

	groups.POST("/leave", w.withGroup(func(c *gin.Context, groupID int) {
		if err := w.client.LeaveGroup(c.Request.Context(), groupID); err != nil {
			w.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"members": w.client.MemberGroups()})
	}))

	groups.POST("/messages", w.withGroup(func(c *gin.Context, groupID int) {
		var req postRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		m, err := w.client.PostMessage(c.Request.Context(), groupID, req.Subject, req.Content)
		if err != nil {
			w.fail(c, err)
			return
		}

		c.JSON(http.StatusCreated, m)
	}))

	groups.GET("/messages/:id", w.withGroup(func(c *gin.Context, groupID int) {
		id, err := presenter.ParseMessageID(c.Param("id"))
		if err != nil {
			badRequest(c, err)
			return
		}

		m, err := w.client.RetrieveMessage(c.Request.Context(), groupID, id)
		if err != nil {
			w.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, m)
	}))

	r.GET("/events", w.events)

	r.GET("/state", func(c *gin.Context) {
		data, err := w.client.Snapshot()
		if err != nil {
			w.fail(c, err)
			return
		}

		path := c.Query("path")
		if path == "" {
			c.Data(http.StatusOK, "application/json", data)
			return
		}

		result := gjson.GetBytes(data, path)
		if !result.Exists() {
			c.JSON(http.StatusNotFound, gin.H{"error": "Nothing at " + path})
			return
		}

		c.Data(http.StatusOK, "application/json", []byte(result.Raw))
	})
}

// events answers with the first push after ?after=, waiting for one if
// needed. It answers 204 when nothing arrives before the poll timeout.
func (w *Web) events(c *gin.Context) {
	after := w.feed.Seq()

	if raw := c.Query("after"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, err)
			return
		}

		after = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), w.pollTimeout)
	defer cancel()

	push, err := w.feed.Next(ctx, after)
	if err != nil {
		c.Header("X-Huddle-Seq", strconv.FormatUint(after, 10))
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, push)
}

func (w *Web) withGroup(fn func(c *gin.Context, groupID int)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := presenter.ResolveGroup(c.Request.Context(), w.client, c.Param("group"))
		if err != nil {
			w.fail(c, err)
			return
		}

		fn(c, id)
	}
}

func (w *Web) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		w.log.Warn("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrInvalidField),
		errors.Is(err, presenter.ErrBadMessageID):
		return http.StatusBadRequest

	case errors.Is(err, client.ErrInvalidGroup),
		errors.Is(err, presenter.ErrUnknownGroup),
		errors.Is(err, client.ErrMessageUnavailable):
		return http.StatusNotFound

	case errors.Is(err, client.ErrNotConnected),
		errors.Is(err, client.ErrAlreadyConnected),
		errors.Is(err, client.ErrNotJoined),
		errors.Is(err, client.ErrAlreadyJoined),
		errors.Is(err, client.ErrNotMember),
		errors.Is(err, client.ErrAlreadyMember):
		return http.StatusConflict

	case errors.Is(err, client.ErrConnectionLost),
		errors.Is(err, client.ErrDisconnected):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

func setupRouter(debug bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, with RFC3339
	// UTC timestamps
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panics to the error log, with stacks
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

var _ presenter.Presenter = (*Web)(nil)
