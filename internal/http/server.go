package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"moff.io/wemove/internal/action"
	"moff.io/wemove/internal/config"
	"moff.io/wemove/internal/host"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
	"moff.io/wemove/pkg/log/meta"
	"moff.io/wemove/pkg/log/middleware"
)

const (
	shutdownTimeout      = 10 * time.Second
	defaultAddress       = ":8080"
	defaultActionTimeout = 5 * time.Minute
	readTimeout          = 10 * time.Second
)

// Server drives the in-memory host shell over HTTP. Triggers run in the background,
// bounded by the action timeout; callers poll GET /state for the outcome or pass
// ?wait=true to block until the trigger finishes.
type Server struct {
	address       string
	actionTimeout time.Duration
	shell         *host.Shell
	ctrl          *action.Controller
	router        *gin.Engine
}

func NewServer(shell *host.Shell, ctrl *action.Controller) *Server {
	s := &Server{
		address:       defaultAddress,
		actionTimeout: defaultActionTimeout,
		shell:         shell,
		ctrl:          ctrl,
	}
	router := gin.New()
	router.Use(middleware.RecoveredHTTPLog())
	router.GET("/state", middleware.TimeoutHTTP(readTimeout), s.getState)
	router.POST("/app/open", s.openApp)
	router.POST("/main-button", s.clickMainButton)
	router.POST("/actions/log", s.logName)
	router.POST("/actions/call", s.simpleAction("call", ctrl.Increment))
	router.POST("/actions/check-name", s.simpleAction("check-name", ctrl.CheckName))
	router.POST("/actions/check-calls", s.simpleAction("check-calls", ctrl.CheckCalls))
	router.GET("/walletconnect/qrcode", middleware.TimeoutHTTP(readTimeout), s.getQRCode)
	s.router = router
	return s
}

// Apply takes the listen address and the trigger timeout from cfg.
func (s *Server) Apply(cfg *config.Configuration) {
	if cfg.HTTP.Address != "" {
		s.address = cfg.HTTP.Address
	}
	if cfg.HTTP.ActionTimeout > 0 {
		s.actionTimeout = cfg.HTTP.ActionTimeout
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) {
	srv := &http.Server{Addr: s.address, Handler: s.router}
	go func() {
		log.Infof("http - listening on %s", s.address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(errors.WrapAndReport(err, "http server"))
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warnf("http - shutdown:%v", err)
		}
	}()
}

func (s *Server) getState(ctx *gin.Context) {
	since, _ := strconv.ParseInt(ctx.Query("since"), 10, 64)
	ctx.JSON(http.StatusOK, gin.H{
		"state": s.ctrl.State().String(),
		"shell": s.shell.Snapshot(since),
	})
}

func (s *Server) openApp(ctx *gin.Context) {
	s.ctrl.Start()
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) clickMainButton(ctx *gin.Context) {
	st := s.shell.Snapshot(0)
	if !st.Button.Visible || !st.Button.Enabled {
		ctx.JSON(http.StatusConflict, gin.H{"error": "main button is not clickable"})
		return
	}
	s.trigger(ctx, "main-button", func(c context.Context) error {
		if !s.shell.Click(c) {
			return errors.New("main button is not clickable")
		}
		return nil
	})
}

type logRequest struct {
	Name string `json:"name"`
}

func (s *Server) logName(ctx *gin.Context) {
	var req logRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.shell.Input.Set(req.Name)
	s.trigger(ctx, "log", func(c context.Context) error {
		return s.ctrl.LogName(c, s.shell.Input)
	})
}

func (s *Server) simpleAction(name string, fn func(ctx context.Context) error) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		s.trigger(ctx, name, fn)
	}
}

func (s *Server) getQRCode(ctx *gin.Context) {
	png := s.shell.QRCode()
	if len(png) == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no pairing in progress"})
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

// trigger runs fn detached from the request, keeping its request id for logs.
func (s *Server) trigger(ctx *gin.Context, name string, fn func(ctx context.Context) error) {
	bctx := meta.Begin(context.Background())
	meta.WithValue(bctx, middleware.RequestIDKey, meta.Value(ctx.Request.Context(), middleware.RequestIDKey))
	meta.WithValue(bctx, "trigger", name)

	done := make(chan error, 1)
	go func() {
		tctx, cancel := context.WithTimeout(bctx, s.actionTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				err := errors.ErrorfAndReport("%v", r)
				log.Errorc(tctx, "%+v", err)
				done <- err
			}
		}()
		err := fn(tctx)
		if err != nil {
			log.Infoc(tctx, "trigger finished:%v", err)
		}
		done <- err
	}()

	if ctx.Query("wait") != "true" {
		ctx.JSON(http.StatusAccepted, gin.H{"accepted": true, "trigger": name})
		return
	}
	if err := <-done; err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error(), "trigger": name})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "trigger": name})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, action.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, action.ErrNotConnected):
		return http.StatusPreconditionFailed
	case errors.Is(err, action.ErrEmptyInput):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
