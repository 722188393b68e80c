package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"lottery/config"
	"lottery/logger"
	"lottery/service"
	"lottery/util/common"
	"lottery/web/controller"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Server is the read-only status API. It never touches the lottery protocol.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	listen     string

	api *controller.APIController

	statusService *service.StatusService
	coordinator   *service.Coordinator

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(listen string, statusService *service.StatusService, coordinator *service.Coordinator) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		listen:        listen,
		statusService: statusService,
		coordinator:   coordinator,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (s *Server) initRouter() *gin.Engine {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	s.api = controller.NewAPIController(&engine.RouterGroup, s.statusService, s.coordinator)
	return engine
}

func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			s.Stop()
		}
	}()

	engine := s.initRouter()
	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())
	s.listener = listener

	s.httpServer = &http.Server{
		Handler: engine,
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warning("web server stopped:", err)
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	s.cancel()
	var err1 error
	var err2 error
	if s.httpServer != nil {
		err1 = s.httpServer.Shutdown(context.Background())
	}
	if s.listener != nil {
		err2 = s.listener.Close()
		if errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	return common.Combine(err1, err2)
}

// Handler builds the router without listening, for in-process use.
func (s *Server) Handler() http.Handler {
	return s.initRouter()
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) GetCtx() context.Context {
	return s.ctx
}
