package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"lottery/config"
	"lottery/logger"
	"lottery/service"
	"lottery/util/common"

	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
)

const acceptPollInterval = time.Second

// Server accepts agency connections and runs one Session per connection.
type Server struct {
	cfg         config.ServerConfig
	bets        *service.BetService
	coordinator *service.Coordinator

	listener *net.TCPListener
	cron     *cron.Cron

	wg             sync.WaitGroup
	sessions       atomic.Int32
	served         atomic.Int64
	isShuttingDown atomic.Bool
	done           chan struct{}
	closeErr       error

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(cfg config.ServerConfig, bets *service.BetService, coordinator *service.Coordinator) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		bets:        bets,
		coordinator: coordinator,
		cron:        cron.New(cron.WithSeconds()),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			s.Stop()
		}
	}()

	s.cron.Start()

	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(s.cfg.Listen, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return err
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	logger.Infof("action: escuchando | result: success | address: %v | agencias: %d | cycle_id: %s",
		listener.Addr(), s.coordinator.Progress().Expected, s.coordinator.CycleID())

	go s.run()
	return nil
}

// run is the only caller of Accept. It polls the shutdown flag between deadlines and, once
// set, closes the listener and waits for every in-flight session before closing done.
func (s *Server) run() {
	defer close(s.done)
	defer s.wg.Wait()
	defer func() {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
	}()

	for !s.isShuttingDown.Load() {
		if err := s.listener.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			logger.Error("set accept deadline failed:", err)
			return
		}
		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.isShuttingDown.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warning("accept failed:", err)
			continue
		}
		logger.Infof("action: accept_connections | result: success | ip: %v", conn.RemoteAddr())

		s.wg.Add(1)
		s.sessions.Inc()
		s.served.Inc()
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer s.sessions.Dec()
	defer common.Recover("session panic")

	session := NewSession(conn, s.bets, s.coordinator, s.cfg.MaxBatchSize)
	_ = session.Run(s.ctx)
}

// Stop stops accepting and waits for in-flight sessions to finish. Sessions are not
// cancelled, so an agency blocked on the draw keeps Stop waiting.
func (s *Server) Stop() error {
	if !s.isShuttingDown.CompareAndSwap(false, true) {
		<-s.done
		return nil
	}
	logger.Info("action: shutdown | result: in_progress")

	if s.listener != nil {
		<-s.done
	} else {
		close(s.done)
	}
	<-s.cron.Stop().Done()
	s.cancel()
	logger.Info("action: shutdown | result: success")
	return s.closeErr
}

// Done is closed once the accept loop has exited and every session has returned.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) ActiveSessions() int32 {
	return s.sessions.Load()
}

// ServedSessions counts every connection accepted since Start.
func (s *Server) ServedSessions() int64 {
	return s.served.Load()
}

func (s *Server) GetCtx() context.Context {
	return s.ctx
}

func (s *Server) GetCron() *cron.Cron {
	return s.cron
}
