package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"lottery/logger"
	"lottery/protocol"
	"lottery/service"
)

var ErrAgencyMismatch = errors.New("bet agency does not match the connection agency")

type SessionState int

const (
	AwaitMetadata SessionState = iota
	ReceivingBatch
	Acking
	AwaitingDraw
	SendingResult
	Closed
	Failed
)

func (s SessionState) String() string {
	switch s {
	case AwaitMetadata:
		return "await_metadata"
	case ReceivingBatch:
		return "receiving_batch"
	case Acking:
		return "acking"
	case AwaitingDraw:
		return "awaiting_draw"
	case SendingResult:
		return "sending_result"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session serves one agency connection: metadata, batches with their acks, the barrier and
// finally the agency's winners. It never retries; any error closes the connection.
type Session struct {
	conn        net.Conn
	bets        *service.BetService
	coordinator *service.Coordinator
	maxBatch    int

	state    SessionState
	metadata protocol.Metadata
	agency   uint8
	received int
}

func NewSession(conn net.Conn, bets *service.BetService, coordinator *service.Coordinator, maxBatch int) *Session {
	return &Session{
		conn:        conn,
		bets:        bets,
		coordinator: coordinator,
		maxBatch:    maxBatch,
		state:       AwaitMetadata,
	}
}

func (s *Session) State() SessionState {
	return s.state
}

func (s *Session) Agency() uint8 {
	return s.agency
}

// Received is the number of bets stored and acknowledged so far.
func (s *Session) Received() int {
	return s.received
}

// Run drives the session to Closed or Failed and always closes the connection.
func (s *Session) Run(ctx context.Context) (err error) {
	defer s.conn.Close()
	defer func() {
		if err != nil {
			s.state = Failed
			logger.Errorf("action: apuesta_recibida | result: fail | agencia: %d | cantidad: %d | ip: %v | error: %v",
				s.agency, s.received, s.conn.RemoteAddr(), err)
		}
	}()

	if err := s.receiveMetadata(); err != nil {
		return err
	}

	if err := s.receiveBets(ctx); err != nil {
		s.coordinator.Release(s.agency)
		return err
	}
	logger.Infof("action: apuesta_recibida | result: success | agencia: %d | cantidad: %d", s.agency, s.received)

	s.state = AwaitingDraw
	winners, err := s.coordinator.FinishAndWait(ctx, s.agency)
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}

	s.state = SendingResult
	payload, err := protocol.EncodeWinners(winners[s.agency])
	if err != nil {
		return fmt.Errorf("send winners: %w", err)
	}
	if err := protocol.WriteAll(s.conn, payload); err != nil {
		return fmt.Errorf("send winners: %w", err)
	}
	logger.Infof("action: ganadores_enviados | result: success | agencia: %d | cantidad: %d", s.agency, len(winners[s.agency]))

	s.state = Closed
	return nil
}

func (s *Session) receiveMetadata() error {
	data, err := protocol.ReadFull(s.conn, protocol.MetadataSize)
	if err != nil {
		if errors.Is(err, protocol.ErrConnectionTerminatedEarly) {
			return fmt.Errorf("%w: %w", protocol.ErrMalformedHeader, err)
		}
		return err
	}
	metadata, err := protocol.DecodeMetadata(data)
	if err != nil {
		return err
	}
	if err := metadata.Validate(s.maxBatch); err != nil {
		return err
	}
	agency := uint8(metadata.Agency)
	if err := s.coordinator.Register(agency); err != nil {
		return err
	}
	s.metadata = metadata
	s.agency = agency
	logger.Debugf("action: recibir_metadata | result: success | agencia: %d | batch_size: %d", agency, metadata.BatchSize)
	return nil
}

// receiveBets loops batch by batch until a batch carries the end sentinel. Each batch is
// decoded completely and stored before its acks are written.
func (s *Session) receiveBets(ctx context.Context) error {
	for {
		s.state = ReceivingBatch
		data, ended, err := protocol.ReadBatch(s.conn, int(s.metadata.BatchSize))
		if err != nil {
			return err
		}
		bets, err := protocol.SplitBatch(data)
		if err != nil {
			return err
		}
		for _, bet := range bets {
			if bet.Agency != s.agency {
				return fmt.Errorf("%w: %w: got %d", protocol.ErrMalformedRecord, ErrAgencyMismatch, bet.Agency)
			}
		}

		s.state = Acking
		if err := s.bets.Store(ctx, bets); err != nil {
			return err
		}
		if err := protocol.WriteAll(s.conn, protocol.EncodeAcks(bets, s.metadata.Capacity())); err != nil {
			return fmt.Errorf("send acks: %w", err)
		}
		s.received += len(bets)

		if ended {
			return nil
		}
	}
}
