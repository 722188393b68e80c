package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"lottery/config"
	"lottery/database/model"
	"lottery/protocol"
	"lottery/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const winningNumber = 7574

type memStore struct {
	mu   sync.Mutex
	bets []model.Bet
	err  error
}

func (m *memStore) Append(_ context.Context, bets []model.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.bets = append(m.bets, bets...)
	return nil
}

func (m *memStore) ScanAll(_ context.Context, cycleID string) ([]model.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Bet
	for _, b := range m.bets {
		if b.CycleID == cycleID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bets)
}

type testEnv struct {
	server      *Server
	store       *memStore
	coordinator *service.Coordinator
}

func startServer(t *testing.T, agencies int) *testEnv {
	t.Helper()
	store := &memStore{}
	bets := service.NewBetService(store, "cycle-1")
	coordinator := service.NewCoordinator(bets.CycleID(), agencies, service.NewDrawService(bets, service.WinningNumber(winningNumber)))
	srv := NewServer(config.ServerConfig{
		Listen:       "127.0.0.1",
		Port:         0,
		MaxBatchSize: protocol.MaxBatchSize,
	}, bets, coordinator)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		assert.NoError(t, srv.Stop())
	})
	return &testEnv{server: srv, store: store, coordinator: coordinator}
}

func bet(agency uint8, document, number uint32) model.Bet {
	return model.Bet{
		Agency:    agency,
		FirstName: "Nombre",
		LastName:  "Apellido",
		Document:  document,
		BirthDate: "1999-03-17",
		Number:    number,
	}
}

type agencyClient struct {
	t        *testing.T
	conn     net.Conn
	capacity int
}

func dial(t *testing.T, addr net.Addr, agency uint16, capacity int) *agencyClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	md := protocol.Metadata{BatchSize: uint16(capacity * protocol.PacketSize), Agency: agency}
	require.NoError(t, protocol.WriteAll(conn, protocol.EncodeMetadata(md)))
	return &agencyClient{t: t, conn: conn, capacity: capacity}
}

func (c *agencyClient) sendBatch(bets []model.Bet, end bool) {
	c.t.Helper()
	var data []byte
	for _, b := range bets {
		packet, err := protocol.EncodeBet(b)
		require.NoError(c.t, err)
		data = append(data, packet...)
	}
	if end {
		data = append(data, protocol.EndSentinel()...)
	}
	require.NoError(c.t, protocol.WriteAll(c.conn, data))
}

// readAcks reads one batch reply, stopping at the ack end sentinel or after capacity acks.
func (c *agencyClient) readAcks() ([]protocol.Ack, bool, error) {
	var acks []protocol.Ack
	for len(acks) < c.capacity {
		data, err := protocol.ReadFull(c.conn, protocol.AckSize)
		if err != nil {
			return acks, false, err
		}
		if protocol.IsAckEndSentinel(data) {
			return acks, true, nil
		}
		ack, err := protocol.DecodeAck(data)
		if err != nil {
			return acks, false, err
		}
		acks = append(acks, ack)
	}
	return acks, false, nil
}

func (c *agencyClient) readWinners() ([]uint32, error) {
	header, err := protocol.ReadFull(c.conn, protocol.CountSize)
	if err != nil {
		return nil, err
	}
	count := int(header[0])<<8 | int(header[1])
	body, err := protocol.ReadFull(c.conn, count*protocol.DocumentSize)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeWinners(append(header, body...))
}

// submit sends bets in batches of the client's capacity and checks every reply.
func (c *agencyClient) submit(bets []model.Bet) {
	c.t.Helper()
	for start := 0; ; start += c.capacity {
		end := min(start+c.capacity, len(bets))
		batch := bets[start:end]
		last := len(batch) < c.capacity
		c.sendBatch(batch, last)

		acks, ended, err := c.readAcks()
		require.NoError(c.t, err)
		require.Len(c.t, acks, len(batch))
		for i, ack := range acks {
			assert.Equal(c.t, batch[i].Document, ack.Document)
			assert.Equal(c.t, batch[i].Number, ack.Number)
			assert.Equal(c.t, uint8(model.Accepted), ack.StatusCode)
		}
		assert.Equal(c.t, last, ended)
		if last {
			return
		}
	}
}

func expectClosed(t *testing.T, conn net.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	assert.Zero(t, n)
	assert.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection was left open")
	}
}

func TestServerEndToEnd(t *testing.T) {
	env := startServer(t, 3)

	submissions := map[uint16][]model.Bet{
		1: {bet(1, 100, winningNumber), bet(1, 101, 1)},
		2: {bet(2, 200, 2)},
		3: {bet(3, 300, winningNumber), bet(3, 301, winningNumber), bet(3, 302, 3)},
	}
	expected := map[uint16][]uint32{
		1: {100},
		2: {},
		3: {300, 301},
	}

	type result struct {
		agency  uint16
		winners []uint32
		err     error
	}
	results := make(chan result, len(submissions))
	for agency, bets := range submissions {
		client := dial(t, env.server.Addr(), agency, 2)
		go func() {
			client.submit(bets)
			winners, err := client.readWinners()
			results <- result{agency: agency, winners: winners, err: err}
		}()
	}

	for range submissions {
		select {
		case r := <-results:
			require.NoError(t, r.err)
			assert.Equal(t, expected[r.agency], r.winners, "agency %d", r.agency)
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for winners")
		}
	}

	assert.Equal(t, 6, env.store.len())
	progress := env.coordinator.Progress()
	assert.True(t, progress.Drawn)
	assert.EqualValues(t, 1, progress.DrawCount)
	assert.EqualValues(t, 3, env.server.ServedSessions())
}

func TestServerHoldsWinnersUntilEveryAgencyFinishes(t *testing.T) {
	env := startServer(t, 2)

	first := dial(t, env.server.Addr(), 1, 4)
	first.submit([]model.Bet{bet(1, 10, winningNumber)})

	require.NoError(t, first.conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, err := first.conn.Read(make([]byte, 1))
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout(), "winners sent before the draw")
	assert.False(t, env.coordinator.Progress().Drawn)
	require.NoError(t, first.conn.SetReadDeadline(time.Time{}))

	second := dial(t, env.server.Addr(), 2, 4)
	second.submit([]model.Bet{bet(2, 20, winningNumber), bet(2, 21, 5)})

	winners, err := second.readWinners()
	require.NoError(t, err)
	assert.Equal(t, []uint32{20}, winners)

	winners, err = first.readWinners()
	require.NoError(t, err)
	assert.Equal(t, []uint32{10}, winners)
}

func TestServerEmptySubmission(t *testing.T) {
	env := startServer(t, 1)

	client := dial(t, env.server.Addr(), 1, 3)
	client.submit(nil)

	winners, err := client.readWinners()
	require.NoError(t, err)
	assert.Empty(t, winners)
	assert.Zero(t, env.store.len())
}

func TestServerAgencyReconnectsAfterFailure(t *testing.T) {
	env := startServer(t, 1)

	broken := dial(t, env.server.Addr(), 1, 2)
	packet, err := protocol.EncodeBet(bet(1, 1, 1))
	require.NoError(t, err)
	packet[1+len("Nombre")+1] = 'x'
	require.NoError(t, protocol.WriteAll(broken.conn, append(packet, protocol.EndSentinel()...)))
	expectClosed(t, broken.conn)

	require.Eventually(t, func() bool {
		return len(env.coordinator.Progress().Active) == 0
	}, 5*time.Second, 10*time.Millisecond)

	client := dial(t, env.server.Addr(), 1, 2)
	client.submit([]model.Bet{bet(1, 7, winningNumber)})
	winners, err := client.readWinners()
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, winners)
	assert.Equal(t, 1, env.store.len())
}

func TestServerRejectsInvalidMetadata(t *testing.T) {
	tests := []struct {
		description string
		send        []byte
	}{
		{description: "three byte header", send: []byte{0, 79, 0}},
		{description: "unknown agency", send: protocol.EncodeMetadata(protocol.Metadata{BatchSize: 79, Agency: 9})},
		{description: "capacity not a packet multiple", send: protocol.EncodeMetadata(protocol.Metadata{BatchSize: 80, Agency: 1})},
		{description: "zero capacity", send: protocol.EncodeMetadata(protocol.Metadata{BatchSize: 0, Agency: 1})},
	}

	env := startServer(t, 2)
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			conn, err := net.Dial("tcp", env.server.Addr().String())
			require.NoError(t, err)
			defer conn.Close()
			require.NoError(t, protocol.WriteAll(conn, test.send))
			require.NoError(t, conn.(*net.TCPConn).CloseWrite())
			expectClosed(t, conn)
		})
	}
	assert.Empty(t, env.coordinator.Progress().Active)
}

func TestServerRejectsDuplicateAgency(t *testing.T) {
	env := startServer(t, 2)

	first := dial(t, env.server.Addr(), 1, 2)
	require.Eventually(t, func() bool {
		return len(env.coordinator.Progress().Active) == 1
	}, 5*time.Second, 10*time.Millisecond)

	duplicate := dial(t, env.server.Addr(), 1, 2)
	expectClosed(t, duplicate.conn)

	require.NoError(t, first.conn.Close())
	require.Eventually(t, func() bool {
		return env.server.ActiveSessions() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerStopWaitsForIdleLoop(t *testing.T) {
	env := startServer(t, 1)
	addr := env.server.Addr()

	require.NoError(t, env.server.Stop())
	select {
	case <-env.server.Done():
	default:
		t.Fatal("done not closed after Stop")
	}

	_, err := net.DialTimeout("tcp", addr.String(), time.Second)
	assert.Error(t, err)
	assert.NoError(t, env.server.Stop())
}
