package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"lottery/logger"
	"lottery/util/common"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

var (
	ErrUnknownAgency   = errors.New("unknown agency")
	ErrDuplicateAgency = errors.New("agency already connected")
	ErrAlreadyFinished = errors.New("agency already finished")
	ErrDrawPanicked    = errors.New("draw panicked")
)

// Drawer runs the draw over the full bet store.
type Drawer interface {
	Draw(ctx context.Context) (WinnerSet, error)
}

// DrawResult is what the drawer publishes once per cycle.
type DrawResult struct {
	CycleID string
	Winners WinnerSet
	Err     error
}

// Progress is a point-in-time view of the draw cycle.
type Progress struct {
	CycleID    string        `json:"cycleId"`
	Expected   int           `json:"expected"`
	Active     []uint8       `json:"active"`
	Finished   []uint8       `json:"finished"`
	Drawn      bool          `json:"drawn"`
	DrawCount  int32         `json:"drawCount"`
	Winners    map[uint8]int `json:"winners,omitempty"`
	DrawFailed bool          `json:"drawFailed"`
}

// Coordinator is the barrier every session passes after submitting its bets. The session
// whose finish brings the count to the expected number of agencies runs the draw; every
// other session sleeps on cond until the result is published.
type Coordinator struct {
	expected int
	drawer   Drawer
	cycleID  string

	mu       sync.Mutex
	cond     *sync.Cond
	active   map[uint8]bool
	finished map[uint8]bool
	drawn    bool
	winners  WinnerSet
	drawErr  error
	hooks    []func(DrawResult)

	hooksDone chan struct{}
	draws     atomic.Int32
}

// NewCoordinator opens draw cycle cycleID for expected agencies. An empty cycleID gets a
// fresh one.
func NewCoordinator(cycleID string, expected int, drawer Drawer) *Coordinator {
	if cycleID == "" {
		cycleID = uuid.NewString()
	}
	c := &Coordinator{
		expected:  expected,
		drawer:    drawer,
		cycleID:   cycleID,
		active:    make(map[uint8]bool),
		finished:  make(map[uint8]bool),
		hooksDone: make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Coordinator) CycleID() string {
	return c.cycleID
}

// OnDraw registers fn to run after the result is published. Hooks run in order on their
// own goroutine, so the drawing session never waits for them.
func (c *Coordinator) OnDraw(fn func(DrawResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Register claims agency for a connection. An agency may reconnect after a failed session
// but never once it has finished.
func (c *Coordinator) Register(agency uint8) error {
	if agency == 0 || int(agency) > c.expected {
		return fmt.Errorf("%w: %d not in 1..%d", ErrUnknownAgency, agency, c.expected)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished[agency] {
		return fmt.Errorf("%w: %d", ErrAlreadyFinished, agency)
	}
	if c.active[agency] {
		return fmt.Errorf("%w: %d", ErrDuplicateAgency, agency)
	}
	c.active[agency] = true
	return nil
}

// Release frees the claim of a session that failed before finishing.
func (c *Coordinator) Release(agency uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished[agency] {
		delete(c.active, agency)
	}
}

// FinishAndWait marks agency as done submitting and blocks until the draw of this cycle is
// published. ctx is handed to the draw; waiting itself is not cancellable.
func (c *Coordinator) FinishAndWait(ctx context.Context, agency uint8) (WinnerSet, error) {
	c.mu.Lock()
	if !c.active[agency] {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %d is not registered", ErrUnknownAgency, agency)
	}
	if c.finished[agency] {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrAlreadyFinished, agency)
	}
	c.finished[agency] = true
	logger.Infof("action: agencia_finalizada | result: success | agencia: %d | finalizadas: %d/%d", agency, len(c.finished), c.expected)

	if len(c.finished) < c.expected {
		for !c.drawn {
			c.cond.Wait()
		}
		winners, err := c.winners, c.drawErr
		c.mu.Unlock()
		return winners, err
	}
	c.mu.Unlock()

	return c.runDraw(ctx)
}

func (c *Coordinator) runDraw(ctx context.Context) (WinnerSet, error) {
	c.draws.Inc()
	winners, err := c.draw(ctx)
	if err != nil {
		logger.Errorf("action: sorteo | result: fail | error: %v", err)
	} else {
		logger.Infof("action: sorteo | result: success | ganadores: %d", winners.Count())
	}

	c.mu.Lock()
	c.winners = winners
	c.drawErr = err
	c.drawn = true
	hooks := slices.Clone(c.hooks)
	c.cond.Broadcast()
	c.mu.Unlock()

	result := DrawResult{CycleID: c.cycleID, Winners: winners, Err: err}
	go func() {
		defer close(c.hooksDone)
		for _, hook := range hooks {
			runHook(hook, result)
		}
	}()
	return winners, err
}

// draw runs the drawer and turns a panic into the cycle error, so waiters are always
// released.
func (c *Coordinator) draw(ctx context.Context) (winners WinnerSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			winners, err = nil, fmt.Errorf("%w: %v", ErrDrawPanicked, r)
		}
	}()
	return c.drawer.Draw(ctx)
}

func runHook(hook func(DrawResult), result DrawResult) {
	defer common.Recover("draw hook panic")
	hook(result)
}

// WaitHooks blocks until the hooks of a published draw have returned. It returns at once
// when no draw ran.
func (c *Coordinator) WaitHooks() {
	c.mu.Lock()
	drawn := c.drawn
	c.mu.Unlock()
	if drawn {
		<-c.hooksDone
	}
}

// Result returns the published winners, if the draw already ran.
func (c *Coordinator) Result() (WinnerSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.winners, c.drawn && c.drawErr == nil
}

func (c *Coordinator) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := Progress{
		CycleID:    c.cycleID,
		Expected:   c.expected,
		Active:     sortedKeys(c.active),
		Finished:   sortedKeys(c.finished),
		Drawn:      c.drawn,
		DrawCount:  c.draws.Load(),
		DrawFailed: c.drawErr != nil,
	}
	if c.drawn && c.drawErr == nil {
		p.Winners = make(map[uint8]int, len(c.winners))
		for agency, bets := range c.winners {
			p.Winners[agency] = len(bets)
		}
	}
	return p
}

func sortedKeys(m map[uint8]bool) []uint8 {
	keys := make([]uint8, 0, len(m))
	for k, ok := range m {
		if ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
