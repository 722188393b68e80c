package job

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lottery/logger"
	"lottery/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSessions int32

func (f fixedSessions) ActiveSessions() int32 {
	return int32(f)
}

type fixedDrawer struct {
	winners service.WinnerSet
	err     error
}

func (d fixedDrawer) Draw(context.Context) (service.WinnerSet, error) {
	return d.winners, d.err
}

func progressLines(cycleID string) []string {
	var lines []string
	for _, line := range logger.GetLogs(1000, "DEBUG") {
		if strings.Contains(line, "action: progreso") && strings.Contains(line, cycleID) {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestDrawProgressJobLogsOnlyChanges(t *testing.T) {
	coordinator := service.NewCoordinator("", 2, fixedDrawer{winners: service.WinnerSet{
		1: {{Agency: 1, Document: 5, Number: 7574}},
		2: {},
	}})
	j := NewDrawProgressJob(coordinator, fixedSessions(1))

	j.Run()
	j.Run()
	require.Len(t, progressLines(coordinator.CycleID()), 1)

	require.NoError(t, coordinator.Register(1))
	require.NoError(t, coordinator.Register(2))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = coordinator.FinishAndWait(context.Background(), 1)
	}()
	require.Eventually(t, func() bool {
		return len(coordinator.Progress().Finished) == 1
	}, time.Second, 5*time.Millisecond)

	j.Run()
	lines := progressLines(coordinator.CycleID())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "finalizadas: 1/2")

	_, err := coordinator.FinishAndWait(context.Background(), 2)
	require.NoError(t, err)
	<-done

	j.Run()
	j.Run()
	lines = progressLines(coordinator.CycleID())
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "result: success")
	assert.Contains(t, lines[0], "ganadores: 1")
}

func TestDrawProgressJobReportsFailedDraw(t *testing.T) {
	coordinator := service.NewCoordinator("", 1, fixedDrawer{err: errors.New("scan failed")})
	require.NoError(t, coordinator.Register(1))
	_, err := coordinator.FinishAndWait(context.Background(), 1)
	require.Error(t, err)

	NewDrawProgressJob(coordinator, fixedSessions(0)).Run()
	lines := progressLines(coordinator.CycleID())
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "result: fail")
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) SendMsgToTgbotAdmins(msg string) error {
	r.messages = append(r.messages, msg)
	return r.err
}

func newTestCpuJob(notifier Notifier, samples ...float64) *CheckCpuJob {
	j := NewCheckCpuJob(notifier, 80)
	j.sample = func() (float64, error) {
		if len(samples) == 0 {
			return 0, errors.New("no samples left")
		}
		s := samples[0]
		samples = samples[1:]
		return s, nil
	}
	return j
}

func TestCheckCpuJob(t *testing.T) {
	tests := []struct {
		description string
		samples     []float64
		alerts      int
	}{
		{description: "below threshold", samples: []float64{10, 20, 30}, alerts: 0},
		{description: "two high samples", samples: []float64{90, 95}, alerts: 0},
		{description: "streak broken", samples: []float64{90, 95, 50, 90, 95}, alerts: 0},
		{description: "three high samples", samples: []float64{81, 90, 99}, alerts: 1},
		{description: "alerts throttled", samples: []float64{90, 90, 90, 90, 90, 90}, alerts: 1},
		{description: "sample errors ignored", samples: []float64{90, 90}, alerts: 0},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			notifier := &recordingNotifier{}
			j := newTestCpuJob(notifier, test.samples...)
			for range len(test.samples) + 1 {
				j.Run()
			}
			assert.Len(t, notifier.messages, test.alerts)
		})
	}
}

func TestCheckCpuJobSurvivesNotifierError(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	j := newTestCpuJob(notifier, 90, 90, 90)
	for range 3 {
		j.Run()
	}
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "90.00%")
	assert.True(t, j.lastNotifyTime.After(time.Time{}))
}
