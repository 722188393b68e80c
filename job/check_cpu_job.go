package job

import (
	"fmt"
	"time"

	"lottery/logger"

	"github.com/shirou/gopsutil/v4/cpu"
)

type Notifier interface {
	SendMsgToTgbotAdmins(msg string) error
}

// CheckCpuJob alerts the admins after three consecutive samples above the threshold, at most
// once per notifyInterval.
type CheckCpuJob struct {
	notifier       Notifier
	threshold      float64
	notifyInterval time.Duration
	sample         func() (float64, error)

	overThresholdCount int
	lastNotifyTime     time.Time
}

func NewCheckCpuJob(notifier Notifier, threshold int) *CheckCpuJob {
	return &CheckCpuJob{
		notifier:       notifier,
		threshold:      float64(threshold),
		notifyInterval: 10 * time.Minute,
		sample:         sampleCpu,
	}
}

func sampleCpu() (float64, error) {
	percent, err := cpu.Percent(10*time.Second, false)
	if err != nil {
		return 0, err
	}
	if len(percent) == 0 {
		return 0, fmt.Errorf("no cpu sample")
	}
	return percent[0], nil
}

func (j *CheckCpuJob) Run() {
	percent, err := j.sample()
	if err != nil {
		logger.Debug("cpu sample failed:", err)
		return
	}

	now := time.Now()
	if percent > j.threshold {
		j.overThresholdCount++
	} else {
		j.overThresholdCount = 0
	}

	if j.overThresholdCount >= 3 && now.Sub(j.lastNotifyTime) > j.notifyInterval {
		msg := fmt.Sprintf("CPU usage %.2f%% is above the %.0f%% threshold", percent, j.threshold)
		logger.Warning(msg)
		if err := j.notifier.SendMsgToTgbotAdmins(msg); err != nil {
			logger.Warning("send cpu alert failed:", err)
		}
		j.lastNotifyTime = now
		j.overThresholdCount = 0
	}
}
