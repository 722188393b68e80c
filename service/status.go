package service

import (
	"context"
	"runtime"
	"time"

	"lottery/database"
	"lottery/logger"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Status is the snapshot served by the status API.
type Status struct {
	T   time.Time `json:"-"`
	Cpu float64   `json:"cpu"`
	Mem struct {
		Current uint64 `json:"current"`
		Total   uint64 `json:"total"`
	} `json:"mem"`
	Bets     int64    `json:"bets"`
	Sessions int32    `json:"sessions"`
	Draw     Progress `json:"draw"`
	AppStats struct {
		Threads uint32 `json:"threads"`
		Mem     uint64 `json:"mem"`
		Uptime  uint64 `json:"uptime"`
	} `json:"appStats"`
}

// SessionCounter reports how many connections are being served.
type SessionCounter interface {
	ActiveSessions() int32
}

type StatusService struct {
	coordinator *Coordinator
	sessions    SessionCounter
	startTime   time.Time
}

func NewStatusService(coordinator *Coordinator, sessions SessionCounter) *StatusService {
	return &StatusService{coordinator: coordinator, sessions: sessions, startTime: time.Now()}
}

func (s *StatusService) GetStatus(lastStatus *Status) *Status {
	now := time.Now()
	status := &Status{T: now}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		logger.Warning("get cpu percent failed:", err)
	} else if len(percents) > 0 {
		status.Cpu = percents[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warning("get virtual memory failed:", err)
	} else {
		status.Mem.Current = memInfo.Used
		status.Mem.Total = memInfo.Total
	}

	bets, err := database.CountBets(context.Background(), s.coordinator.CycleID())
	if err != nil {
		logger.Debug("count bets failed:", err)
		if lastStatus != nil {
			bets = lastStatus.Bets
		}
	}
	status.Bets = bets

	if s.sessions != nil {
		status.Sessions = s.sessions.ActiveSessions()
	}
	status.Draw = s.coordinator.Progress()

	var rtm runtime.MemStats
	runtime.ReadMemStats(&rtm)
	status.AppStats.Mem = rtm.Sys
	status.AppStats.Threads = uint32(runtime.NumGoroutine())
	status.AppStats.Uptime = uint64(now.Sub(s.startTime).Seconds())

	return status
}
