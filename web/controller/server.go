package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"lottery/database"
	"lottery/logger"
	"lottery/service"
	"lottery/web/global"

	"github.com/gin-gonic/gin"
)

const maxLogLines = 1000

type ServerController struct {
	statusService *service.StatusService
	coordinator   *service.Coordinator

	mu                sync.Mutex
	lastStatus        *service.Status
	lastGetStatusTime time.Time
}

func NewServerController(g *gin.RouterGroup, statusService *service.StatusService, coordinator *service.Coordinator) *ServerController {
	a := &ServerController{
		statusService:     statusService,
		coordinator:       coordinator,
		lastGetStatusTime: time.Now(),
	}
	a.initRouter(g)
	a.startTask()
	return a
}

func (a *ServerController) initRouter(g *gin.RouterGroup) {
	g.GET("/status", a.status)
	g.GET("/winners", a.winners)
	g.GET("/history", a.history)
	g.GET("/logs/:count", a.getLogs)
}

func (a *ServerController) refreshStatus() *service.Status {
	a.mu.Lock()
	last := a.lastStatus
	a.mu.Unlock()

	status := a.statusService.GetStatus(last)

	a.mu.Lock()
	a.lastStatus = status
	a.mu.Unlock()
	return status
}

func (a *ServerController) startTask() {
	server := global.GetLotteryServer()
	if server == nil || server.GetCron() == nil {
		return
	}
	server.GetCron().AddFunc("@every 2s", func() {
		a.mu.Lock()
		idle := time.Since(a.lastGetStatusTime) > 3*time.Minute
		a.mu.Unlock()
		if idle {
			return
		}
		a.refreshStatus()
	})
}

func (a *ServerController) status(c *gin.Context) {
	a.mu.Lock()
	a.lastGetStatusTime = time.Now()
	status := a.lastStatus
	a.mu.Unlock()

	if status == nil {
		status = a.refreshStatus()
	}
	jsonObj(c, status, nil)
}

// winners serves the current cycle from memory, or a persisted cycle when ?cycle= is given.
func (a *ServerController) winners(c *gin.Context) {
	if cycleID := c.Query("cycle"); cycleID != "" && cycleID != a.coordinator.CycleID() {
		rows, err := database.GetWinners(c.Request.Context(), cycleID)
		if err != nil {
			jsonMsg(c, "get winners", err)
			return
		}
		if len(rows) == 0 {
			pureJsonMsg(c, http.StatusNotFound, false, "unknown draw cycle")
			return
		}
		docs := make(map[uint8][]uint32)
		for _, row := range rows {
			docs[row.Agency] = append(docs[row.Agency], row.Document)
		}
		jsonObj(c, winnersResponse{CycleID: cycleID, Winners: docs}, nil)
		return
	}

	progress := a.coordinator.Progress()
	if progress.DrawFailed {
		pureJsonMsg(c, http.StatusConflict, false, "draw failed")
		return
	}
	winners, ok := a.coordinator.Result()
	if !ok {
		pureJsonMsg(c, http.StatusConflict, false, fmt.Sprintf("draw not finished: %d/%d agencies", len(progress.Finished), progress.Expected))
		return
	}
	docs := make(map[uint8][]uint32, len(winners))
	for agency := range winners {
		docs[agency] = winners.Documents(agency)
	}
	jsonObj(c, winnersResponse{CycleID: progress.CycleID, Winners: docs}, nil)
}

type winnersResponse struct {
	CycleID string             `json:"cycleId"`
	Winners map[uint8][]uint32 `json:"winners"`
}

func (a *ServerController) history(c *gin.Context) {
	histories, err := database.GetDrawHistory(c.Request.Context())
	jsonObj(c, histories, err)
}

func (a *ServerController) getLogs(c *gin.Context) {
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil || count <= 0 {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid count")
		return
	}
	count = min(count, maxLogLines)
	level := c.DefaultQuery("level", "INFO")
	jsonObj(c, logger.GetLogs(count, level), nil)
}
