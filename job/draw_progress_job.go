package job

import (
	"lottery/logger"
	"lottery/service"
)

// DrawProgressJob logs the barrier state whenever it changes.
type DrawProgressJob struct {
	coordinator *service.Coordinator
	sessions    service.SessionCounter

	lastFinished int
	lastSessions int32
	reported     bool
}

func NewDrawProgressJob(coordinator *service.Coordinator, sessions service.SessionCounter) *DrawProgressJob {
	return &DrawProgressJob{
		coordinator:  coordinator,
		sessions:     sessions,
		lastFinished: -1,
	}
}

func (j *DrawProgressJob) Run() {
	if j.reported {
		return
	}
	progress := j.coordinator.Progress()
	active := j.sessions.ActiveSessions()

	if progress.Drawn {
		j.reported = true
		if progress.DrawFailed {
			logger.Warningf("action: progreso | result: fail | cycle_id: %s | finalizadas: %d/%d",
				progress.CycleID, len(progress.Finished), progress.Expected)
			return
		}
		total := 0
		for _, n := range progress.Winners {
			total += n
		}
		logger.Infof("action: progreso | result: success | cycle_id: %s | ganadores: %d", progress.CycleID, total)
		return
	}

	if len(progress.Finished) == j.lastFinished && active == j.lastSessions {
		return
	}
	j.lastFinished = len(progress.Finished)
	j.lastSessions = active
	logger.Infof("action: progreso | result: in_progress | cycle_id: %s | finalizadas: %d/%d | sesiones: %d",
		progress.CycleID, len(progress.Finished), progress.Expected, active)
}
