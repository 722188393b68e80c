package global

import (
	"context"

	"github.com/robfig/cron/v3"
)

// LotteryServer is the part of the running server shared with the web layer.
type LotteryServer interface {
	GetCron() *cron.Cron
	GetCtx() context.Context
}

var lotteryServer LotteryServer

func SetLotteryServer(s LotteryServer) {
	lotteryServer = s
}

func GetLotteryServer() LotteryServer {
	return lotteryServer
}
