package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lottery/config"
	"lottery/database"
	"lottery/job"
	"lottery/logger"
	"lottery/server"
	"lottery/service"
	"lottery/util/common"
	"lottery/web"
	"lottery/web/global"

	"github.com/google/uuid"
)

func runLottery(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	logger.InitLogger(logger.ParseLevel(string(cfg.Log.Level)))
	logger.Infof("Starting %v %v", config.GetName(), config.GetVersion())
	logger.Debugf("action: config | result: success | port: %d | listen_backlog: %d | max_batch_size: %d | agencias: %d | winning_number: %d",
		cfg.Server.Port, cfg.Server.ListenBacklog, cfg.Server.MaxBatchSize, cfg.Lottery.Agencies, cfg.Lottery.WinningNumber)

	if err := database.InitDB(cfg.DB.Path); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}

	cycleID := uuid.NewString()
	bets := service.NewBetService(nil, cycleID)
	draw := service.NewDrawService(bets, service.WinningNumber(cfg.Lottery.WinningNumber))
	coordinator := service.NewCoordinator(cycleID, cfg.Lottery.Agencies, draw)
	logger.Infof("action: ciclo | result: success | ciclo: %s", cycleID)
	coordinator.OnDraw(service.RecordDraw)

	lotteryServer := server.NewServer(cfg.Server, bets, coordinator)
	global.SetLotteryServer(lotteryServer)
	lotteryServer.GetCron().AddJob("@every 5s", job.NewDrawProgressJob(coordinator, lotteryServer))

	var tgbot *service.Tgbot
	if cfg.Tgbot.Enabled {
		tgbot, err = service.NewTgbot(cfg.Tgbot.Token, cfg.Tgbot.AdminIds)
		if err != nil {
			logger.Warning("create tgbot failed:", err)
		} else {
			tgbot.Start()
			coordinator.OnDraw(tgbot.NotifyDraw)
			if cfg.Tgbot.CpuThreshold > 0 {
				lotteryServer.GetCron().AddJob("@every 10s", job.NewCheckCpuJob(tgbot, cfg.Tgbot.CpuThreshold))
			}
		}
	}

	if err := lotteryServer.Start(); err != nil {
		log.Fatalf("Error starting lottery server: %v", err)
	}

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg.Web.Listen, service.NewStatusService(coordinator, lotteryServer), coordinator)
		if err := webServer.Start(); err != nil {
			logger.Error("start web server failed:", err)
			webServer = nil
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("action: signal_handling | result: success | signal: %v", sig)
	case <-lotteryServer.Done():
	}

	stopped := make(chan error, 1)
	go func() {
		stopped <- lotteryServer.Stop()
	}()

	var serverErr error
	select {
	case serverErr = <-stopped:
		coordinator.WaitHooks()
	case sig := <-sigCh:
		logger.Warningf("action: signal_handling | result: forced | signal: %v | sesiones: %d", sig, lotteryServer.ActiveSessions())
	}

	var webErr error
	if webServer != nil {
		webErr = webServer.Stop()
	}
	if tgbot != nil {
		tgbot.Stop()
	}
	if err := common.Combine(serverErr, webErr, database.CloseDB()); err != nil {
		logger.Error("shutdown failed:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [arguments]\n\n", config.GetName())
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "    run        run the lottery server")
	fmt.Fprintln(os.Stderr, "    version    print the version")
}

func main() {
	if len(os.Args) < 2 {
		runLottery("")
		return
	}

	var configPath string
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runCmd.StringVar(&configPath, "config", "", "path to a TOML config file")

	switch os.Args[1] {
	case "run":
		if err := runCmd.Parse(os.Args[2:]); err != nil {
			fmt.Println(err)
			return
		}
		runLottery(configPath)
	case "version":
		fmt.Println(config.GetVersion())
	case "-h", "--help", "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}
