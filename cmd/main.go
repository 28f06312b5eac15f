package main

import (
	"fmt"
	"net/http"
	"time"

	"shikoyatbot/bot/internal/api/handler"
	"shikoyatbot/bot/internal/complaint"
	"shikoyatbot/bot/internal/config"
	"shikoyatbot/bot/internal/report"
	"shikoyatbot/bot/internal/scheduler"
	"shikoyatbot/bot/internal/session"
	"shikoyatbot/bot/internal/storage"
	"shikoyatbot/bot/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func initLogger() {
	log.SetFormatter(&log.JSONFormatter{
		FieldMap: log.FieldMap{
			log.FieldKeyTime: "@timestamp",
			log.FieldKeyMsg:  "message",
		},
	})
	log.SetLevel(log.InfoLevel)
}

func main() {
	initLogger()
	log.Println("Starting Shikoyat Bot...")

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
	if err := config.InitConfig(); err != nil {
		// Configuration errors are fatal; they must never reach end users.
		log.WithError(err).Fatal("invalid configuration")
	}
	cfg := config.Conf

	db, err := gorm.Open(sqlite.Open(cfg.Storage.Path), &gorm.Config{})
	if err != nil {
		log.WithError(err).Fatalf("failed to open sqlite store at %s", cfg.Storage.Path)
	}
	if err := storage.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	store := storage.NewStorageService(db)

	loc := cfg.Location()
	nowFn := func() time.Time { return time.Now().In(loc) }

	complaintSvc := complaint.NewService(store, complaint.Options{
		Roster:     cfg.Employees,
		MinTextLen: cfg.Intake.MinTextLen,
		Now:        nowFn,
	})
	reporter := report.NewReporter(store)
	sessions := session.NewStore(cfg.SessionTTL())

	botService, err := telegram.NewBotService(cfg, store, complaintSvc, reporter, sessions)
	if err != nil {
		log.WithError(err).Fatal("failed to start telegram bot")
	}

	morningLabel := fmt.Sprintf("%02d:%02d", cfg.Report.MorningHour, cfg.Report.MorningMinute)
	eveningLabel := fmt.Sprintf("%02d:%02d", cfg.Report.EveningHour, cfg.Report.EveningMinute)
	cronRunner, err := scheduler.Start(loc,
		scheduler.Times{
			MorningHour:   cfg.Report.MorningHour,
			MorningMinute: cfg.Report.MorningMinute,
			EveningHour:   cfg.Report.EveningHour,
			EveningMinute: cfg.Report.EveningMinute,
		},
		scheduler.Jobs{
			MorningDigest: func() { botService.SendDailyDigest(morningLabel) },
			EveningDigest: func() { botService.SendDailyDigest(eveningLabel) },
			Rollover:      botService.SendRolloverAnnouncement,
			AlertCheck:    botService.SendAlertIfDue,
			Sweep:         func() { sessions.Sweep() },
		})
	if err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}
	defer cronRunner.Stop()

	go botService.Run()

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	handler.NewHandler(reporter, nowFn).Register(r)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.API.Port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Infof("ops endpoints listening on %s", server.Addr)
	log.Fatal(server.ListenAndServe())
}
