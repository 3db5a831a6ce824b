// Package main runs the rental lifecycle scheduler: two periodic sweeps
// over the rental store (overdue transitions, due-soon reminders) plus a
// small operational HTTP surface for triggering sweeps by hand.
package main

import (
	"booklend/app/echoServer"
	opsctrl "booklend/app/echoServer/controller/ops"
	"booklend/app/echoServer/validation"
	"booklend/config"
	mailerrepo "booklend/repository/mailer"
	noticerepo "booklend/repository/notice"
	rentalrepo "booklend/repository/rental"
	"booklend/service/lifecycle"
	"booklend/service/notifier"
	"booklend/service/scheduler"
	"booklend/util/database"
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
)

func main() {

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	rr := rentalrepo.New(db)
	nr := noticerepo.New(db)
	mt := mailerrepo.NewMailjet(cfg.MailjetPublicKey, cfg.MailjetPrivateKey, cfg.MailSender)

	// services
	sender := notifier.New(mt, log, cfg.SendMaxAttempts, cfg.SendRetryBase)
	sweeper := lifecycle.NewSweeper(rr, nr, sender, lifecycle.PlainTemplates{}, cfg.DueSoonWindow, log)

	// scheduler
	sched := scheduler.New(sweeper, log, cfg.OverdueEvery, cfg.DueSoonEvery)
	if err := sched.Start(); err != nil {
		log.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// controllers
	v := validator.New()
	opsC := &opsctrl.Controller{Sched: sched, V: v, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	echoServer.Register(e, echoServer.C{Ops: opsC})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	slog.Info("starting server", "port", port, "env", cfg.Env)

	e.Logger.Fatal(e.Start(":" + port))
}
