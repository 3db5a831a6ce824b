package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

func Load() App {
	cfg := App{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: must("DATABASE_URL"),
		Env:         getenv("APP_ENV", "dev"),

		OverdueEvery:  getdur("OVERDUE_SWEEP_EVERY", time.Hour),
		DueSoonEvery:  getdur("DUE_SOON_SWEEP_EVERY", 30*time.Minute),
		DueSoonWindow: getdur("DUE_SOON_WINDOW", 24*time.Hour),

		SendMaxAttempts: getint("SEND_MAX_ATTEMPTS", 3),
		SendRetryBase:   getdur("SEND_RETRY_BASE", time.Second),

		MailSender:        must("MAIL_SENDER"),
		MailjetPublicKey:  must("MAILJET_PUBLIC_KEY"),
		MailjetPrivateKey: must("MAILJET_PRIVATE_KEY"),
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Error("invalid duration env, using default", "key", k, "value", v, "default", def)
		return def
	}
	return d
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Error("invalid integer env, using default", "key", k, "value", v, "default", def)
		return def
	}
	return n
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("required env missing", "key", k)
		panic("missing env " + k)
	}
	return v
}
