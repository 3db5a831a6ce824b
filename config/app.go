package config

import "time"

type App struct {
	Port        string `env:"APP_PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	Env         string `env:"APP_ENV" default:"dev"`

	// Sweep cadences and the due-soon lookahead window.
	OverdueEvery  time.Duration `env:"OVERDUE_SWEEP_EVERY" default:"1h"`
	DueSoonEvery  time.Duration `env:"DUE_SOON_SWEEP_EVERY" default:"30m"`
	DueSoonWindow time.Duration `env:"DUE_SOON_WINDOW" default:"24h"`

	// Notification delivery policy.
	SendMaxAttempts int           `env:"SEND_MAX_ATTEMPTS" default:"3"`
	SendRetryBase   time.Duration `env:"SEND_RETRY_BASE" default:"1s"`

	MailSender        string `env:"MAIL_SENDER,required"`
	MailjetPublicKey  string `env:"MAILJET_PUBLIC_KEY,required"`
	MailjetPrivateKey string `env:"MAILJET_PRIVATE_KEY,required"`
}
