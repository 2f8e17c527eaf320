package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	FrontendURL string `env:"FRONTEND_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	KakaoPay KakaoPay `envPrefix:"KAKAO_PAY_"`
	Billing  Billing  `envPrefix:"BILLING_"`
	Auth     Auth     `envPrefix:"AUTH_"`
}

type KakaoPay struct {
	APIHost         string `env:"API_HOST" envDefault:"https://open-api.kakaopay.com"`
	SecretKey       string `env:"SECRET_KEY"`
	CID             string `env:"CID"`
	SubscriptionCID string `env:"CID_SUBSCRIPTION"`

	ApprovalURL string `env:"APPROVAL_URL"`
	CancelURL   string `env:"CANCEL_URL"`
	FailURL     string `env:"FAIL_URL"`
}

type Billing struct {
	// Cron schedule for the recurring billing run; once daily, shortly after midnight.
	Schedule string `env:"SCHEDULE" envDefault:"5 0 * * *"`
	// Monthly subscription price in KRW.
	Amount int64 `env:"AMOUNT" envDefault:"6900"`
	// How long a prepared payment may wait for the redirect round-trip.
	PendingTTLMinutes int `env:"PENDING_TTL_MINUTES" envDefault:"30"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
