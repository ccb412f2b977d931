package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config carries every policy literal as a named, versionable parameter.
// Amounts and rates are parsed as fixed-point decimals, never floats.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DepositMin         decimal.Decimal `env:"DEPOSIT_MIN" envDefault:"130"`
	DepositMax         decimal.Decimal `env:"DEPOSIT_MAX" envDefault:"50000"`
	WithdrawalMin      decimal.Decimal `env:"WITHDRAWAL_MIN" envDefault:"130"`
	WithdrawalMax      decimal.Decimal `env:"WITHDRAWAL_MAX" envDefault:"50000"`
	DailyWithdrawalMax decimal.Decimal `env:"DAILY_WITHDRAWAL_MAX" envDefault:"50000"`

	TDSRate       decimal.Decimal `env:"TDS_RATE" envDefault:"0.18"`
	WithdrawalFee decimal.Decimal `env:"WITHDRAWAL_FEE" envDefault:"10"`

	WithdrawalOpenHour  int    `env:"WITHDRAWAL_OPEN_HOUR" envDefault:"9"`
	WithdrawalCloseHour int    `env:"WITHDRAWAL_CLOSE_HOUR" envDefault:"18"`
	Timezone            string `env:"TIMEZONE" envDefault:"Asia/Kolkata"`

	ReferralL1Rate decimal.Decimal `env:"REFERRAL_L1_RATE" envDefault:"0.16"`
	ReferralL2Rate decimal.Decimal `env:"REFERRAL_L2_RATE" envDefault:"0.04"`
	ReferralL3Rate decimal.Decimal `env:"REFERRAL_L3_RATE" envDefault:"0.01"`

	CASMaxAttempts    int `env:"CAS_MAX_ATTEMPTS" envDefault:"5"`
	CASBackoffBaseMS  int `env:"CAS_BACKOFF_BASE_MS" envDefault:"20"`
	CommissionRetries int `env:"COMMISSION_RETRIES" envDefault:"5"`

	AccrualCron string `env:"ACCRUAL_CRON" envDefault:"0 0 * * *"`

	IdempotencyTTLHours int `env:"IDEMPOTENCY_TTL_HOURS" envDefault:"24"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
