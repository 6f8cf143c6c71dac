package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides overwrites fields whose SCALPER_* variable is set and
// non-empty, so credentials can stay out of config files.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Exchange.Name, "SCALPER_EXCHANGE")
	setStr(&cfg.Exchange.BaseURL, "SCALPER_BASE_URL")
	setStr(&cfg.Exchange.APIKey, "SCALPER_API_KEY")
	setStr(&cfg.Exchange.APISecret, "SCALPER_API_SECRET")
	setBool(&cfg.Exchange.Testnet, "SCALPER_TESTNET")
	setStr(&cfg.Exchange.Quote, "SCALPER_QUOTE")

	setStringSlice(&cfg.Strategy.Instruments, "SCALPER_INSTRUMENTS")
	setFloat64(&cfg.Risk.TradeCapital, "SCALPER_TRADE_CAPITAL")
	setStr(&cfg.Schedule.PollInterval, "SCALPER_POLL_INTERVAL")

	setStr(&cfg.Store.Type, "SCALPER_STORE_TYPE")
	setStr(&cfg.Store.Path, "SCALPER_STORE_PATH")
	setStr(&cfg.Store.Redis.Addr, "SCALPER_REDIS_ADDR")
	setStr(&cfg.Store.Redis.Password, "SCALPER_REDIS_PASSWORD")
	setInt(&cfg.Store.Redis.DB, "SCALPER_REDIS_DB")
	setBool(&cfg.Store.Redis.Lock, "SCALPER_REDIS_LOCK")
	setStr(&cfg.Store.S3.Endpoint, "SCALPER_S3_ENDPOINT")
	setStr(&cfg.Store.S3.Region, "SCALPER_S3_REGION")
	setStr(&cfg.Store.S3.Bucket, "SCALPER_S3_BUCKET")
	setStr(&cfg.Store.S3.AccessKey, "SCALPER_S3_ACCESS_KEY")
	setStr(&cfg.Store.S3.SecretKey, "SCALPER_S3_SECRET_KEY")

	setStr(&cfg.Journal.Type, "SCALPER_JOURNAL_TYPE")
	setStr(&cfg.Metrics.Addr, "SCALPER_METRICS_ADDR")
	setStr(&cfg.Log.Level, "SCALPER_LOG_LEVEL")
	setStr(&cfg.Log.Format, "SCALPER_LOG_FORMAT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
