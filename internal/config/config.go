package config

import (
	"fmt"
	"os"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	JWTSecret string // JWT署名シークレット

	OmiseSecretKey string // 決済プロバイダの秘密鍵
	OmiseAPIBase   string // 決済プロバイダAPIのベースURL
	RedirectURI    string // QR決済完了後の戻り先URL

	KafkaBrokers string // カンマ区切り。空ならイベント発行は無効
	RedisAddr    string // 空ならwebhook重複チェックはDBのみ

	SweepInterval time.Duration // 期限切れ支払いの照合間隔
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: getenv("PORT", "8080"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		OmiseSecretKey: os.Getenv("OMISE_SECRET_KEY"),
		OmiseAPIBase:   getenv("OMISE_API_BASE", "https://api.omise.co"),
		RedirectURI:    os.Getenv("REDIRECT_URI"),

		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.OmiseSecretKey == "" {
		return Config{}, fmt.Errorf("OMISE_SECRET_KEY is required")
	}

	interval := getenv("SWEEP_INTERVAL", "1m")
	d, err := time.ParseDuration(interval)
	if err != nil {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be a duration: %w", err)
	}
	cfg.SweepInterval = d

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
