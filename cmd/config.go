package main

import "time"

type Config struct {
	RedisAddr     string `env:"REDIS_ADDR,required=true"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	Host string `env:"HOST,default=localhost"`
	Port int    `env:"PORT,default=8080"`

	LogLevel string `env:"LOG_LEVEL,default=info"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	MailboxCapacity int64         `env:"MAILBOX_CAPACITY,default=10"`
	MailboxTTL      time.Duration `env:"MAILBOX_TTL,default=10m"`
	ReadStateTTL    time.Duration `env:"READ_STATE_TTL,default=720h"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT,default=5s"`
	PollLimit       int           `env:"POLL_LIMIT,default=10"`

	BulkPublishRate  float64 `env:"BULK_PUBLISH_RATE,default=20"`
	BulkPublishBurst int     `env:"BULK_PUBLISH_BURST,default=1"`

	StreamLifetime time.Duration `env:"STREAM_LIFETIME,default=30m"`

	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	RestartMaxInterval time.Duration `env:"RESTART_MAX_INTERVAL,default=30s"`

	RoomIdleTimeout  time.Duration `env:"ROOM_IDLE_TIMEOUT,default=1h"`
	RoomReapInterval time.Duration `env:"ROOM_REAP_INTERVAL,default=5m"`
}
