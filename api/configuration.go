package api

import "time"

type Configuration struct {
	Env                 string
	AppName             string
	Port                string
	RequestLoggingLevel string
	// MaxBodySize caps request bodies; gate payloads are tiny.
	MaxBodySize int64
	// ExitTimeout bounds the synchronous exit path, which may call out to a
	// ledger or the card processor.
	ExitTimeout    time.Duration
	DefaultTimeout time.Duration
	// CardWebhookSecret signs card-processor webhook deliveries.
	CardWebhookSecret string
}
