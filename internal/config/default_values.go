package config

const (
	DefaultCallTimeoutMS   = 30000
	DefaultProbeTimeoutMS  = 3000
	DefaultSlowThresholdMS = 8000

	DefaultMaxHistory         = 50
	DefaultMaxInputChars      = 2000
	DefaultHistoryTokenBudget = 3000
	DefaultSessionTTLMinutes  = 60
	DefaultQueueDepth         = 4
	DefaultMaxConcurrent      = 8

	DefaultFileMaxResults = 10
	DefaultMailMaxResults = 5

	DefaultRecordSeconds = 10
	DefaultWhisperTimeMS = 120000

	DefaultStatusCron = "@every 5m"
	DefaultWebAddr    = "127.0.0.1:8765"
)

const (
	ModeOnline  = "online"
	ModeOffline = "offline"
)

// FallbackReasons fallback.on 允许的取值
// FallbackReasons lists the values accepted by fallback.on
var FallbackReasons = []string{"timeout", "unreachable", "malformed", "error"}
