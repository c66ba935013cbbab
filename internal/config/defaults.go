package config

import "time"

// Default configuration values.
const (
	DefaultServerPort = 67
	DefaultClientPort = 68

	DefaultLogLevel    = "info"
	DefaultPIDFile     = "/run/resolvdhcpd.pid"
	DefaultBackendPath = "/var/lib/resolvdhcpd/backend.db"

	DefaultUnauthorizedClientTimeout = 60 * time.Second
	DefaultMisbehavingClientTimeout  = 150 * time.Second
	DefaultSuspendThreshold          = 10

	DefaultNegativeCacheTTL = 30 * time.Second

	DefaultScriptConcurrency   = 4
	DefaultScriptTimeout       = 10 * time.Second
	DefaultRADIUSTimeout       = 2 * time.Second
	DefaultWebhookRetries      = 3
	DefaultWebhookRetryBackoff = 2 * time.Second
)
