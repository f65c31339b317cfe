package constants

import "time"

// DefaultTimeoutSeconds is the job timeout used when neither the job nor its agent sets one
const DefaultTimeoutSeconds = 120

// DefaultPollInterval is how often the runner checks a job log for the completion marker
const DefaultPollInterval = 3 * time.Second

// DefaultCompletionMarker is the sentinel line appended to a job log after the agent exits
const DefaultCompletionMarker = "__OCALT_JOB_COMPLETE__"

// DefaultTmuxSession is the shared tmux session that hosts every job window
const DefaultTmuxSession = "ocalt"

// DefaultReconnectDelay is the pause before a chat listener reconnects
const DefaultReconnectDelay = 5 * time.Second

// DefaultRoutingLimit bounds the outbound message -> agent routing map
const DefaultRoutingLimit = 500

// DefaultRelayMaxAgeHours is how far back the drop folder is read for shared context
const DefaultRelayMaxAgeHours = 24

// DefaultMetricsListen is the address of the Prometheus endpoint
const DefaultMetricsListen = "127.0.0.1:9464"

// DefaultSendAttempts is how many times a chat API send is tried on temporary errors
const DefaultSendAttempts = 3

// DefaultSendTimeout bounds a single chat API send
const DefaultSendTimeout = 10 * time.Second

// MaxInlineErrorChars bounds agent invocation errors echoed back into a chat
const MaxInlineErrorChars = 500

// TelegramMessageLimit and DiscordMessageLimit are the per-message length limits
const (
	TelegramMessageLimit = 4096
	DiscordMessageLimit  = 2000
)
