package constants

// Сообщения, отправляемые в чаты

const (
	// MsgJobTimeout is sent when a job did not finish inside its budget.
	MsgJobTimeout = "⏱ Job timed out after %ds without completing."

	// MsgJobDispatchFailed is sent when the job command could not be started.
	MsgJobDispatchFailed = "❌ Failed to start job: %v"

	// MsgEmptyResponse replaces an empty agent reply.
	MsgEmptyResponse = "⚠️ Empty response from agent"

	// MsgInvocationError prefixes a failed direct invocation.
	MsgInvocationError = "⚠️ Error: %s"

	// MsgPickAgent is the reply to an unaddressed message.
	MsgPickAgent = "Which agent should get this? Reply to one of its messages or start with @name.\nAgents: %s"

	// MsgUnknownAgentHint lists the accepted addressing forms.
	MsgUnknownAgentHint = "Forms: @agent text, agent: text, /agent text"
)

// Сообщения CLI

const (
	// MsgConfigLoadFailed is printed when the config file cannot be loaded.
	MsgConfigLoadFailed = "❌ Failed to load configuration: %v\n"

	// MsgConfigInvalid is printed before the list of validation errors.
	MsgConfigInvalid = "❌ Configuration validation failed:\n"

	// MsgConfigValid is printed by `config validate`.
	MsgConfigValid = "✅ Configuration is valid (%d agents, %d jobs)\n"

	// MsgJobNotFound is printed when trigger/logs cannot find a job.
	MsgJobNotFound = "❌ Job not found: %s\n"

	// MsgNoLogs is printed when a job has no log files yet.
	MsgNoLogs = "No logs for job %s\n"

	// MsgSchedulerRunning is printed when another serve process owns the state file.
	MsgSchedulerRunning = "❌ Scheduler already running (pid %d)\n"
)
