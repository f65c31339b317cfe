package constants

// DefaultEnvPath is the default path to the .env file
const DefaultEnvPath = "./.env"

// DefaultConfigPath is the default path to the ocalt.toml file
const DefaultConfigPath = "./ocalt.toml"

// DefaultHomeDir is where ocalt keeps its state unless configured otherwise
const DefaultHomeDir = "~/.ocalt"

// DefaultStateFile is the ledger of job runs
const DefaultStateFile = DefaultHomeDir + "/state.json"

// DefaultLogsDir holds one log file per job invocation
const DefaultLogsDir = DefaultHomeDir + "/logs"

// DefaultRelayDir is the root of the inter-agent drop folder
const DefaultRelayDir = DefaultHomeDir + "/dropbox"

// DefaultTelegramRoutingFile persists the Telegram reply routing map
const DefaultTelegramRoutingFile = DefaultHomeDir + "/telegram-routes.json"

// DefaultDiscordRoutingFile persists the Discord reply routing map
const DefaultDiscordRoutingFile = DefaultHomeDir + "/discord-routes.json"

// DefaultDiscordChannelMapFile caches agent -> Discord channel ids
const DefaultDiscordChannelMapFile = DefaultHomeDir + "/discord-channels.json"

// AgentInstructionsFile is provisioned in every agent working directory
const AgentInstructionsFile = "CLAUDE.md"
