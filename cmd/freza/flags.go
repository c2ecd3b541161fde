package main

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	BaseDir string
	Debug   bool
}

// InvokeFlags holds flags for the invoke command.
type InvokeFlags struct {
	ThreadID string
}

// ChannelFlags holds flags for the channel command.
type ChannelFlags struct {
	ThreadID string
	Agent    string
}

// RegisterAgentFlags holds flags for the register-agent command.
type RegisterAgentFlags struct {
	SystemPrompt string
}

// RegisterChannelFlags holds flags for the register-channel command.
type RegisterChannelFlags struct {
	SystemPrompt string
	DefaultAgent string
}

// WebUIFlags holds flags for the webui command.
type WebUIFlags struct {
	Host          string
	Port          int
	Daemon        bool
	Stop          bool
	Status        bool
	GenerateToken bool
	Foreground    bool
}
