package llm

import "time"

// Config selects the provider topology and the retry discipline of the
// gateway. ProviderMode accepts local_only, remote_only, or hybrid; hybrid
// tries the local model first and fails over to the remote one.
type Config struct {
	ProviderMode string `envconfig:"PROVIDER_MODE" default:"hybrid"`

	LocalBaseURL string `envconfig:"LOCAL_BASE_URL" default:"http://localhost:11434"`
	LocalModel   string `envconfig:"LOCAL_MODEL" default:"qwen2.5:7b-instruct"`

	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" default:"2"`
	AttemptTimeout time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"45s"`
}

const (
	ModeLocalOnly  = "local_only"
	ModeRemoteOnly = "remote_only"
	ModeHybrid     = "hybrid"
)
