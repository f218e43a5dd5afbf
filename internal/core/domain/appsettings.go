package domain

// Default client settings.
const (
	// DefaultBaseURL is the remote API root.
	DefaultBaseURL = "https://open-api.biji.com/getnote/openapi"

	// DefaultStreamTimeoutSeconds bounds one streaming search call.
	DefaultStreamTimeoutSeconds = 120

	// DefaultRecallTimeoutSeconds bounds one recall call.
	DefaultRecallTimeoutSeconds = 60

	// DefaultMaxRetries is the rate-limit retry budget per request.
	DefaultMaxRetries = 1

	// DefaultTopK is the recall result cap.
	DefaultTopK = 10
)

// APISettings holds remote endpoint configuration.
type APISettings struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// StreamTimeoutSeconds bounds one streaming search call.
	StreamTimeoutSeconds int

	// RecallTimeoutSeconds bounds one recall call.
	RecallTimeoutSeconds int
}

// SearchDefaults holds per-call defaults the CLI applies when flags are
// not given.
type SearchDefaults struct {
	// DeepThink requests deep reasoning by default.
	DeepThink bool

	// MaxRetries is the rate-limit retry budget.
	MaxRetries int

	// TopK is the recall result cap.
	TopK int
}

// AppSettings holds all client-level settings kept outside the registry.
type AppSettings struct {
	// API holds remote endpoint settings.
	API APISettings

	// Search holds per-call defaults.
	Search SearchDefaults
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		API: APISettings{
			BaseURL:              DefaultBaseURL,
			StreamTimeoutSeconds: DefaultStreamTimeoutSeconds,
			RecallTimeoutSeconds: DefaultRecallTimeoutSeconds,
		},
		Search: SearchDefaults{
			DeepThink:  true,
			MaxRetries: DefaultMaxRetries,
			TopK:       DefaultTopK,
		},
	}
}
