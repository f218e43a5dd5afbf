package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Services injected by main (or by tests) before commands run.
var (
	searchService   driving.SearchService
	registryService driving.RegistryService
	sessionService  driving.SessionService
	metadataService driving.MetadataService
	planService     driving.PlanService

	// searchDefaults fills in per-call options when flags are absent.
	searchDefaults domain.SearchDefaults

	// newTranscript builds the transcript accumulator for one run.
	// The ask command passes the effective output directory.
	newTranscript func(outputDir string) (driven.TranscriptAccumulator, error)

	// registryPath and reloadRegistry let the web companion watch the
	// backing file and pick up external edits.
	registryPath   string
	reloadRegistry func() error
)

// Persistent flag storage.
var (
	flagVerbose      bool
	flagRegistryPath string
)

// Services bundles everything the commands need.
type Services struct {
	Search   driving.SearchService
	Registry driving.RegistryService
	Session  driving.SessionService
	Metadata driving.MetadataService
	Plan     driving.PlanService

	// Defaults fills in per-call search options when flags are absent.
	Defaults domain.SearchDefaults

	// NewTranscript builds a transcript accumulator writing under the
	// given directory; empty lets the environment decide.
	NewTranscript func(outputDir string) (driven.TranscriptAccumulator, error)

	// RegistryPath is the backing registry file.
	RegistryPath string

	// ReloadRegistry re-reads the registry file after external edits.
	ReloadRegistry func() error
}

// SetServices injects the service implementations used by the commands.
func SetServices(s Services) {
	searchService = s.Search
	registryService = s.Registry
	sessionService = s.Session
	metadataService = s.Metadata
	planService = s.Plan
	searchDefaults = s.Defaults
	newTranscript = s.NewTranscript
	registryPath = s.RegistryPath
	reloadRegistry = s.ReloadRegistry
}

// BootstrapOptions carries parsed persistent flags into the service
// builder.
type BootstrapOptions struct {
	// RegistryPath overrides the registry file location ("" = default).
	RegistryPath string
}

// Bootstrap builds the service graph once flags are parsed. Main
// installs it; tests bypass it with SetServices. It runs at most once
// per process.
var Bootstrap func(opts BootstrapOptions) (*Services, error)

var bootstrapped bool

var rootCmd = &cobra.Command{
	Use:   "biji",
	Short: "Get笔记 knowledge-base search client",
	Long: `biji searches your Get笔记 knowledge bases from the command line.

Ask questions against one base, route them automatically by topic, or
broadcast across every base you have configured. Answers stream to the
terminal and accumulate into Markdown transcripts alongside their
citations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		if Bootstrap == nil || bootstrapped {
			return nil
		}
		services, err := Bootstrap(BootstrapOptions{RegistryPath: flagRegistryPath})
		if err != nil {
			return fmt.Errorf("initialise services: %w", err)
		}
		SetServices(*services)
		bootstrapped = true
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagRegistryPath, "config", "", "registry file path override")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command under ctx, so long-lived
// commands like the web companion stop cleanly on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
