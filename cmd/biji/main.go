// Command biji is the Get笔记 knowledge-base search client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anomot/get-biji-knowledge-skill/internal/adapters/driven/api"
	configfile "github.com/anomot/get-biji-knowledge-skill/internal/adapters/driven/config/file"
	registryfile "github.com/anomot/get-biji-knowledge-skill/internal/adapters/driven/registry/file"
	sessionfile "github.com/anomot/get-biji-knowledge-skill/internal/adapters/driven/session/file"
	"github.com/anomot/get-biji-knowledge-skill/internal/adapters/driven/transcript"
	"github.com/anomot/get-biji-knowledge-skill/internal/adapters/driving/cli"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/services"
)

func main() {
	cli.Bootstrap = buildServices

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// buildServices assembles the service graph over the file-backed stores
// in ~/.config/biji. It runs once, after the root command parses its
// persistent flags.
func buildServices(opts cli.BootstrapOptions) (*cli.Services, error) {
	registryStore, err := registryfile.NewRegistryStore(opts.RegistryPath)
	if err != nil {
		return nil, err
	}
	sessionStore, err := sessionfile.NewSessionStore("")
	if err != nil {
		return nil, err
	}
	configStore, err := configfile.NewConfigStore("")
	if err != nil {
		return nil, err
	}
	probeStore, err := configfile.NewProbeStore("")
	if err != nil {
		return nil, err
	}

	settings := configStore.AppSettings()
	client := api.NewClient(api.Config{
		BaseURL:       settings.API.BaseURL,
		StreamTimeout: time.Duration(settings.API.StreamTimeoutSeconds) * time.Second,
		RecallTimeout: time.Duration(settings.API.RecallTimeoutSeconds) * time.Second,
	})

	resolver := services.NewResolver(registryStore)
	search := services.NewSearchService(client, registryStore, sessionStore, resolver, settings.Search)
	registry := services.NewRegistryService(registryStore)
	session := services.NewSessionService(sessionStore)
	metadata := services.NewMetadataService(search, registry, probeStore)

	global, err := registryStore.Settings()
	if err != nil {
		return nil, err
	}
	planBook, err := transcript.NewPlanBook(transcript.ResolveOutputDir(global.OutputDir))
	if err != nil {
		return nil, err
	}
	plan := services.NewPlanService(search, registryStore, planBook)

	return &cli.Services{
		Search:   search,
		Registry: registry,
		Session:  session,
		Metadata: metadata,
		Plan:     plan,
		Defaults: settings.Search,
		NewTranscript: func(outputDir string) (driven.TranscriptAccumulator, error) {
			return transcript.NewAccumulator(transcript.ResolveOutputDir(outputDir))
		},
		RegistryPath:   registryStore.Path(),
		ReloadRegistry: registryStore.Load,
	}, nil
}
