package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agora-protocol/agora-go/pkg/config"
	"github.com/agora-protocol/agora-go/pkg/llms"
	"github.com/agora-protocol/agora-go/pkg/mcptools"
	"github.com/agora-protocol/agora-go/pkg/observability"
	"github.com/agora-protocol/agora-go/pkg/receiver"
	"github.com/agora-protocol/agora-go/pkg/schema"
)

// CheckCmd runs the protocol feasibility checker against a protocol
// document, using the tools exposed by the configured MCP servers.
type CheckCmd struct {
	Protocol string `arg:"" name:"protocol" help:"Protocol document path." type:"path"`

	Provider string `help:"LLM provider override (openai, anthropic, gemini, ollama)."`
	Model    string `help:"Model name override."`
}

func (c *CheckCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	document, err := os.ReadFile(c.Protocol)
	if err != nil {
		return fmt.Errorf("failed to read protocol document: %w", err)
	}

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Provider != "" {
		cfg.LLM.Provider = config.LLMProvider(c.Provider)
		cfg.LLM.Model = ""
		cfg.LLM.APIKey = ""
		cfg.LLM.SetDefaults()
	}
	if c.Model != "" {
		cfg.LLM.Model = c.Model
	}
	if err := cfg.LLM.Validate(); err != nil {
		return err
	}

	if cfg.Observability.Tracing.Enabled {
		if _, err := observability.InitGlobalTracer(ctx, observability.TracerConfig{
			Enabled:      true,
			EndpointURL:  cfg.Observability.Tracing.Endpoint,
			SamplingRate: cfg.Observability.Tracing.SamplingRate,
		}); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}
	if cfg.Observability.Metrics.Enabled {
		metrics, err := observability.InitMetrics(true)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		observability.SetGlobalMetrics(metrics)
	}

	toolformers := llms.NewToolformerRegistry()
	toolformer, err := toolformers.CreateFromConfig("default", &cfg.LLM)
	if err != nil {
		return err
	}

	var tools []*schema.Tool
	closeSources := func() {}
	if len(cfg.MCPServers) > 0 {
		serverConfigs := make([]mcptools.ServerConfig, len(cfg.MCPServers))
		for i, server := range cfg.MCPServers {
			serverConfigs[i] = mcptools.ServerConfig{
				Name:    server.Name,
				Command: server.Command,
				Args:    server.Args,
				Env:     server.Env,
				Filter:  server.Filter,
			}
		}

		discovered, sources, err := mcptools.DiscoverAll(ctx, serverConfigs)
		if err != nil {
			return fmt.Errorf("failed to discover MCP tools: %w", err)
		}
		closeSources = func() {
			for _, source := range sources {
				_ = source.Close()
			}
		}
		defer closeSources()
		tools = discovered
	}

	checker := receiver.NewChecker(toolformer)
	adequate, err := checker.Check(ctx, string(document), tools)
	if err != nil {
		return err
	}

	if adequate {
		fmt.Println("adequate: the protocol can be implemented with the available tools")
		return nil
	}
	fmt.Println("inadequate: the protocol cannot be implemented with the available tools")

	// os.Exit skips deferred cleanup, so shut the MCP subprocesses down
	// first.
	closeSources()
	cancel()
	os.Exit(1)
	return nil
}
