package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deepcision/deepcision/internal/agents"
	core "github.com/deepcision/deepcision/internal/core"
	prov "github.com/deepcision/deepcision/internal/providers"
	ds "github.com/deepcision/deepcision/internal/providers/deepseek"
	or "github.com/deepcision/deepcision/internal/providers/openrouter"
	tv "github.com/deepcision/deepcision/internal/providers/tavily"
)

// app bundles everything a subcommand needs: config, providers, roles, the
// store-backed cache and the engine on top.
type app struct {
	cfg      prov.Config
	registry *prov.Registry
	searcher prov.Searcher
	roles    *agents.Manager
	store    *core.Store
	cache    *core.Cache
	engine   *core.Engine
}

// Resolve the application from flags and config
func resolveApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := core.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	reg := prov.NewRegistry()
	if cfg.Providers.DeepSeek.APIKey != "" {
		reg.Register(ds.New(cfg))
	}
	if cfg.Providers.OpenRouter.APIKey != "" {
		p, err := or.New(cfg)
		if err != nil {
			return nil, err
		}
		reg.Register(p)
	}

	var searcher prov.Searcher
	if cfg.Providers.Tavily.APIKey != "" {
		searcher = tv.New(cfg)
	}

	roles := agents.NewManager(cfg.Roles.TemplatePath)
	if err := roles.Load(); err != nil {
		return nil, err
	}

	store, err := core.NewStore(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	cache, err := core.NewCache(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		registry: reg,
		searcher: searcher,
		roles:    roles,
		store:    store,
		cache:    cache,
		engine:   core.NewEngine(cfg, reg, searcher, roles, cache, store),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("close store")
	}
}

// Ask a single question
func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question to a provider or role",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			model, _ := cmd.Flags().GetString("model")
			role, _ := cmd.Flags().GetString("role")
			system, _ := cmd.Flags().GetString("system")
			maxTokens, _ := cmd.Flags().GetInt("max-tokens")
			noCache, _ := cmd.Flags().GetBool("no-cache")

			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")

			var answer *core.Answer
			if role != "" {
				answer, err = a.engine.AskRole(cmd.Context(), role, question)
			} else {
				messages := []prov.Message{}
				if system != "" {
					messages = append(messages, prov.Message{Role: "system", Content: system})
				}
				messages = append(messages, prov.Message{Role: "user", Content: question})

				req := prov.ChatRequest{Model: model, Messages: messages, MaxTokens: maxTokens}
				if cmd.Flags().Changed("temperature") {
					t, _ := cmd.Flags().GetFloat64("temperature")
					t = prov.ClampTemperature(t)
					req.Temperature = &t
				}
				answer, err = a.engine.Ask(cmd.Context(), provider, req, noCache)
			}
			if err != nil {
				return err
			}

			fmt.Println(answer.Content)
			marker := ""
			if answer.Cached {
				marker = " (cached)"
			}
			fmt.Printf("\n-- %s/%s, %d tokens, %s%s\n",
				answer.Provider, answer.Model, answer.Usage.TotalTokens, answer.Duration.Round(time.Millisecond), marker)
			return nil
		},
	}
	cmd.Flags().String("provider", "", "provider name (defaults to configured default)")
	cmd.Flags().String("model", "", "model name (provider-specific)")
	cmd.Flags().String("role", "", "ask through a configured role")
	cmd.Flags().String("system", "", "system prompt")
	cmd.Flags().Float64("temperature", 0.7, "sampling temperature (0-2)")
	cmd.Flags().Int("max-tokens", 0, "completion token limit")
	cmd.Flags().Bool("no-cache", false, "bypass the response cache")
	return cmd
}

// Run a panel decision
func newDecideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide [question]",
		Short: "Fan a question out to a panel of roles and synthesize a decision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleNames, _ := cmd.Flags().GetStringSlice("roles")

			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			decision, err := a.engine.Decide(cmd.Context(), strings.Join(args, " "), roleNames)
			if err != nil {
				return err
			}

			for _, answer := range decision.Answers {
				if answer.Err != nil {
					fmt.Printf("== %s: failed: %v\n\n", answer.Role, answer.Err)
					continue
				}
				fmt.Printf("== %s (%s/%s)\n%s\n\n", answer.Role, answer.Provider, answer.Model, answer.Content)
			}
			fmt.Printf("== decision %s\n%s\n", decision.ID, decision.Summary)
			return nil
		},
	}
	cmd.Flags().StringSlice("roles", nil, "roles to consult (defaults to all configured roles)")
	return cmd
}

// Research a question with web search grounding
func newResearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "research [query]",
		Aliases: []string{"search"},
		Short:   "Answer a question grounded in web search results",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.engine.Research(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(answer.Content)
			return nil
		},
	}
}

// List configured roles
func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List configured reasoning roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, name := range a.roles.Names() {
				role, err := a.roles.Get(name)
				if err != nil {
					continue
				}
				provider := role.Provider
				if provider == "" {
					provider = a.cfg.Providers.Default
				}
				fmt.Printf("%s\t%s\t%s\n", role.Name, provider, role.Description)
			}
			return nil
		},
	}
}

// Create the providers command
func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			check, _ := cmd.Flags().GetBool("check")

			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Printf("default: %s\n", a.cfg.Providers.Default)
			for _, name := range a.registry.Names() {
				if !check {
					fmt.Printf("registered: %s\n", name)
					continue
				}
				p, err := a.registry.Get(name)
				if err != nil {
					continue
				}
				if err := p.HealthCheck(cmd.Context()); err != nil {
					fmt.Printf("registered: %s (unhealthy: %v)\n", name, err)
				} else {
					fmt.Printf("registered: %s (healthy)\n", name)
				}
			}
			if a.searcher != nil {
				fmt.Println("search: tavily")
			}
			return nil
		},
	}
	cmd.Flags().Bool("check", false, "run a health check against each provider")
	return cmd
}

// Cache inspection and maintenance
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache hit counters and footprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("enabled: %v\n", stats.Enabled)
			fmt.Printf("hits: %d  misses: %d\n", stats.Hits, stats.Misses)
			fmt.Printf("memory entries: %d\n", stats.MemEntries)
			fmt.Printf("stored entries: %d (%s)\n", stats.Entries, humanize.Bytes(uint64(stats.SizeBytes)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Drop every cached response",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.cache.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("purged %d entries\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.cache.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("swept %d expired entries\n", n)
			return nil
		},
	})

	return cmd
}

// List recent decisions
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			decisions, err := a.store.ListDecisions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, d := range decisions {
				fmt.Printf("%s\t%s\t%s\t%s\n", d.CreatedAt.Format("2006-01-02 15:04"), d.ID, d.Status, d.Question)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "number of decisions to show")
	return cmd
}

// Initialize configuration and environment
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "deepcision initialization command. Run this the first time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			path, err := core.WriteDefaultConfig(dir)
			if err != nil {
				return err
			}
			fmt.Printf("wrote default config to %s\n", path)
			fmt.Println("add your API keys to secrets.env next to it, or export DEEPSEEK_API_KEY / OPENROUTER_API_KEY / TAVILY_API_KEY")
			return nil
		},
	}
}
