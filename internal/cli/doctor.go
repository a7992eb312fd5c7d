package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and provider reachability",
	Long: `Validate the configuration, confirm that credentials are present, and
probe the generation provider and the cache backend.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type doctorCheck struct {
	name string
	ok   bool
	info string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := decodeConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	checks := diagnose(ctx, cfg)
	failed := printChecks(cmd.OutOrStdout(), checks)
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func diagnose(ctx context.Context, cfg *model.Config) []doctorCheck {
	var checks []doctorCheck

	if err := cfg.Validate(); err != nil {
		checks = append(checks, doctorCheck{name: "config", info: err.Error()})
	} else {
		checks = append(checks, doctorCheck{name: "config", ok: true, info: "valid"})
	}

	checks = append(checks,
		credentialCheck("search credential", cfg.Search.APIKey),
		credentialCheck("retrieval credential", cfg.Retrieval.APIKey),
	)

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	switch {
	case err != nil:
		checks = append(checks, doctorCheck{name: "generation provider", info: err.Error()})
	case provider.IsAvailable(ctx):
		checks = append(checks, doctorCheck{name: "generation provider", ok: true, info: fmt.Sprintf("%s reachable (model %s)", provider.Name(), cfg.LLM.Model)})
	default:
		checks = append(checks, doctorCheck{name: "generation provider", info: provider.Name() + " not reachable"})
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			checks = append(checks, doctorCheck{name: "cache", info: err.Error()})
		} else {
			checks = append(checks, doctorCheck{name: "cache", ok: true, info: cfg.Cache.Backend})
			if closer, ok := c.(io.Closer); ok {
				_ = closer.Close()
			}
		}
	}

	return checks
}

func credentialCheck(name, value string) doctorCheck {
	if value == "" {
		return doctorCheck{name: name, info: "missing"}
	}
	return doctorCheck{name: name, ok: true, info: "present"}
}

func printChecks(w io.Writer, checks []doctorCheck) int {
	failed := 0
	for _, c := range checks {
		mark := "✓"
		if !c.ok {
			mark = "✗"
			failed++
		}
		_, _ = fmt.Fprintf(w, "%s %-22s %s\n", mark, c.name, c.info)
	}
	return failed
}
