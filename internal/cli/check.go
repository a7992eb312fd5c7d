package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/pipeline"
)

var (
	checkJSON    bool
	checkJSONOut string
	checkMDOut   string
)

var checkCmd = &cobra.Command{
	Use:   "check <claim>",
	Short: "Check a single claim",
	Long: `Run one claim through the pipeline and print the verdict.

Example:
  claimcheck check "Pune is in the state of Goa in Europe"
  claimcheck check --json "Water boils at 100 degrees Celsius at sea level"
  claimcheck check -v --md-out verdict.md "The Eiffel Tower is in Rome"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the full result as JSON")
	checkCmd.Flags().StringVar(&checkJSONOut, "json-out", "", "also write the JSON result to this file")
	checkCmd.Flags().StringVar(&checkMDOut, "md-out", "", "also write a Markdown report to this file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	res, err := a.processor.Run(ctx, strings.Join(args, " "))
	if err != nil {
		return userError(err)
	}

	renderer := pipeline.NewRenderer(verbose)
	if checkJSON {
		if err := renderer.RenderJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		renderer.RenderSummary(cmd.OutOrStdout(), res)
	}

	return renderer.RenderFiles(res, checkJSONOut, checkMDOut)
}

// userError keeps provider details out of the message unless verbose
func userError(err error) error {
	if verbose {
		return err
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return fmt.Errorf("%s", apperr.Public(err))
	}
	return err
}
