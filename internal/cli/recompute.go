package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cie-scoring-service/internal/config"
)

// NewRecomputeCmd forces a recomputation of one subject's results.
func NewRecomputeCmd(configPath *string) *cobra.Command {
	var subjectID string
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute the cached results of a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecompute(cmd.Context(), *configPath, subjectID)
		},
	}
	cmd.Flags().StringVar(&subjectID, "subject", "", "subject id to recompute")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func runRecompute(ctx context.Context, configPath, subjectID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("recompute needs postgres.url: the in-memory store has nothing to recompute")
	}

	svc, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := svc.gradebook.RecomputeSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
