package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"onboarding-api/internal/config"
	"onboarding-api/internal/log"
	"onboarding-api/internal/services"
)

const filePermReadWrite = 0o600

// store is the part of FirestoreService the toolbox drives.
type store interface {
	BackfillTokenIndex(ctx context.Context) (int, error)
	PruneDanglingRepositoryRefs(ctx context.Context, dryRun bool) (int, error)
	Dump(ctx context.Context) (map[string][]map[string]interface{}, error)
}

// connectFunc opens the store and returns a function that closes it.
type connectFunc func(ctx context.Context) (store, func(), error)

func main() {
	if err := newRootCmd(connectFirestore).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(connect connectFunc) *cobra.Command {
	root := &cobra.Command{
		Use:          "toolbox",
		Short:        "Maintenance commands for the onboarding API's Firestore data",
		SilenceUsage: true,
	}

	root.AddCommand(
		newBackfillCmd(connect),
		newPruneCmd(connect),
		newDumpCmd(connect),
	)
	return root
}

func newBackfillCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-token-index",
		Short: "Write missing onboarding_tokens entries for existing sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, closeStore, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			written, err := s.BackfillTokenIndex(ctx)
			if err != nil {
				return fmt.Errorf("backfill token index: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d token index entries\n", written)
			return nil
		},
	}
}

func newPruneCmd(connect connectFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune-dangling-repositories",
		Short: "Remove deleted repositories from onboarding sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, closeStore, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			changed, err := s.PruneDanglingRepositoryRefs(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("prune dangling repositories: %w", err)
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d sessions reference deleted repositories (dry run, nothing changed)\n", changed)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d sessions\n", changed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report affected sessions without modifying them")
	return cmd
}

func newDumpCmd(connect connectFunc) *cobra.Command {
	var (
		outputFile string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:   "dump-firestore",
		Short: "Export users, the token index and admin sub-collections as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, closeStore, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			dump, err := s.Dump(ctx)
			if err != nil {
				return fmt.Errorf("dump firestore: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				file, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermReadWrite)
				if err != nil {
					return fmt.Errorf("open output file: %w", err)
				}
				defer func() { _ = file.Close() }()
				out = file
			}

			if err := writeDump(out, dump, pretty); err != nil {
				return err
			}
			if outputFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Dump written to %s\n", outputFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outputFile, "output", "", "Write output to file instead of stdout")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

func writeDump(w io.Writer, dump map[string][]map[string]interface{}, pretty bool) error {
	encoder := json.NewEncoder(w)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(dump); err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	return nil
}

func connectFirestore(ctx context.Context) (store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	log.Setup(os.Stderr, cfg.LogLevel, false)

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	slog.Info("Connecting to Firestore", "project_id", cfg.FirestoreProjectID, "database_id", cfg.FirestoreDatabaseID)
	client, err := firestore.NewClientWithDatabase(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create Firestore client: %w", err)
	}

	closeClient := func() {
		if err := client.Close(); err != nil {
			slog.Error("Error closing Firestore client", "error", err)
		}
	}
	return services.NewFirestoreService(client), closeClient, nil
}
