package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ananthjv/pixlift/internal/auth"
	"github.com/ananthjv/pixlift/internal/client"
	"github.com/ananthjv/pixlift/internal/metadata"
	"github.com/ananthjv/pixlift/internal/model"
	"github.com/ananthjv/pixlift/internal/retry"
	"github.com/ananthjv/pixlift/internal/workflow"
)

var (
	apiURL string
	token  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pixlift: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pixlift",
		Short: "PixLift upload client",
		Long: `PixLift CLI uploads an image with a short-lived credential, waits for the
optimizer to finish, and reads back the resulting metadata.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&apiURL, "api", envOr("PIXLIFT_API", "http://localhost:8080"), "PixLift API base URL")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PIXLIFT_TOKEN"), "Session token (defaults to PIXLIFT_TOKEN)")
	cmd.AddCommand(
		newUploadCmd(),
		newStatusCmd(),
		newListCmd(),
		newTokenCmd(),
	)
	return cmd
}

func newUploadCmd() *cobra.Command {
	var (
		file         string
		quality      int
		keepOriginal bool
		pollInterval time.Duration
		pollAttempts int
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload an image and wait for the optimized metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			cl := client.New(apiURL, token)
			machine := workflow.New(cl, cl, cl, retry.Policy{
				Interval:    pollInterval,
				MaxAttempts: pollAttempts,
			})
			req := model.NewUploadRequest("", "", quality, keepOriginal)
			fmt.Fprintf(cmd.OutOrStdout(), "uploading %s...\n", filepath.Base(file))
			rec, err := machine.Submit(ctx, req, filepath.Base(file), data)
			if err != nil {
				var v *workflow.ValidationError
				if errors.As(err, &v) {
					return fmt.Errorf("%s (nothing was uploaded)", v.Reason)
				}
				if errors.Is(err, workflow.ErrTimeoutExhausted) {
					return fmt.Errorf("asset %s uploaded but not processed in time; try `pixlift status %s` later",
						machine.AssetKey(), machine.AssetKey())
				}
				return err
			}
			printRecord(cmd, rec)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Image to upload (jpeg or png)")
	cmd.Flags().IntVarP(&quality, "quality", "q", model.DefaultQuality, "Encode quality 1-100 (out of range values are clamped)")
	cmd.Flags().BoolVar(&keepOriginal, "keep-original", false, "Also produce a 1:1 resolution rendition")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 1500*time.Millisecond, "Delay between completion polls")
	cmd.Flags().IntVar(&pollAttempts, "poll-attempts", 15, "Completion poll attempt budget")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <asset-key>",
		Short: "Show the metadata record for an asset key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := client.New(apiURL, token)
			rec, err := cl.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not processed yet")
				return nil
			}
			printRecord(cmd, rec)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every owner's records (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := client.New(apiURL, token)
			records, err := cl.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			// The store returns records unordered; newest-first is our job.
			metadata.SortByCreatedDesc(records)
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s  %8.2f KB  %7s  %s\n",
					rec.CreatedAt.Format(time.RFC3339), rec.Owner, rec.OriginalSizeKB, rec.SavingsPercent, rec.AssetKey)
			}
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		identity string
		role     string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a dev session token (requires PIXLIFT_SIGNING_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("PIXLIFT_SIGNING_SECRET")
			if secret == "" {
				return errors.New("PIXLIFT_SIGNING_SECRET is not set")
			}
			resolver := auth.NewResolver([]byte(secret))
			fmt.Fprintln(cmd.OutOrStdout(), resolver.Token(identity, model.ParseRole(role), time.Now().Add(ttl)))
			return nil
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "Identity to embed in the token")
	cmd.Flags().StringVar(&role, "role", "user", "Role claim: admin, user, or guest")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}

func printRecord(cmd *cobra.Command, rec *model.MetadataRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "asset      %s\n", rec.AssetKey)
	fmt.Fprintf(out, "owner      %s\n", rec.Owner)
	fmt.Fprintf(out, "file       %s\n", rec.FileName)
	fmt.Fprintf(out, "original   %.2f KB\n", rec.OriginalSizeKB)
	for name, kb := range rec.OutputVariantsKB {
		fmt.Fprintf(out, "  %-12s %.2f KB\n", name, kb)
	}
	fmt.Fprintf(out, "savings    %s\n", rec.SavingsPercent)
	fmt.Fprintf(out, "quality    %d\n", rec.QualityUsed)
	fmt.Fprintf(out, "took       %.2f ms\n", rec.ProcessingTimeMs)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
