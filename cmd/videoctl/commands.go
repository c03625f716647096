package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sorastudio/internal/pricing"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := ctx.client().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(statuses) > 0 {
				keep := jobs[:0]
				for _, job := range jobs {
					for _, s := range statuses {
						if strings.EqualFold(string(job.Status), s) {
							keep = append(keep, job)
							break
						}
					}
				}
				jobs = keep
			}
			out := cmd.OutOrStdout()
			if ctx.asJSON {
				return writeJSON(out, jobs)
			}
			renderJobs(out, jobs, time.Now(), isTerminal(out))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.asJSON {
				return writeJSON(out, job)
			}
			renderJob(out, job, isTerminal(out))
			return nil
		},
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var params submitParams

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(params.Prompt) == "" {
				return errors.New("--prompt is required")
			}
			job, err := ctx.client().Submit(cmd.Context(), params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.asJSON {
				return writeJSON(out, job)
			}
			fmt.Fprintf(out, "Submitted %s (%s), estimated cost %s\n", job.Name, job.ID, pricing.FormatCost(job.Cost))
			return nil
		},
	}

	cmd.Flags().StringVarP(&params.Prompt, "prompt", "p", "", "Text prompt")
	cmd.Flags().StringVarP(&params.Model, "model", "m", "sora-2", "Model (sora-2 or sora-2-pro)")
	cmd.Flags().StringVarP(&params.Resolution, "resolution", "r", "1280x720", "Output size, e.g. 1280x720")
	cmd.Flags().IntVarP(&params.DurationSeconds, "duration", "d", 4, "Length in seconds (4, 8 or 12)")
	cmd.Flags().StringVarP(&params.ImagePath, "image", "i", "", "Reference image (jpeg, png or webp)")
	return cmd
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Change a video's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd.OutOrStdout(), job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", job.ID, job.Name)
			return nil
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a video here and on the provider",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <id>",
		Short: "Reconcile one video with the provider now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.asJSON {
				return writeJSON(out, job)
			}
			fmt.Fprintf(out, "%s is %s\n", job.ID, statusLabel(job.Status, isTerminal(out)))
			return nil
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var variant string
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Save a finished video or its thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = args[0] + ".mp4"
				if variant == "thumbnail" {
					output = args[0] + ".webp"
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := ctx.client().Download(cmd.Context(), args[0], variant, w)
			if err != nil {
				if output != "-" {
					_ = os.Remove(output)
				}
				return err
			}
			if output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s to %s\n", humanize.Bytes(uint64(n)), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "", "Content variant (empty for video, or thumbnail)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file, - for stdout")
	return cmd
}

func newCostCommand(ctx *commandContext) *cobra.Command {
	var model, resolution string
	var duration int

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Show the rate table or quote one configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			out := cmd.OutOrStdout()
			if model == "" {
				table, err := client.Rates(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.asJSON {
					return writeJSON(out, table)
				}
				renderRates(out, table)
				return nil
			}

			quote, err := client.Quote(cmd.Context(), model, resolution, duration)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(out, quote)
			}
			renderQuote(out, quote)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to quote; omit for the full table")
	cmd.Flags().StringVarP(&resolution, "resolution", "r", "1280x720", "Output size")
	cmd.Flags().IntVarP(&duration, "duration", "d", 4, "Length in seconds")
	return cmd
}
