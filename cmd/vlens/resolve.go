package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/resolver"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func resolveCmd() *cobra.Command {
	var (
		filePath string
		userID   string
	)

	cmd := &cobra.Command{
		Use:   "resolve [text]...",
		Short: "Resolve raw vendor strings from the command line",
		Long: `Resolve one or more raw vendor strings. Strings may be passed as
arguments or read one-per-line from a file with --file. Without --user
the results are persisted as global mappings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if filePath != "" {
				fileTexts, err := readVendorFile(filePath)
				if err != nil {
					return err
				}
				texts = append(texts, fileTexts...)
			}
			if len(texts) == 0 {
				return fmt.Errorf("no vendor text given: pass arguments or --file")
			}

			ctx := cmd.Context()
			logger := slog.Default()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			oracleResolver, err := initOracle(logger)
			if err != nil {
				return fmt.Errorf("failed to initialize oracle: %w", err)
			}
			defer func() { _ = oracleResolver.Close() }()

			engine := resolver.New(store, oracleResolver, logger)

			bar := progressbar.NewOptions(len(texts),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Resolving vendors..."),
			)

			var stats model.BatchResolutionStats
			stats.Total = len(texts)

			for _, text := range texts {
				result, err := engine.Resolve(ctx, userID, text, nil)
				_ = bar.Add(1)
				if err != nil {
					stats.Failed++
					logger.Warn("resolution failed", "text", text, "error", err)
					continue
				}

				stats.Resolved++
				if result.CacheHit {
					stats.Cached++
				} else {
					stats.AIResolved++
				}

				fmt.Printf("%-40s → %s (%.2f, %s)\n",
					truncate(text, 40), result.ResolvedName, result.Confidence, result.Source)
			}

			fmt.Printf("\nResolved %d/%d (%d cached, %d via oracle, %d failed)\n",
				stats.Resolved, stats.Total, stats.Cached, stats.AIResolved, stats.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "file with one raw vendor string per line")
	cmd.Flags().StringVar(&userID, "user", "", "owner scope for persisted mappings (default: global)")

	return cmd
}

// readVendorFile loads raw vendor strings, one per line, skipping blanks.
func readVendorFile(path string) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var texts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return texts, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
