package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous runs or show one of them",
	Run: func(cmd *cobra.Command, _ []string) {
		history(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 10, "how many runs to list")
	historyCmd.Flags().String("id", "", "show the shortlist of this run")
}

func history(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	path := viper.GetString("history.path")
	db, err := store.Open(ctx, path)
	if err != nil {
		logger.Fatal("opening run history", zap.String("path", path), zap.Error(err))
	}
	defer db.Close()

	if id := strings.TrimSpace(cmd.Flag("id").Value.String()); id != "" {
		r, err := db.GetRun(ctx, id)
		if err != nil {
			logger.Fatal("getting a run", zap.Error(err))
		}
		printShortlist(r.Output)
		return
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		logger.Fatal("listing runs", zap.Error(err))
	}

	if len(runs) == 0 {
		logger.Info("no runs recorded yet", zap.String("path", path))
		return
	}

	for _, r := range runs {
		fmt.Println(formatRun(r))
	}
}

func formatRun(r store.Run) string {
	d := r.Output.Diagnostics
	status := "ok"
	if r.Error != "" {
		status = "failed: " + r.Error
	}

	best := "-"
	if len(r.Output.Jobs) > 0 {
		best = fmt.Sprintf("%s (%.2f)", r.Output.Jobs[0].Title, r.Output.Jobs[0].MatchScore)
	}

	return fmt.Sprintf("%s  %s  location=%q type=%q keywords=%q  candidates=%d deduped=%d matches=%d best=%s  %s",
		r.ID,
		r.CreatedAt.Local().Format("2006-01-02 15:04"),
		r.Location, r.JobType, r.Keywords,
		d.TotalCandidates, d.TotalAfterDedup, len(r.Output.Jobs), best,
		status,
	)
}

