package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/pipeline"
	"github.com/spigell/job-matcher/internal/sources"
	"github.com/spigell/job-matcher/internal/store"
)

const (
	PromptShortlist   = "Show shortlist"
	PromptDiagnostics = "Show source diagnostics"
	PromptDumpToFile  = "Dump result to file"
	PromptExit        = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShortlist, PromptDiagnostics, PromptDumpToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search the configured boards and rank the postings",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("resume", "", "plain text resume, profile is extracted with AI")
	runCmd.Flags().String("profile", "", "structured profile file (yaml or json) with skills, titles and years of experience")
	runCmd.Flags().String("location", "", "preferred location, \"remote\" matches any remote posting")
	runCmd.Flags().String("job-type", "", "full-time, part-time, contract, internship or remote")
	runCmd.Flags().String("keywords", "", "comma separated keywords")
	runCmd.Flags().String("model", "", "AI model for profile extraction and summaries")
	runCmd.Flags().BoolP("auto-approve", "y", false, "print the shortlist and exit without asking")
	runCmd.Flags().StringP("out", "o", "", "write the result as json to this file")

	viper.BindPFlag("resume", runCmd.Flags().Lookup("resume"))
	viper.BindPFlag("profile", runCmd.Flags().Lookup("profile"))
	viper.BindPFlag("search.location", runCmd.Flags().Lookup("location"))
	viper.BindPFlag("search.job-type", runCmd.Flags().Lookup("job-type"))
	viper.BindPFlag("search.keywords", runCmd.Flags().Lookup("keywords"))
	viper.BindPFlag("search.model-name", runCmd.Flags().Lookup("model"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if err := config.Validate(); err != nil {
		logger.Fatal("validating the config", zap.Error(err))
	}

	logger.Info("starting the job-matcher", zap.String("version", version))

	logger.Debug(fmt.Sprintf("starting with config: \n %s", config.dump()))

	srcs, err := buildSources(ctx, config, logger)
	if err != nil {
		logger.Fatal("building sources", zap.Error(err))
	}

	extractor, summarizer, err := collaborators(ctx, config, config.Search.ModelName, logger)
	if err != nil {
		logger.Warn("skipping AI, summaries fall back to templates", zap.Error(err))
	}

	extracted, err := resolveProfile(ctx, config, extractor, logger)
	if err != nil {
		logger.Fatal("resolving the profile", zap.Error(err))
	}

	p, err := pipeline.New(config.Pipeline, pipeline.Deps{
		Sources:   srcs,
		Authority: sources.Authority(config.Sources),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	res, runErr := p.Run(ctx, extracted, config.Search)
	if res == nil {
		logger.Fatal("run failed", zap.Error(runErr))
	}

	var s ai.Summarizer
	if runErr == nil {
		s = summarizer
	}
	out := pipeline.Compose(ctx, res, s, logger)

	saveHistory(ctx, config, res, out, runErr, logger)

	if runErr != nil {
		logger.Fatal("run failed",
			zap.Error(runErr),
			zap.Any("source_errors", out.Diagnostics.SourceErrors),
		)
	}

	if path := strings.TrimSpace(cmd.Flag("out").Value.String()); path != "" {
		if err := writeOutput(path, out); err != nil {
			logger.Fatal("writing the result", zap.Error(err))
		}
		logger.Info("result written", zap.String("filename", path))
	}

	logger.Info("search finished",
		zap.String("run_id", res.RunID),
		zap.Int("matches", len(out.Jobs)),
		zap.Int("failed_sources", len(out.Diagnostics.SourceErrors)),
	)

	if len(out.Jobs) == 0 || cmd.Flag("auto-approve").Value.String() == "true" {
		printShortlist(out)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, out, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, out pipeline.Output, logger *zap.Logger) error {
	switch action {
	case PromptShortlist:
		printShortlist(out)
		return nil
	case PromptDiagnostics:
		pretty, _ := json.MarshalIndent(out.Diagnostics, "", "  ")
		logger.Info(string(pretty), zap.Int("failed sources count", len(out.Diagnostics.SourceErrors)))
		return nil
	case PromptDumpToFile:
		filename, err := dumpToTmpFile(out)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printShortlist(out pipeline.Output) {
	fmt.Println(out.Summary)
	fmt.Println()
	fmt.Print(pipeline.Report(out))
	if len(out.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range out.Recommendations {
			fmt.Printf("- %s\n", r)
		}
	}
}

func writeOutput(path string, out pipeline.Output) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func dumpToTmpFile(out pipeline.Output) (string, error) {
	f, err := os.CreateTemp("", app+"-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// saveHistory stores the run. Failures only warn since the result is already
// available to the user.
func saveHistory(ctx context.Context, config *Config, res *pipeline.Result, out pipeline.Output, runErr error, logger *zap.Logger) {
	if config.History.Disabled {
		return
	}

	db, err := store.Open(ctx, config.History.Path)
	if err != nil {
		logger.Warn("opening run history", zap.Error(err))
		return
	}
	defer db.Close()

	r := store.Run{
		ID:       res.RunID,
		Location: config.Search.Location,
		JobType:  config.Search.JobType,
		Keywords: config.Search.Keywords,
		Model:    config.Search.ModelName,
		Output:   out,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}

	if err := db.SaveRun(ctx, r); err != nil {
		logger.Warn("saving run history", zap.String("run_id", res.RunID), zap.Error(err))
	}
}
