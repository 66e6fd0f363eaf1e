package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/discovery"
	"github.com/jmorante/job-hunter/internal/logger"
	"github.com/jmorante/job-hunter/internal/preferences"
	"github.com/jmorante/job-hunter/internal/store"
)

const (
	PromptReview   = "Review top matches"
	PromptFavorite = "Mark a job as favorite"
	PromptExport   = "Dump jobs to file"
	PromptExit     = "Exit"
	PromptBack     = "back"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReview, PromptFavorite, PromptExport, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one discovery pass: search, score and store matching jobs",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("yes", "y", false, "skip the interactive review after the run")
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

	logger.Info("starting the job hunter", zap.String("version", resolveVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	prefs, err := preferences.Load(config.PreferencesFile)
	if err != nil {
		logger.Fatal(
			"loading preferences",
			zap.Error(err),
			zap.String("hint", "create the preferences file or point preferences-file at it"),
		)
	}

	deps, err := buildCollaborators(ctx, config, logger)
	if err != nil {
		logger.Fatal("building collaborators", zap.Error(err))
	}
	defer deps.Close()

	if err := ensureDir(config.LockFile); err != nil {
		logger.Fatal("creating lock directory", zap.Error(err))
	}
	lock := flock.New(config.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		logger.Fatal("acquiring discovery lock", zap.Error(err))
	}
	if !locked {
		logger.Fatal("another discovery run is in progress", zap.String("lock", config.LockFile))
	}
	defer lock.Unlock()

	runID, err := deps.store.CreateRun(ctx)
	if err != nil {
		logger.Fatal("recording the run", zap.Error(err))
	}

	result, err := deps.pipeline.Run(ctx, prefs, nil)
	if err != nil {
		logger.Fatal("discovery run failed", zap.Error(err))
	}

	saved := 0
	for _, job := range result.Jobs {
		inserted, err := deps.store.InsertJob(ctx, job)
		if err != nil {
			logger.Warn("saving job failed", zap.String("external_id", job.ExternalID), zap.Error(err))
			continue
		}
		if inserted {
			saved++
		}
	}

	if err := deps.store.FinishRun(ctx, runID, result.Counters, saved); err != nil {
		logger.Warn("finishing run record failed", zap.String("run_id", runID), zap.Error(err))
	}

	logger.Info("discovery run finished",
		zap.String("run_id", runID),
		zap.Int("found", result.Counters.Found),
		zap.Int("unique", result.Counters.Unique),
		zap.Int("prefiltered", result.Counters.Prefiltered),
		zap.Int("scored", result.Counters.Scored),
		zap.Int("surfaced", result.Counters.Surfaced),
		zap.Int("saved", saved),
	)

	if len(result.Jobs) == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs above the score threshold"))
		return
	}

	printSummary(result.Jobs)

	if cmd.Flag("yes").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, deps.store, result, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, st *store.Store, result *discovery.Result, logger *zap.Logger) error {
	switch action {
	case PromptReview:
		printSummary(result.Jobs)
		return nil
	case PromptFavorite:
		return favorite(ctx, st, result, logger)
	case PromptExport:
		filename, err := dumpToTmpFile(result.Jobs)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "done reviewing"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func favorite(ctx context.Context, st *store.Store, result *discovery.Result, logger *zap.Logger) error {
	items := make([]string, 0, len(result.Jobs)+1)
	for _, job := range result.Jobs {
		items = append(items, fmt.Sprintf("%.2f %s / %s", job.Score.OverallScore, job.Title, job.Company))
	}

	pick := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: append(items, PromptBack),
	}

	idx, selected, err := pick.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	job := result.Jobs[idx]
	stored, err := st.GetJobByExternalID(ctx, job.ExternalID)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("job %s is not stored", job.ExternalID)
	}

	if err := st.UpdateJobStatus(ctx, stored.ID, store.StatusFavorited); err != nil {
		return err
	}

	logger.Info("marked job as favorite", zap.Int64("id", stored.ID), zap.String("title", stored.Title))
	return nil
}

func printSummary(jobs []discovery.ScoredCandidate) {
	fmt.Printf("\n%-6s %-45s %-25s %s\n", "SCORE", "TITLE", "COMPANY", "LOCATION")
	for _, job := range jobs {
		fmt.Printf("%-6.2f %-45s %-25s %s\n",
			job.Score.OverallScore, clip(job.Title, 45), clip(job.Company, 25), job.Location)
	}
	fmt.Println()
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

func dumpToTmpFile(jobs []discovery.ScoredCandidate) (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jobs); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
