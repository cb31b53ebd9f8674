package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/ai"
	"github.com/spigell/zhipin-responder/internal/ai/gemini"
	"github.com/spigell/zhipin-responder/internal/filtering"
	"github.com/spigell/zhipin-responder/internal/logger"
	"github.com/spigell/zhipin-responder/internal/matching"
	"github.com/spigell/zhipin-responder/internal/responder"
	"github.com/spigell/zhipin-responder/internal/secrets"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

const (
	PromptYes                 = "Yes"
	PromptNo                  = "No"
	PromptBack                = "back"
	PromptReportByEmployers   = "Report by employers"
	PromptManualOutreach      = "Greet listings in manual mode"
	PromptAppendToExcludeFile = "Append all listings to exclude file"
	PromptListingsToFile      = "Dump listings to file"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo, PromptReportByEmployers, PromptManualOutreach, PromptListingsToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search listings and greet the recruiters of the matching ones",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation if found suitable listings")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with listings to exclude. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
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
	config = normalize(config)

	logger.Info("starting the zhipin-responder", zap.String("version", resolveVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	profile := config.Profile
	if profile == nil || len(profile.Skills) == 0 {
		logger.Fatal("profile with at least one skill is required in config")
	}

	deps, cleanup, err := sessionDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing session", zap.Error(err))
	}
	defer cleanup()

	session := responder.New(sessionOptions(config), deps)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("closing session", zap.Error(err))
		}
	}()

	if err := startSession(ctx, session, config, logger); err != nil {
		logger.Error("session is not usable", zap.Error(err))
		return
	}

	listings, err := getListings(ctx, session, config, logger)
	if err != nil {
		logger.Error("getting listings", zap.Error(err))
		return
	}

	for _, listing := range listings.Items {
		if _, err := session.Score(ctx, listing, profile); err != nil {
			logger.Error("scoring listings", zap.Error(err))
			return
		}
	}

	filters := prepareFilters(ctx, session, config, logger)
	listings, err = filters.RunFilters(ctx, listings)
	if err != nil {
		logger.Error("filtering listings", zap.Error(err))
		return
	}

	listings = selectBest(listings, config.Apply.MaxCount)
	if listings.Len() == 0 {
		logger.Info("no suitable listings found")
		return
	}

	logger.Info("listings selected for outreach", zap.Int("count", listings.Len()))

	if ok, _ := cmd.Flags().GetBool("auto-approve"); ok {
		if err := outreach(ctx, session, logger, config, listings); err != nil {
			logger.Error("outreach", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Error("prompt failed", zap.Error(err))
			return
		}

		err = handleAction(ctx, action, session, logger, config, listings)
		switch {
		case errors.Is(err, errExit):
			return
		case err != nil:
			logger.Error("handling action", zap.String("action", action), zap.Error(err))
			return
		case action == PromptYes:
			return
		}
	}
}

func handleAction(ctx context.Context, action string, session *responder.Session, logger *zap.Logger, config *Config, listings *zhipin.Listings) error {
	switch action {
	case PromptYes:
		return outreach(ctx, session, logger, config, listings)
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptManualOutreach:
		return manualOutreach(ctx, session, logger, config, listings)
	case PromptReportByEmployers:
		pretty, _ := json.MarshalIndent(listings.ReportByEmployer(), "", "  ")
		logger.Info(string(pretty), zap.Int("listings count", listings.Len()))
		return nil
	case PromptListingsToFile:
		filename, err := listings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func manualOutreach(ctx context.Context, session *responder.Session, logger *zap.Logger, config *Config, listings *zhipin.Listings) error {
	for {
		items := make([]string, 0, listings.Len()+2)

		for _, l := range listings.Items {
			label := fmt.Sprintf("%s %s / %s / %d / %s",
				l.ID, l.Title, l.Company, l.Score, l.URL(),
			)

			items = append(items, label)
		}

		excludeFile := viper.GetString("exclude-file")
		if excludeFile != "" && listings.Len() != 0 {
			items = append(items, PromptAppendToExcludeFile)
		}

		listingPrompt := promptui.Select{
			Label: "Choose a listing and press ENTER",
			Items: append(items, PromptBack),
		}

		_, selected, err := listingPrompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptBack:
			return nil
		case PromptAppendToExcludeFile:
			excluded, err := zhipin.GetExcludedListingsFromFile(excludeFile)
			if err != nil {
				return err
			}

			excluded.Append(listings.ToExcluded())

			if err = excluded.ToFile(excludeFile); err != nil {
				return err
			}

			logger.Info("appended to exclude file", zap.String("filename", excludeFile))

			listings.Exclude(zhipin.ListingIDField, excluded.IDs())
		default:
			id := strings.Split(selected, " ")[0]

			listing := listings.FindByID(id)
			if listing == nil {
				return fmt.Errorf("there is no such listing id %s", id)
			}

			if err = outreach(ctx, session, logger, config, &zhipin.Listings{Items: []*zhipin.Listing{listing}}); err != nil {
				return err
			}

			listings.Exclude(zhipin.ListingIDField, []string{id})
		}
	}
}

func outreach(ctx context.Context, session *responder.Session, logger *zap.Logger, config *Config, listings *zhipin.Listings) error {
	if strings.TrimSpace(config.Apply.Message) == "" {
		logger.Info("using the built-in greeting for listings without an AI message",
			zap.String("hint", "specify message in apply section"),
		)
	}

	report, err := session.OutreachSelected(ctx, listings, config.Profile, config.Apply.Message)
	if report != nil {
		logger.Info("outreach finished",
			zap.Int("total", report.Total),
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
			zap.Int("remaining", session.Status().Remaining),
		)
	}
	return err
}

// selectBest orders listings by score and keeps at most maxCount of them.
func selectBest(listings *zhipin.Listings, maxCount int) *zhipin.Listings {
	ranked := matching.Rank(matching.FromListings(listings), 0, maxCount)

	selected := &zhipin.Listings{Items: make([]*zhipin.Listing, 0, len(ranked))}
	for _, r := range ranked {
		selected.Items = append(selected.Items, r.Listing)
	}
	return selected
}

func newAIMatcher(ctx context.Context, cfg *AIConfig, base *zap.Logger) (ai.Matcher, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithCommonFields(base, "gemini", cfg.Gemini.Model).With(
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	minScore := cfg.MinScore
	if minScore < 0 {
		minScore = 0
	}

	matcherLogger := logger.WithCommonFields(base, "gemini", cfg.Gemini.Model).With(
		zap.Float64("minimum_fit_score", minScore),
	)

	return gemini.NewMatcher(generator, minScore, cfg.Gemini.MaxLogLength, matcherLogger), nil
}

// getListings returns the listings that match the search section of config.
func getListings(ctx context.Context, session *responder.Session, config *Config, logger *zap.Logger) (*zhipin.Listings, error) {
	results, err := session.Search(ctx, config.Search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Info("getting listings", zap.Int("count", results.Len()))
	return results, nil
}

func prepareFilters(ctx context.Context, session *responder.Session, config *Config, logger *zap.Logger) *filtering.Filtering {
	steps := []filtering.Filter{
		filtering.NewMissingID(logger),
		filtering.NewMinScore(config.Apply.MinScore, logger),
		filtering.NewExcludedEmployers(config.Apply.Exclude.Employers, logger),
		filtering.NewInactiveRecruiters(config.Apply.Exclude.InactiveStatuses, logger),
		filtering.NewExcludeFile(config.ExcludeFile, logger),
	}

	aiFilter, err := prepareAIFilter(ctx, session, config, logger)
	if err != nil {
		logger.Warn("skipping AI filter", zap.Error(err))
		return filtering.New(steps, logger)
	}

	return filtering.New(append(steps, aiFilter), logger)
}

func prepareAIFilter(ctx context.Context, session *responder.Session, config *Config, logger *zap.Logger) (filtering.Filter, error) {
	if !config.AI.Enabled {
		return filtering.NewAIFit(false, nil), nil
	}

	if config.AI.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when ai filter is enabled")
	}

	matcher, err := newAIMatcher(ctx, config.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("building ai matcher: %w", err)
	}

	deps := &filtering.AIFitFilterDeps{
		Logger:      logger,
		Matcher:     matcher,
		Profile:     config.Profile,
		Fetcher:     session,
		ExcludeFile: config.ExcludeFile,
	}

	return filtering.NewAIFit(true, deps), nil
}
