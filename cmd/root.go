package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	campaignApp "github.com/AzielCF/az-fbm/campaign/application"
	campaignRepo "github.com/AzielCF/az-fbm/campaign/repository"
	"github.com/AzielCF/az-fbm/classification"
	"github.com/AzielCF/az-fbm/classification/providers"
	coreconfig "github.com/AzielCF/az-fbm/core/config"
	coreDB "github.com/AzielCF/az-fbm/core/database"
	customersApp "github.com/AzielCF/az-fbm/customers/application"
	customersRepo "github.com/AzielCF/az-fbm/customers/repository"
	domainCustomer "github.com/AzielCF/az-fbm/domains/customer"
	domainDelivery "github.com/AzielCF/az-fbm/domains/delivery"
	domainGroup "github.com/AzielCF/az-fbm/domains/group"
	domainPage "github.com/AzielCF/az-fbm/domains/page"
	domainSchedule "github.com/AzielCF/az-fbm/domains/schedule"
	domainWebhook "github.com/AzielCF/az-fbm/domains/webhook"
	"github.com/AzielCF/az-fbm/infrastructure/facebook"
	"github.com/AzielCF/az-fbm/infrastructure/valkey"
	"github.com/AzielCF/az-fbm/pkg/crypto"
	"github.com/AzielCF/az-fbm/pkg/msgworker"
	"github.com/AzielCF/az-fbm/pkg/utils"
	"github.com/AzielCF/az-fbm/usecase"
)

var (
	// Usecase
	scheduleUsecase domainSchedule.IScheduleUsecase
	groupUsecase    domainGroup.IGroupUsecase
	deliveryUsecase domainDelivery.IDeliveryUsecase
	customerUsecase domainCustomer.ICustomerUsecase
	pageUsecase     domainPage.IPageUsecase
	webhookUsecase  domainWebhook.IWebhookUsecase

	// Engine
	scheduler *campaignApp.Scheduler
	evalPool  *msgworker.EvalWorkerPool
	vkClient  *valkey.Client
	serverID  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-fbm",
	Short: "Facebook page messaging automation over http",
	Long: `Backend for automating Facebook Page messaging: scheduled campaigns,
inactivity re-engagement, customer tiers and delivery tracking over a http api.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

var (
	flagPort         string
	flagDebug        bool
	flagBasicAuth    []string
	flagDBDriver     string
	flagDBName       string
	flagPollInterval time.Duration
	flagWorkers      int
)

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&flagBasicAuth,
		"basic-auth", "b",
		nil,
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagDBDriver,
		"db-driver", "",
		"",
		`database driver --db-driver <string> | example: --db-driver="sqlite" or --db-driver="postgres"`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagDBName,
		"db-name", "",
		"",
		`database file path (sqlite) or database name (postgres) --db-name <string> | example: --db-name="storages/app.db"`,
	)
	rootCmd.PersistentFlags().DurationVarP(
		&flagPollInterval,
		"poll-interval", "",
		0,
		`scheduler poll interval --poll-interval <duration> | example: --poll-interval=15s`,
	)
	rootCmd.PersistentFlags().IntVarP(
		&flagWorkers,
		"eval-workers", "",
		0,
		`number of concurrent schedule evaluation workers --eval-workers <number> | example: --eval-workers=20`,
	)
}

// initEnvConfig resolves the layered configuration: env defaults first,
// then any explicit cobra flags on top.
func initEnvConfig() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	if flagPort != "" {
		cfg.App.Port = flagPort
	}
	if flagDebug {
		cfg.App.Debug = true
	}
	if len(flagBasicAuth) > 0 {
		cfg.App.BasicAuth = flagBasicAuth
	}
	if envBasicAuth := viper.GetString("app_basic_auth"); envBasicAuth != "" && len(cfg.App.BasicAuth) == 0 {
		cfg.App.BasicAuth = strings.Split(envBasicAuth, ",")
	}
	if flagDBDriver != "" {
		cfg.Database.Driver = flagDBDriver
	}
	if flagDBName != "" {
		cfg.Database.Name = flagDBName
	}
	if flagPollInterval > 0 {
		cfg.Scheduler.PollInterval = flagPollInterval
	}
	if flagWorkers > 0 {
		cfg.Worker.Size = flagWorkers
	}
}

func initApp() {
	cfg := coreconfig.Global

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := utils.CreateFolder(cfg.Paths.Storages, cfg.Paths.Statics); err != nil {
		logrus.Errorln(err)
	}

	if cfg.App.TokenEncryptionKey != "" {
		if err := crypto.SetEncryptionKey(cfg.App.TokenEncryptionKey); err != nil {
			logrus.Fatalf("invalid token encryption key: %v", err)
		}
	} else {
		logrus.Warn("[APP] APP_TOKEN_ENCRYPTION_KEY not set, page tokens are stored in plain text")
	}

	ctx := context.Background()

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("failed to open database: %v", err)
	}
	coreDB.GlobalDB = db

	// Repositories
	scheduleRepo := campaignRepo.NewScheduleGormRepository(db)
	ledgerRepo := campaignRepo.NewDedupLedgerGormRepository(db)
	deliveryRepo := campaignRepo.NewDeliveryLogGormRepository(db)
	activityRepo := campaignRepo.NewActivityGormRepository(db)
	groupRepo := campaignRepo.NewGroupGormRepository(db)
	customerRepo := customersRepo.NewCustomerGormRepository(db)
	pageRepo := customersRepo.NewPageGormRepository(db)

	for _, init := range []func(context.Context) error{
		scheduleRepo.InitSchema,
		ledgerRepo.InitSchema,
		deliveryRepo.InitSchema,
		activityRepo.InitSchema,
		groupRepo.InitSchema,
		customerRepo.InitSchema,
		pageRepo.InitSchema,
	} {
		if err := init(ctx); err != nil {
			logrus.Fatalf("failed to migrate schema: %v", err)
		}
	}

	// Valkey is optional; without it the tick lock and activity cache
	// degrade to single-node behavior.
	serverID = utils.GetPersistentServerID(os.Getenv("SERVER_ID"), cfg.Paths.Storages)
	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Warnf("[VALKEY] Unavailable, continuing without distributed lock and cache: %v", err)
			vkClient = nil
		} else {
			logrus.Infof("[VALKEY] Connected as %s", serverID)
		}
	}

	// Graph collaborator
	graphClient := facebook.NewClient(facebook.Config{
		BaseURL:           cfg.Facebook.GraphBaseURL,
		Version:           cfg.Facebook.GraphVersion,
		RequestTimeout:    cfg.Facebook.RequestTimeout,
		ConversationLimit: cfg.Facebook.ConversationLimit,
	})

	tokenProvider := customersApp.NewPageTokenProvider(pageRepo)

	activityTracker := campaignApp.NewActivityTracker(
		activityRepo,
		graphClient,
		tokenProvider,
		vkClient,
		cfg.Scheduler.ActivityCacheTTL,
		cfg.Facebook.MessageLimit,
	)

	executor := campaignApp.NewDeliveryExecutor(
		graphClient,
		tokenProvider,
		deliveryRepo,
		ledgerRepo,
		campaignApp.ExecutorConfig{
			InterMessageDelay: cfg.Scheduler.InterMessageDelay,
			InterTargetDelay:  cfg.Scheduler.InterTargetDelay,
			MaxAttempts:       cfg.Scheduler.MaxSendAttempts,
			RetryBaseDelay:    cfg.Scheduler.RetryBaseDelay,
		},
	)

	evalPool = msgworker.NewEvalWorkerPool(cfg.Worker.Size, cfg.Worker.QueueSize)

	scheduler = campaignApp.NewScheduler(
		scheduleRepo,
		groupRepo,
		ledgerRepo,
		activityTracker,
		executor,
		evalPool,
		vkClient,
		campaignApp.SchedulerConfig{
			PollInterval:  cfg.Scheduler.PollInterval,
			FireTolerance: cfg.Scheduler.FireTolerance,
		},
	)

	// Classification provider: OpenAI wins if both keys are present.
	var tierProvider classification.Provider
	switch {
	case cfg.APIKeys.OpenAI != "":
		tierProvider = providers.NewOpenAIProvider(cfg.APIKeys.OpenAI, os.Getenv("OPENAI_MODEL"))
		logrus.Info("[CLASSIFY] Using OpenAI tier provider")
	case cfg.APIKeys.Gemini != "":
		tierProvider = providers.NewGeminiProvider(cfg.APIKeys.Gemini, os.Getenv("GEMINI_MODEL"))
		logrus.Info("[CLASSIFY] Using Gemini tier provider")
	default:
		logrus.Info("[CLASSIFY] No LLM key configured, tiering on keywords and recency only")
	}
	classifierEngine := classification.NewEngine(customerRepo, tierProvider, nil)

	syncService := customersApp.NewCustomerSyncService(
		customerRepo,
		graphClient,
		tokenProvider,
		activityTracker,
		cfg.Facebook.MessageLimit,
	)

	// Usecases
	scheduleUsecase = usecase.NewScheduleService(scheduleRepo, ledgerRepo, deliveryRepo, groupRepo, scheduler)
	groupUsecase = usecase.NewGroupService(groupRepo)
	deliveryUsecase = usecase.NewDeliveryService(deliveryRepo)
	customerUsecase = usecase.NewCustomerService(customerRepo, syncService, classifierEngine)
	pageUsecase = usecase.NewPageService(pageRepo)
	webhookUsecase = usecase.NewWebhookService(cfg.Facebook.WebhookVerifyToken, customerRepo, activityTracker, classifierEngine)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of the engine and its pools.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if evalPool != nil {
		evalPool.Stop()
	}
	if vkClient != nil {
		vkClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
