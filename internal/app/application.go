package app

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	aisvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/ai"
	authsvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/auth"
	contentsvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/content"
	petssvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/pets"
	profilessvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/profiles"
	rewardssvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/rewards"
	searchsvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/search"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage/memory"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/system"
	"github.com/Arthur-Jacobina/datagotchi/internal/config"
	"github.com/Arthur-Jacobina/datagotchi/internal/embeddings"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
	"github.com/Arthur-Jacobina/datagotchi/internal/scraper"
	"github.com/Arthur-Jacobina/datagotchi/internal/supabase"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Profiles  storage.ProfileStore
	Sessions  storage.SessionStore
	Pets      storage.PetStore
	Instances storage.InstanceStore
	Knowledge storage.KnowledgeStore
	Images    storage.ImageStore
	Rewards   storage.RewardStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger
	cfg     *config.Config

	Auth     *authsvc.Service
	Profiles *profilessvc.Service
	Pets     *petssvc.Service
	Content  *contentsvc.Service
	Search   *searchsvc.Service
	Rewards  *rewardssvc.Service
	AI       *aisvc.Service
	Scraper  *scraper.Scraper
}

// New builds a fully initialised application with the provided stores.
func New(cfg *config.Config, stores Stores, log *logging.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		log = logging.NewDefault("app")
	}

	mem := memory.New()
	if stores.Profiles == nil {
		stores.Profiles = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}
	if stores.Pets == nil {
		stores.Pets = mem
	}
	if stores.Instances == nil {
		stores.Instances = mem
	}
	if stores.Knowledge == nil {
		stores.Knowledge = mem
	}
	if stores.Images == nil {
		stores.Images = mem
	}
	if stores.Rewards == nil {
		stores.Rewards = mem
	}

	manager := system.NewManager()

	rules, err := config.LoadRewardRules(cfg.RewardsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load reward rules: %w", err)
	}

	authService := authsvc.New(stores.Profiles, stores.Sessions, cfg.JWTSecret, cfg.SessionTTL, log)
	profilesService := profilessvc.New(stores.Profiles, stores.Pets, stores.Instances, log)
	petsService := petssvc.New(stores.Pets, stores.Profiles, stores.Instances, stores.Knowledge, stores.Images, log)
	contentService := contentsvc.New(stores.Instances, stores.Knowledge, stores.Images, stores.Pets, log)
	searchService := searchsvc.New(stores.Instances, stores.Knowledge, stores.Pets, log)
	rewardsService := rewardssvc.New(stores.Pets, stores.Profiles, stores.Rewards, rules, log)

	pageScraper := scraper.New(cfg.ScraperTimeout, log)
	contentService.AttachFetcher(pageScraper)

	var aiService *aisvc.Service
	if cfg.OpenAIKey != "" {
		client := openai.NewClient(cfg.OpenAIKey)
		aiService = aisvc.New(client, "", log)

		var cache embeddings.Cache
		if cfg.RedisURL != "" {
			redisCache, err := embeddings.NewRedisCache(cfg.RedisURL, 0)
			if err != nil {
				log.WithError(err).Warn("embedding cache disabled")
			} else {
				cache = redisCache
			}
		}
		embedder, err := embeddings.NewOpenAI(cfg.OpenAIKey, cfg.EmbeddingModel, cache, log)
		if err != nil {
			return nil, fmt.Errorf("configure embedder: %w", err)
		}
		contentService.AttachEmbedder(embedder)
		searchService.AttachEmbedder(embedder)
	} else {
		aiService = aisvc.New(nil, "", log)
		log.Warn("OPENAI_API_KEY not set; ai and semantic search disabled")
	}

	if mirror := supabase.New(supabase.Config{URL: cfg.SupabaseURL, Key: cfg.SupabaseKey}, log); mirror != nil {
		contentService.AttachMirror(mirror)
	} else {
		log.Warn("SUPABASE_URL/SUPABASE_KEY not set; image mirroring disabled")
	}

	for _, name := range []string{"auth", "profiles", "pets", "content", "search", "rewards"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		cfg:      cfg,
		Auth:     authService,
		Profiles: profilesService,
		Pets:     petsService,
		Content:  contentService,
		Search:   searchService,
		Rewards:  rewardsService,
		AI:       aiService,
		Scraper:  pageScraper,
	}, nil
}

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config { return a.cfg }

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services and seeds the achievement catalogue.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Rewards.SyncRules(ctx); err != nil {
		return err
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
