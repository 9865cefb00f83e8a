// Package main seeds a development database with demo data.
package main

import (
	"context"
	"time"

	app "github.com/Arthur-Jacobina/datagotchi/internal/app"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	contentsvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/content"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage/postgres"
	"github.com/Arthur-Jacobina/datagotchi/internal/config"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

const demoWallet = "NdemoWa11etAddressXXXXXXXXXXXXXXXX"

type demoPet struct {
	name      string
	rarity    pet.Rarity
	instances []demoInstance
}

type demoInstance struct {
	content   string
	category  string
	knowledge []contentsvc.KnowledgeInput
}

var demoPets = []demoPet{
	{
		name:   "Bitwise",
		rarity: pet.RarityRare,
		instances: []demoInstance{
			{
				content:  "Notes on goroutine scheduling and the GMP model",
				category: "code",
				knowledge: []contentsvc.KnowledgeInput{
					{Title: "GMP model", Content: "The Go scheduler multiplexes goroutines onto OS threads using processors."},
				},
			},
			{
				content:  "Channel patterns: fan-in, fan-out, pipelines",
				category: "code",
			},
		},
	},
	{
		name:   "Nebula",
		rarity: pet.RarityCommon,
		instances: []demoInstance{
			{
				content:  "Why neutron stars spin so fast",
				category: "science",
				knowledge: []contentsvc.KnowledgeInput{
					{Title: "Conservation of angular momentum", Content: "A collapsing star spins up as its radius shrinks, like a skater pulling in their arms."},
				},
			},
		},
	},
}

func main() {
	log := logging.New("seed")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required to seed")
	}

	store, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("open postgres")
	}
	defer store.DB().Close()

	application, err := app.New(cfg, app.Stores{
		Profiles:  store,
		Sessions:  store,
		Pets:      store,
		Instances: store,
		Knowledge: store,
		Images:    store,
		Rewards:   store,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("initialise application")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}
	defer application.Stop(ctx)

	if _, err := application.Profiles.GetOrCreate(ctx, demoWallet); err != nil {
		log.WithError(err).Fatal("create demo profile")
	}

	for _, d := range demoPets {
		created, err := application.Pets.Create(ctx, pet.Pet{
			Name:        d.name,
			OwnerWallet: demoWallet,
			Rarity:      d.rarity,
		})
		if err != nil {
			log.WithError(err).Fatalf("create pet %s", d.name)
		}
		log.Infof("created pet %s (%s)", created.Name, created.ID)

		for _, inst := range d.instances {
			detail, err := application.Content.CreateInstance(ctx, created.ID, contentsvc.CreateInstanceInput{
				Content:   inst.content,
				Category:  instance.Category(inst.category),
				Knowledge: inst.knowledge,
			})
			if err != nil {
				log.WithError(err).Fatalf("create instance for %s", d.name)
			}
			log.Infof("fed %s instance %s with %d knowledge items", created.Name, detail.ID, len(detail.Knowledge))
		}
	}

	log.Infof("seed complete: wallet %s", demoWallet)
}
