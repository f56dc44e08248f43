package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"taskbridge/internal/bot"
	"taskbridge/internal/config"
	"taskbridge/internal/repository"
	"taskbridge/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var store repository.Store
	if cfg.UseLocalStore {
		local, err := repository.NewLocalStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("local store: %v", err)
		}
		defer local.Close()
		store = local
		log.Printf("[info] using local store at %s", cfg.DatabaseURL)
	} else {
		store = repository.NewNotionStore(cfg.NotionToken, cfg.NotionTasksDB, cfg.NotionConfigDB)
	}

	cache := service.NewConfigCache(store, cfg.CacheTTL)
	if err := cache.Refresh(ctx); err != nil {
		log.Fatalf("initial config load: %v", err)
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("discord session: %v", err)
	}

	msgr := bot.NewMessenger(session, cfg.GuildID)
	projection := service.NewProjectionService(msgr)
	boards := service.NewBoardService(store, store, cache, msgr)
	transitions := service.NewTransitionService(store, cache, projection, msgr, boards)
	reassigns := service.NewReassignService(store, cache, projection, msgr)
	tasks := service.NewTaskService(store, cache, projection, msgr)

	discordBot := bot.New(session, msgr, cfg.GuildID, store, cache, transitions, reassigns, tasks, boards)
	if err := discordBot.Start(ctx); err != nil {
		log.Fatalf("bot: %v", err)
	}
	defer func() {
		if err := discordBot.Stop(); err != nil {
			log.Printf("close session: %v", err)
		}
	}()

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.CacheTTL, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cache.Refresh(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("config refresh: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule config refresh: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Task bridge bot started.")
	<-ctx.Done()
	log.Println("Shutdown complete.")
}
