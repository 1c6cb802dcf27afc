package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/kiranaops/kirana-agent/agent/contract"
	llmx "github.com/kiranaops/kirana-agent/agent/llm"
	memoryx "github.com/kiranaops/kirana-agent/agent/memory"
	sessionx "github.com/kiranaops/kirana-agent/agent/session"
	configx "github.com/kiranaops/kirana-agent/pkg/config"
	_ "github.com/kiranaops/kirana-agent/pkg/logger/autoload"
	openrouterx "github.com/kiranaops/kirana-agent/pkg/openrouter"
	transcribex "github.com/kiranaops/kirana-agent/pkg/transcribe"
	storex "github.com/kiranaops/kirana-agent/store"
)

type AppConfig struct {
	// DatabaseURL selects Postgres persistence; empty runs on the
	// in-memory store, which loses everything at exit.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// StoreID is the external identity for this REPL session, the same
	// id a chat channel would carry (e.g. wa:+911234567890).
	StoreID string `envconfig:"STORE_ID" default:"local-repl"`

	RedisURL   string `envconfig:"UPSTASH_REDIS_URL"`
	RedisToken string `envconfig:"UPSTASH_REDIS_TOKEN"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	st, err := buildStore(ctx, appCfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}

	memory := buildMemory(appCfg)

	orCfg := llmCfg.OpenRouter()
	chatModel, err := orCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("chat model init failed")
	}

	runner, err := sessionx.New(st, memory, chatModel, sessionx.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("session init failed")
	}

	repl(ctx, runner, buildTranscriber(orCfg), appCfg.StoreID)
}

func buildStore(ctx context.Context, databaseURL string) (storex.Store, error) {
	dsn := strings.TrimSpace(databaseURL)
	if dsn == "" {
		log.Info().Msg("no DATABASE_URL, using in-memory store")
		return storex.NewMem(), nil
	}

	db := storex.OpenPostgres(dsn)
	if err := db.Init(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

func buildMemory(cfg *AppConfig) contractx.MemoryStore {
	url := strings.TrimSpace(cfg.RedisURL)
	token := strings.TrimSpace(cfg.RedisToken)
	if url == "" || token == "" {
		log.Info().Msg("no Upstash credentials, transcripts disabled")
		return memoryx.Noop{}
	}

	store, err := memoryx.NewUpstashStore(memoryx.UpstashConfig{URL: url, Token: token})
	if err != nil {
		log.Warn().Err(err).Msg("transcript store init failed, transcripts disabled")
		return memoryx.Noop{}
	}
	return store
}

func buildTranscriber(orCfg openrouterx.Config) *transcribex.Transcriber {
	client := openrouterx.NewClient(orCfg)
	if client == nil {
		return nil
	}

	tr, err := transcribex.New(client, *configx.MustNew[transcribex.Config]("TRANSCRIBE"))
	if err != nil {
		log.Warn().Err(err).Msg("transcriber init failed, voice notes disabled")
		return nil
	}
	return tr
}

func repl(ctx context.Context, runner contractx.Runner, tr *transcribex.Transcriber, storeID string) {
	fmt.Println("kirana-agent ready. Type a message, 'voice <file>' for an audio note, or 'exit'.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if path, ok := strings.CutPrefix(line, "voice "); ok {
			text, err := transcribeFile(ctx, tr, strings.TrimSpace(path))
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("(heard: %s)\n", text)
			line = text
		}

		reply, err := runner.HandleTurn(ctx, storeID, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
}

func transcribeFile(ctx context.Context, tr *transcribex.Transcriber, path string) (string, error) {
	if tr == nil {
		return "", fmt.Errorf("voice notes are disabled")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return tr.Transcribe(ctx, f)
}
