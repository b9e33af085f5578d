// medifox: conversational healthcare assistant server.
// Serves a JSON chat API and a real-time voice websocket.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medifox/go-medifox/internal/config"
	"github.com/medifox/go-medifox/internal/log"
	"github.com/medifox/go-medifox/pkg/agent"
	"github.com/medifox/go-medifox/pkg/healthcare"
	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/memory"
	"github.com/medifox/go-medifox/pkg/records"
	"github.com/medifox/go-medifox/pkg/stt"
	"github.com/medifox/go-medifox/pkg/tool"
	"github.com/medifox/go-medifox/pkg/tts"
	"github.com/medifox/go-medifox/pkg/web"
)

var (
	version  = "1.0.0"
	port     = flag.String("port", config.DefaultPort, "HTTP server port")
	dataDir  = flag.String("data", "", "data directory (default $MEDIFOX_DATA_DIR or ./data)")
	logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	noVoice  = flag.Bool("no-voice", false, "disable the voice websocket")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)
	logger := log.With("component", "main")

	fmt.Println("MediFox v" + version)

	dir := *dataDir
	if dir == "" {
		dir = config.DataDir()
	}

	openaiKey := config.OpenAIKey()

	// Conversation store: sqlite when MEDIFOX_DB is set, JSON files
	// under the data dir otherwise.
	var store memory.ConversationStore
	if dsn := config.SQLitePath(); dsn != "" {
		s, err := memory.NewSQLiteStore(dsn)
		if err != nil {
			logger.Error("open sqlite store", "path", dsn, "error", err)
			os.Exit(1)
		}
		store = s
		logger.Info("using sqlite conversation store", "path", dsn)
	} else {
		s, err := memory.NewJSONStore(config.MemoryDir())
		if err != nil {
			logger.Error("open json store", "dir", config.MemoryDir(), "error", err)
			os.Exit(1)
		}
		store = s
	}
	defer store.Close()

	// External record provider is optional.
	var recordsClient *records.Client
	if id, secret := config.RecordsClientID(), config.RecordsClientSecret(); id != "" && secret != "" {
		recordsClient = records.NewClient(records.Credentials{
			ClientID:     id,
			ClientSecret: secret,
			Username:     config.RecordsUsername(),
			Password:     config.RecordsPassword(),
		})
		logger.Info("record provider configured")
	}

	registry := tool.NewRegistry()
	if err := healthcare.RegisterAll(registry, healthcare.Deps{
		DataDir: dir,
		Records: recordsClient,
	}); err != nil {
		logger.Error("register tools", "error", err)
		os.Exit(1)
	}

	provider, err := inference.NewClient(inference.WithAPIKey(openaiKey))
	if err != nil {
		logger.Error("create inference client", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	assistant, err := agent.New(provider, registry, store,
		agent.WithPatientData(memory.NewPatientData(dir)),
	)
	if err != nil {
		logger.Error("create agent", "error", err)
		os.Exit(1)
	}

	opts := []web.ServerOption{
		web.WithPort(config.Port(*port)),
		web.WithStore(store),
	}

	if !*noVoice {
		transcriber, err := stt.NewWhisper(stt.WithAPIKey(openaiKey))
		if err != nil {
			logger.Error("create transcriber", "error", err)
			os.Exit(1)
		}
		opts = append(opts,
			web.WithVoice(transcriber, buildSynthesizer(openaiKey)),
			web.WithTranscoder(stt.NewFFmpeg()),
		)
	}

	server, err := web.NewServer(assistant, opts...)
	if err != nil {
		logger.Error("create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// buildSynthesizer prefers ElevenLabs and falls back to OpenAI speech.
// Both are optional; with neither configured, replies stay text-only.
func buildSynthesizer(openaiKey string) tts.Provider {
	var providers []tts.Provider

	if key := config.ElevenLabsKey(); key != "" {
		el, err := tts.NewElevenLabs(
			tts.WithAPIKey(key),
			tts.WithVoice(config.ElevenLabsVoice()),
		)
		if err == nil {
			providers = append(providers, el)
		} else {
			log.Warn("elevenlabs unavailable", "error", err)
		}
	}

	if oa, err := tts.NewOpenAI(tts.WithAPIKey(openaiKey)); err == nil {
		providers = append(providers, oa)
	}

	chain, err := tts.NewFallback(log.L(), providers...)
	if err != nil {
		log.Warn("no speech synthesis configured, voice replies will be text-only")
		return nil
	}
	return chain
}
