// Command mtc-agent is the MTConnect agent process: it loads a device
// model, starts the configured SHDR/MQTT adapters, and serves the REST and
// WebSocket sinks against a single in-memory Agent (spec.md §1, §4.4).
// Grounded on the teacher's cmd/tr-engine/main.go wiring order — CLI flags,
// config.Load, sequential component construction, goroutine-run HTTP
// server, signal-driven graceful shutdown — generalized from tr-engine's
// database/storage/transcription stack to the agent's adapters, buffer,
// and sinks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/mtc-agent/internal/adapter/mqttadapter"
	"github.com/snarg/mtc-agent/internal/adapter/shdr"
	"github.com/snarg/mtc-agent/internal/adapter/shdrfile"
	"github.com/snarg/mtc-agent/internal/agent"
	"github.com/snarg/mtc-agent/internal/archive"
	"github.com/snarg/mtc-agent/internal/config"
	"github.com/snarg/mtc-agent/internal/hooks"
	"github.com/snarg/mtc-agent/internal/metrics"
	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/pipeline"
	"github.com/snarg/mtc-agent/internal/rest"
	"github.com/snarg/mtc-agent/internal/wsock"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DeviceModelPath, "device-model", "", "Path to device model JSON (overrides DEVICE_MODEL_PATH)")
	flag.StringVar(&overrides.MQTTBrokerURL, "mqtt-url", "", "MQTT broker URL (overrides MQTT_BROKER_URL)")
	flag.StringVar(&overrides.SHDRSources, "shdr-sources", "", "SHDR sources as name=host:port[,name=host:port...] (overrides SHDR_SOURCES)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("mtc-agent %s (commit=%s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Str("commit", commit).Msg("mtc-agent starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := hooks.NewCoordinator(ctx, log)

	devices, err := model.LoadDevicesFile(cfg.DeviceModelPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DeviceModelPath).Msg("failed to load device model")
	}

	var archiver *archive.Archiver
	var archiveDB *archive.DB
	if cfg.ArchiveStore {
		archiveLog := log.With().Str("component", "archive").Logger()
		archiveDB, err = archive.Connect(ctx, cfg.ArchiveDatabaseURL, archiveLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to archive database")
		}
		if err := archiveDB.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("archive schema initialization failed")
		}
		archiver = archive.NewArchiver(ctx, archiveDB, archive.Config{
			Enabled:       true,
			IncludeRoutes: cfg.ArchiveIncludeRoutes,
			ExcludeRoutes: cfg.ArchiveExcludeRoutes,
		})
		db := archiveDB
		coordinator.Hooks.Add(hooks.AfterStop, "archive-close", func() error {
			archiver.Stop()
			db.Close()
			return nil
		})
		log.Info().Msg("raw message archival enabled")
	}

	ag := agent.New(agent.Options{
		BufferSizeExp:   cfg.BufferSizeExp,
		CheckpointFreq:  cfg.CheckpointFreq,
		AssetBufferSize: cfg.AssetBufferSize,
		AutoAvailable:   cfg.AutoAvailable,
		Archiver:        archiver,
		Log:             log,
	})
	// Closes the "dead wiring" gap: once every external source has reported
	// disconnected, status.go's StatusTracker.Update calls this, and
	// Coordinator.TriggerShutdown cancels every task Run started (spec.md
	// §4.4 "Source failure").
	ag.OnAllSourcesDown = coordinator.TriggerShutdown

	if err := ag.LoadDevices(devices); err != nil {
		log.Fatal().Err(err).Msg("failed to install device model")
	}
	log.Info().Int("devices", len(devices)).Str("path", cfg.DeviceModelPath).Msg("device model loaded")

	var archivePool *pgxpool.Pool
	if archiveDB != nil {
		archivePool = archiveDB.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(archivePool, ag.Buffer, ag.Status))

	var tasks []func(context.Context) error

	if cfg.SHDRSources != "" {
		for _, src := range parseSHDRSources(cfg.SHDRSources) {
			src := src
			srcLog := log.With().Str("component", "shdr").Str("source", src.name).Logger()
			shdrPipeline := buildSHDRPipeline(ag)
			source := shdr.NewSource(src.name, shdrPipeline, srcLog)
			if archiver != nil {
				source.Archive = ag.ArchiveRaw
			}
			connector := shdr.New(shdr.Options{
				Source:            src.name,
				Address:           src.addr,
				ReconnectInterval: cfg.ReconnectInterval,
				HeartbeatFallback: cfg.HeartbeatFallback,
				Log:               srcLog,
			}, source)
			tasks = append(tasks, func(ctx context.Context) error {
				connector.Run(ctx)
				return nil
			})
			log.Info().Str("source", src.name).Str("addr", src.addr).Msg("shdr adapter configured")
		}
	}

	if cfg.SHDRWatchDir != "" {
		watchLog := log.With().Str("component", "shdrfile").Logger()
		watcher := shdrfile.New(buildSHDRPipeline(ag), "shdrfile", cfg.SHDRWatchDir, watchLog)
		if archiver != nil {
			watcher.Archive = ag.ArchiveRaw
		}
		tasks = append(tasks, func(ctx context.Context) error {
			if err := watcher.Start(); err != nil {
				return fmt.Errorf("shdr file watcher: %w", err)
			}
			<-ctx.Done()
			watcher.Stop()
			return nil
		})
		log.Info().Str("watch_dir", cfg.SHDRWatchDir).Msg("shdr file watcher configured")
	}

	if cfg.MQTTBrokerURL != "" {
		routes := mqttadapter.ParseTopics(cfg.MQTTTopics)
		mqttPipeline := buildMQTTPipeline(ag, routes)
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqttAdapter := mqttadapter.New(mqttadapter.Options{
			BrokerURL:         cfg.MQTTBrokerURL,
			ClientID:          cfg.MQTTClientID,
			Source:            "mqtt",
			Topics:            routes,
			Username:          cfg.MQTTUsername,
			Password:          cfg.MQTTPassword,
			TLSCert:           cfg.MQTTTLSCert,
			TLSKey:            cfg.MQTTTLSKey,
			TLSCA:             cfg.MQTTTLSCA,
			ReconnectInterval: cfg.ReconnectInterval,
			Log:               mqttLog,
		}, mqttPipeline)
		if archiver != nil {
			mqttAdapter.Archive = ag.ArchiveRaw
		}
		tasks = append(tasks, func(ctx context.Context) error {
			if err := mqttAdapter.Connect(); err != nil {
				return fmt.Errorf("mqtt adapter: %w", err)
			}
			<-ctx.Done()
			mqttAdapter.Close()
			return nil
		})
		log.Info().Str("broker", cfg.MQTTBrokerURL).Msg("mqtt adapter configured")
	}

	httpLog := log.With().Str("component", "http").Logger()
	restServer := rest.NewServer(ag, rest.Options{
		Addr:               cfg.HTTPAddr,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		IdleTimeout:        cfg.IdleTimeout,
		CORSOrigins:        cfg.AllowedOrigins(),
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		MutationsEnabled:   cfg.MutationsEnabled,
		MutationAllowlist:  cfg.MutationAllowlist,
		DefaultSampleCount: cfg.DefaultSampleCount,
		DefaultHeartbeat:   cfg.DefaultHeartbeat,
		Log:                httpLog,
	})

	// Mount the WebSocket sink and the Prometheus scrape endpoint onto the
	// same chi router the REST sink built, so both sinks share every route,
	// coercion rule, and mutation gate (SPEC_FULL.md §18.2).
	router := restServer.Router()
	if mux, ok := router.(chi.Router); ok {
		mux.Get("/ws", wsock.Handler(router, httpLog))
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		log.Fatal().Msg("rest server router does not implement chi.Router")
	}

	tasks = append(tasks, func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- restServer.Start() }()
		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return err
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return restServer.Shutdown(shutdownCtx)
	})

	log.Info().Str("listen", cfg.HTTPAddr).Msg("mtc-agent ready")

	if err := coordinator.Run(tasks...); err != nil {
		log.Error().Err(err).Msg("mtc-agent stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("mtc-agent stopped")
}

type sourceAddr struct {
	name string
	addr string
}

// parseSHDRSources splits "name=host:port,name2=host2:port2" into per-source
// pairs, grounded on the teacher's parseTopics comma-splitting shape
// (internal/mqttclient/client.go), adapted to the SHDR "name=addr" form.
func parseSHDRSources(raw string) []sourceAddr {
	var out []sourceAddr
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, addr, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out = append(out, sourceAddr{name: strings.TrimSpace(name), addr: strings.TrimSpace(addr)})
	}
	return out
}

// buildObservationChain wires the UpcaseValue/ConvertSample/
// DuplicateFilter/DeltaFilter/PeriodFilter/DeliverObservation subtree
// (spec.md §4.1 rows). DeltaFilter and PeriodFilter already no-op per data
// item when no filter delta/period is configured, so the production graph
// never needs to branch per device to skip them. Called for every adapter
// pipeline (twice for MQTT: under DataMapper's SHDR chain and under
// JsonMapper) so each adapter's PeriodFilter timers belong to that adapter's
// own goroutine; DuplicateFilter/DeltaFilter stay globally consistent
// regardless, since they read the shared Agent rather than local state.
// Returns the chain's entry node (UpcaseValue), guarded on
// KindObservationRaw.
func buildObservationChain(ag *agent.Agent) *pipeline.Node {
	upcase := pipeline.NewUpcaseValue()
	convert := pipeline.NewConvertSample(ag)
	dup := pipeline.NewDuplicateFilter(ag)
	delta := pipeline.NewDeltaFilter(ag)
	period := pipeline.NewPeriodFilter(ag)
	deliver := pipeline.NewDeliverObservation(ag)

	upcase.AddChild(convert)
	convert.AddChild(dup)
	dup.AddChild(delta)
	delta.AddChild(period)
	period.AddChild(deliver)
	return upcase
}

// buildSHDRIngestChain wires ShdrTokenizer -> ExtractTimestamp ->
// ShdrTokenMapper -> the shared observation chain (spec.md §4.1), the entry
// point for any raw SHDR line regardless of which adapter produced it.
func buildSHDRIngestChain(ag *agent.Agent) *pipeline.Node {
	tokenizer := pipeline.NewShdrTokenizer()
	ts := pipeline.NewExtractTimestamp(pipeline.TimestampAbsolute, time.Now)
	mapper := pipeline.NewShdrTokenMapper(ag)

	tokenizer.AddChild(ts)
	ts.AddChild(mapper)
	mapper.AddChild(buildObservationChain(ag))
	return tokenizer
}

// buildSHDRPipeline assembles the graph a TCP SHDR connector or file
// watcher drives directly: raw lines through the SHDR ingest chain,
// connection-status and protocol-command entities delivered straight to
// the agent (spec.md §4.1 root guard list).
func buildSHDRPipeline(ag *agent.Agent) *pipeline.Pipeline {
	root := &pipeline.Node{Name: "root", Guard: pipeline.Always()}
	root.AddChild(buildSHDRIngestChain(ag))
	root.AddChild(pipeline.NewDeliverConnectionStatus(ag))
	root.AddChild(pipeline.NewDeliverCommand(ag))
	return pipeline.New(root)
}

// buildMQTTPipeline assembles the graph an MQTT adapter drives: TopicMapper
// routes each message to either the SHDR ingest chain (DataMapper) or
// JsonMapper's observation/asset parsing (spec.md §4.1, §6).
func buildMQTTPipeline(ag *agent.Agent, routes []pipeline.TopicRoute) *pipeline.Pipeline {
	dataMapper := pipeline.NewDataMapper()
	dataMapper.AddChild(buildSHDRIngestChain(ag))

	assetMapper := pipeline.NewAssetMapper(ag.DefaultDeviceUUID)
	assetMapper.AddChild(pipeline.NewDeliverAsset(ag))

	jsonMapper := pipeline.NewJsonMapper(ag)
	jsonMapper.AddChild(buildObservationChain(ag))
	jsonMapper.AddChild(assetMapper)

	topicMapper := pipeline.NewTopicMapper(routes)
	topicMapper.AddChild(dataMapper)
	topicMapper.AddChild(jsonMapper)

	root := &pipeline.Node{Name: "root", Guard: pipeline.Always()}
	root.AddChild(topicMapper)
	root.AddChild(pipeline.NewDeliverConnectionStatus(ag))
	root.AddChild(pipeline.NewDeliverCommand(ag))
	root.AddChild(pipeline.NewDeliverAssetCommand(ag))
	return pipeline.New(root)
}
