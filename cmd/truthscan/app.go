package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"truthscan/internal/analysis"
	"truthscan/internal/auth"
	"truthscan/internal/config"
	"truthscan/internal/database"
	"truthscan/internal/fingerprint"
	"truthscan/internal/gemini"
	"truthscan/internal/handlers"
	"truthscan/internal/lazy"
	"truthscan/internal/llm"
	"truthscan/internal/logging"
	"truthscan/internal/media"
	"truthscan/internal/models"
	"truthscan/internal/music"
	"truthscan/internal/news"
	"truthscan/internal/notify"
	"truthscan/internal/pipeline"
	"truthscan/internal/queue"
	"truthscan/internal/scans"
	"truthscan/internal/store"
	"truthscan/internal/transcribe"
	"truthscan/internal/worker"
	"truthscan/internal/workers"
)

// app is the fully wired object graph shared by serve and work.
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	logger zerolog.Logger

	broker      *queue.Broker
	store       *store.Store
	hub         *notify.Hub
	publisher   *notify.Publisher
	analysis    *analysis.Service
	media       *media.Tool
	transcriber *lazy.Value[transcribe.Transcriber]
	scans       *scans.Service
	news        *news.Repository
}

func newApp(ctx *commandContext) (*app, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := ctx.database()
	if err != nil {
		return nil, err
	}

	runner := media.ExecRunner{}
	a := &app{
		cfg:    cfg,
		db:     db,
		logger: ctx.logger,
		broker: queue.NewBroker(db),
		store:  store.New(db),
		hub:    notify.NewHub(),
		news:   news.NewRepository(db),
	}
	a.publisher = notify.NewPublisher(db, a.hub, ctx.component("notify"))
	a.analysis = analysis.NewService(newCompleter(cfg.LLM))
	a.media = media.NewTool(runner, ctx.component("media"))
	a.transcriber = transcribe.New(cfg.Transcription, runner, ctx.component("transcribe"))
	a.scans = scans.NewService(a.broker, a.store, a.hub, scans.Config{
		Queue:         cfg.Queue.Name,
		MaxAttempts:   cfg.Queue.MaxAttempts,
		UploadDir:     cfg.Scan.UploadDir,
		PrecreateRows: cfg.Scan.PrecreateRows,
		MaxWait:       cfg.Scan.MaxWait,
	}, ctx.component("scans"))
	return a, nil
}

func newCompleter(cfg config.LLMConfig) *lazy.Value[analysis.Completer] {
	return lazy.New[analysis.Completer]("groq", func() (analysis.Completer, error) {
		client, err := llm.NewClient(llm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

func newGeminiClient(cfg config.GeminiConfig) (*gemini.Client, error) {
	return gemini.NewClient(gemini.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.VisionModel,
		TTSModel: cfg.TTSModel,
	}, nil)
}

func (a *app) describer() *lazy.Value[pipeline.Describer] {
	return lazy.New[pipeline.Describer]("gemini", func() (pipeline.Describer, error) {
		client, err := newGeminiClient(a.cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

func (a *app) voice() *lazy.Value[music.Voice] {
	return lazy.New[music.Voice]("gemini-tts", func() (music.Voice, error) {
		client, err := newGeminiClient(a.cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

func (a *app) suno() *lazy.Value[music.Generator] {
	return lazy.New[music.Generator]("suno", func() (music.Generator, error) {
		client, err := music.NewSunoClient(music.SunoConfig{
			APIKey:      a.cfg.Music.APIKey,
			BaseURL:     a.cfg.Music.BaseURL,
			CallbackURL: a.cfg.Music.CallbackURL,
		}, nil)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

// pool builds the queue worker pool with the pipeline jobs registered and
// completions forwarded to the notification hub.
func (a *app) pool() *queue.Pool {
	orchestrator := pipeline.New(pipeline.Deps{
		Describer:   a.describer(),
		Transcriber: a.transcriber,
		Analyzer:    a.analysis,
		Media:       a.media,
		Store:       a.store,
		Keyframes:   a.cfg.Scan.Keyframes,
		Logger:      logging.Component(a.logger, "pipeline"),
	})

	prefix, err := os.Hostname()
	if err != nil || prefix == "" {
		prefix = "truthscan"
	}
	pool := queue.NewPool(a.broker, queue.PoolConfig{
		Queue:        a.cfg.Queue.Name,
		Workers:      a.cfg.Queue.Workers,
		PollInterval: a.cfg.Queue.PollInterval,
		LeaseTimeout: a.cfg.Queue.LeaseTimeout,
		WorkerPrefix: prefix,
	}, logging.Component(a.logger, "queue"))
	orchestrator.Register(pool)

	pool.OnFinish(func(job *models.ScanJob, status models.JobStatus) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.publisher.Publish(ctx, notify.Event{ScanID: job.Key, Status: string(status)})
	})
	return pool
}

// bridge returns nil on databases without LISTEN/NOTIFY.
func (a *app) bridge() *notify.Bridge {
	if !database.IsPostgres(a.db) {
		return nil
	}
	return notify.NewBridge(database.DSN(a.cfg.Database), a.hub, logging.Component(a.logger, "notify"))
}

func (a *app) collector() *news.Collector {
	fetcher := news.NewFetcher(&http.Client{Timeout: 30 * time.Second}, a.cfg.News.UserAgent)
	return news.NewCollector(a.db, fetcher, a.analysis, news.CollectorConfig{
		Feeds:          a.cfg.News.Feeds,
		EntriesPerFeed: a.cfg.News.EntriesPerFeed,
		EntryDelay:     a.cfg.News.EntryDelay,
	}, logging.Component(a.logger, "news"))
}

func (a *app) collectorWorker() *workers.NewsCollectorWorker {
	return workers.NewNewsCollectorWorker(a.collector(), a.cfg.News.SweepInterval, logging.Component(a.logger, "news"))
}

func (a *app) studio() *music.Studio {
	return music.NewStudio(a.db, a.suno(), a.analysis, a.voice(), a.media, a.news, music.StudioConfig{
		SongsDir:     a.cfg.Audio.SongsDir,
		BeatPath:     a.cfg.Audio.BeatPath,
		StemsDir:     a.cfg.Audio.StemsDir,
		DemucsModel:  a.cfg.Audio.DemucsModel,
		VoiceName:    a.cfg.Gemini.Voice,
		PollTimeout:  a.cfg.Music.PollTimeout,
		PollInterval: a.cfg.Music.PollInterval,
	}, logging.Component(a.logger, "music"))
}

// loadAuthors tolerates a missing fingerprint file; matching then reports
// that no fingerprints are available.
func (a *app) loadAuthors() []fingerprint.Author {
	authors, err := fingerprint.LoadFile(a.cfg.Fingerprints)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.cfg.Fingerprints).Msg("Author fingerprints not loaded")
		return nil
	}
	a.logger.Info().Int("authors", len(authors)).Msg("Loaded author fingerprints")
	return authors
}

// router mounts every HTTP handler. workerStatus and trigger may be nil.
func (a *app) router(workerStatus handlers.StatusReporter, trigger handlers.NewsTrigger) *handlers.Router {
	verifier := auth.NewVerifier(a.cfg.Server.JWTSecret)
	httpLogger := logging.Component(a.logger, "http")
	return &handlers.Router{
		Scans:       handlers.NewScanHandler(a.scans, verifier, a.cfg.Server.CORSOrigins, httpLogger),
		Admin:       handlers.NewAdminHandler(a.scans, trigger, a.cfg.Server.AdminPassword, httpLogger),
		Authors:     handlers.NewAuthorHandler(a.db, a.loadAuthors(), a.transcriber, a.cfg.Scan.UploadDir, httpLogger),
		News:        handlers.NewNewsHandler(a.news),
		Music:       handlers.NewMusicHandler(a.studio(), httpLogger),
		Docs:        handlers.NewDocsHandler(a.cfg.Server.DocsDir),
		Health:      handlers.NewHealthHandler(workerStatus),
		CORSOrigins: a.cfg.Server.CORSOrigins,
		SongsDir:    a.cfg.Audio.SongsDir,
	}
}

// workerService assembles the background components for this process.
func (a *app) workerService(pool *queue.Pool, collector *workers.NewsCollectorWorker) *worker.WorkerService {
	return worker.NewWorkerService(worker.Options{
		Pool:      pool,
		Collector: collector,
		Bridge:    a.bridge(),
		Logger:    logging.Component(a.logger, "worker"),
	})
}
