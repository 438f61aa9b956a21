package cli

import (
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davarch/pipewatch/internal/application"
	"github.com/davarch/pipewatch/internal/domain"
	"github.com/davarch/pipewatch/internal/infrastructure/cache_fs"
	"github.com/davarch/pipewatch/internal/infrastructure/cctray_http"
	"github.com/davarch/pipewatch/internal/infrastructure/config"
	"github.com/davarch/pipewatch/internal/infrastructure/github_http"
	"github.com/davarch/pipewatch/internal/infrastructure/gitlab_http"
	"github.com/davarch/pipewatch/internal/infrastructure/logging"
	"github.com/davarch/pipewatch/internal/infrastructure/notify_libnotify"
	"github.com/davarch/pipewatch/internal/infrastructure/secrets_env"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run polling scheduler",
	Run: func(cmd *cobra.Command, args []string) {
		log := logging.New()
		defer func() { _ = log.Sync() }()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatal("config", zap.Error(err))
		}

		secrets := secrets_env.New(cfg.Auth.Tokens, cfg.Auth.Passwords)
		cctray := cctray_http.New(secrets, cfg.Poll.Timeout)
		readers := map[domain.FeedType]domain.FeedReader{
			domain.FeedTypeCCTray: cctray,
			domain.FeedTypeGitHub: github_http.New(secrets, cfg.Poll.Timeout),
			domain.FeedTypeGitLab: gitlab_http.New(secrets, cfg.Poll.Timeout),
		}

		reg := application.NewRegistry(log, enabledPipelines(cfg)...)
		sched := application.NewScheduler(log, reg, readers, cfg.Poll.Interval)

		sync := application.NewFeedSync(log, reg, cctray, sources(cfg), cfg.Poll.SyncInterval, sched.PollNow)
		disp := application.NewDispatcher(log, reg, notify_libnotify.NewSoft(), cache_fs.New(cfg.Cache.Path))

		watchAndReload(cfgPath, log, reg, sched)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		log.Info("start",
			zap.String("version", version),
			zap.Int("pipelines", len(reg.Snapshot())),
			zap.Int("sources", len(cfg.Sources)),
			zap.Duration("every", cfg.Poll.Interval),
			zap.String("cache", cfg.Cache.Path),
		)

		go disp.Run(ctx)
		go sync.Run(ctx)
		sched.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func enabledPipelines(cfg config.Config) []domain.Pipeline {
	var out []domain.Pipeline
	for _, p := range cfg.Pipelines {
		if p.Enabled {
			out = append(out, p.Domain())
		}
	}
	return out
}

func sources(cfg config.Config) []application.Source {
	out := make([]application.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, application.Source{
			ID:            application.SourceID(s.ID, s.URL),
			URL:           s.URL,
			Enabled:       s.Enabled,
			RemoveDeleted: s.RemoveDeleted,
		})
	}
	return out
}

func watchAndReload(cfgPath string, log *zap.Logger, reg *application.Registry, sched *application.Scheduler) {
	if cfgPath == "" {
		return
	}

	dir := filepath.Dir(cfgPath)
	base := filepath.Base(cfgPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify init failed", zap.Error(err))
		return
	}

	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		fire := func() {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				log.Warn("config reload failed", zap.Error(err))
				return
			}
			added := reg.SetPipelines(enabledPipelines(cfg))
			log.Info("config reloaded",
				zap.Int("pipelines", len(reg.Snapshot())),
				zap.Int("new", len(added)),
			)
			if len(added) > 0 {
				sched.PollNow(added...)
			}
		}

		startTimer := func() {
			if timer == nil {
				timer = time.AfterFunc(300*time.Millisecond, fire)
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(300 * time.Millisecond)
		}

		if err := w.Add(dir); err != nil {
			log.Warn("fsnotify add dir failed", zap.String("dir", dir), zap.Error(err))
			return
		}

		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					startTimer()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("fsnotify error", zap.Error(err))
			}
		}
	}()
}
