package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/zensu/focusflow/internal/config"
)

func clearConfigEnvVars() {
	for _, key := range []string{
		"FOCUSFLOW_CONFIG", "FOCUSFLOW_ADDR", "FOCUSFLOW_LOG_LEVEL",
		"FOCUSFLOW_QUEUE_SIZE", "FOCUSFLOW_WORKER_COUNT",
		"FOCUSFLOW_HEARTBEAT_INTERVAL_MS", "FOCUSFLOW_RETENTION_HOURS",
		"FOCUSFLOW_DEFAULT_SCOPE", "FOCUSFLOW_MAX_LEADERBOARD_LIMIT",
	} {
		_ = os.Unsetenv(key)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 100_000)
				convey.So(cfg.HeartbeatIntervalMS, convey.ShouldEqual, 1000)
				convey.So(cfg.RetentionHours, convey.ShouldEqual, 48)
				convey.So(cfg.DefaultScope, convey.ShouldEqual, "global")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FOCUSFLOW_ADDR", ":8080")
			_ = os.Setenv("FOCUSFLOW_QUEUE_SIZE", "5000")
			_ = os.Setenv("FOCUSFLOW_WORKER_COUNT", "16")
			_ = os.Setenv("FOCUSFLOW_DEFAULT_SCOPE", "class-7b")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env values override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 5000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.DefaultScope, convey.ShouldEqual, "class-7b")
			})
		})

		convey.Convey("When retention is configured below the floor", func() {
			_ = os.Setenv("FOCUSFLOW_RETENTION_HOURS", "24")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it is clamped to 48 hours", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RetentionHours, convey.ShouldEqual, 48)
			})
		})

		convey.Convey("When loading config from a YAML file", func() {
			f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
			convey.So(err, convey.ShouldBeNil)
			_, err = f.WriteString("addr: \":7070\"\nretention_hours: 72\n")
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.Close(), convey.ShouldBeNil)

			_ = os.Setenv("FOCUSFLOW_CONFIG", f.Name())
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values layer over the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.RetentionHours, convey.ShouldEqual, 72)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 100_000)
			})

			convey.Convey("And env still wins over the file", func() {
				_ = os.Setenv("FOCUSFLOW_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			})
		})

		convey.Convey("When an invalid queue size is configured", func() {
			_ = os.Setenv("FOCUSFLOW_QUEUE_SIZE", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrInvalidConfig", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestConfigDefaults(t *testing.T) {
	convey.Convey("Given a new default config", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.WorkerCount, convey.ShouldBeGreaterThan, 0)
			convey.So(cfg.DedupeCacheMB, convey.ShouldEqual, 16)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
		})
	})
}
