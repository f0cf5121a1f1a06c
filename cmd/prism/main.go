package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/prism-sec/prism/pkg/api"
	"github.com/prism-sec/prism/pkg/assets"
	"github.com/prism-sec/prism/pkg/config"
	"github.com/prism-sec/prism/pkg/ingest"
	"github.com/prism-sec/prism/pkg/intel"
	"github.com/prism-sec/prism/pkg/prioritizer"
	"github.com/prism-sec/prism/pkg/report"
	"github.com/prism-sec/prism/pkg/scoring"
	"github.com/prism-sec/prism/pkg/store"
)

const (
	appName    = "PRISM"
	appVersion = "1.0.0"
)

var log = logrus.New()

func main() {
	app := &cli.App{
		Name:    "prism",
		Usage:   "Priority Risk Intelligence & Scoring Manager",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/prism.yaml",
				Usage:   "Load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"PRISM_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				level = logrus.InfoLevel
			}
			if c.Bool("verbose") {
				level = logrus.DebugLevel
			}
			log.SetLevel(level)
			log.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
			return nil
		},
		Commands: []*cli.Command{
			commandIngest(),
			commandScore(),
			commandSync(),
			commandReport(),
			commandDashboard(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func printBanner() {
	color.Cyan("\n=== %s - Vulnerability Prioritization Platform ===\n", appName)
}

// loadConfig reads the configuration file named by the global flag and
// attaches the configured log outputs
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.LoadFromFile(c.String("config"))
	if err != nil {
		return cfg, err
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err == nil {
			if f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				log.SetOutput(io.MultiWriter(os.Stdout, f))
			}
		}
	}
	return cfg, nil
}

// openComponents assembles the scoring pipeline from configuration
func openComponents(cfg config.Config) (*prioritizer.Prioritizer, *store.Store, *intel.Manager, error) {
	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, err
	}

	inventory, err := assets.LoadInventory(cfg.AssetInventory)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}

	intelManager := intel.NewManager(intel.FeedConfig{
		KEVURL:  cfg.Feeds.KEVURL,
		EPSSURL: cfg.Feeds.EPSSURL,
		Timeout: time.Duration(cfg.Feeds.TimeoutSeconds) * time.Second,
	}, log)

	p := prioritizer.New(
		scoring.NewEngine(),
		assets.NewAnalyzer(log),
		intelManager,
		inventory,
		s,
		ingest.NewIngester(log),
		cfg.Threads,
		log,
	)
	return p, s, intelManager, nil
}

func commandIngest() *cli.Command {
	return &cli.Command{
		Name:    "ingest",
		Aliases: []string{"i"},
		Usage:   "Ingest vulnerability data from a file or API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source",
				Aliases:  []string{"s"},
				Required: true,
				Usage:    "Source file path or API URL",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Value:   ingest.TypeAuto,
				Usage:   "Source type (json, csv, api, auto)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			printBanner()

			p, s, _, err := openComponents(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			count, err := p.Ingest(c.Context, c.String("source"), c.String("type"))
			if err != nil {
				return fmt.Errorf("ingesting from %s: %w", c.String("source"), err)
			}

			color.Green("Ingested %d vulnerabilities successfully\n", count)
			return nil
		},
	}
}

func commandScore() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Score all stored vulnerabilities against context and intelligence",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "Update threat intelligence feeds before scoring",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			printBanner()

			p, s, intelManager, err := openComponents(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if c.Bool("sync") {
				intelManager.UpdateFeeds(c.Context)
			}

			summary, err := p.ScoreAll(c.Context)
			if err != nil {
				return fmt.Errorf("scoring vulnerabilities: %w", err)
			}

			color.Green("Scored %d vulnerabilities (%d failed) in %s\n",
				summary.Scored, summary.Failed, summary.Duration.Round(time.Millisecond))

			printTopRisks(s, cfg.TopRisksLimit)
			return nil
		},
	}
}

func commandSync() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Update threat intelligence feeds",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			printBanner()

			manager := intel.NewManager(intel.FeedConfig{
				KEVURL:  cfg.Feeds.KEVURL,
				EPSSURL: cfg.Feeds.EPSSURL,
				Timeout: time.Duration(cfg.Feeds.TimeoutSeconds) * time.Second,
			}, log)

			results := manager.UpdateFeeds(c.Context)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					color.Red("Feed %s failed: %v\n", r.Feed, r.Err)
					failed++
				} else {
					color.Green("Feed %s updated: %d entries\n", r.Feed, r.Processed)
				}
			}
			if failed == len(results) && failed > 0 {
				return fmt.Errorf("all %d feeds failed to update", failed)
			}
			return nil
		},
	}
}

func commandReport() *cli.Command {
	return &cli.Command{
		Name:    "report",
		Aliases: []string{"r"},
		Usage:   "Generate a vulnerability risk report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Value:   report.TypeExecutive,
				Usage:   "Report type (executive, technical)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			printBanner()

			s, err := store.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer s.Close()

			gen := report.NewGenerator(s, cfg.ReportsDir, cfg.TopRisksLimit, log)
			path, err := gen.Generate(c.String("type"))
			if err != nil {
				return fmt.Errorf("generating report: %w", err)
			}

			color.Green("Report generated: %s\n", path)
			return nil
		},
	}
}

func commandDashboard() *cli.Command {
	return &cli.Command{
		Name:    "dashboard",
		Aliases: []string{"d"},
		Usage:   "Launch the web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Dashboard host (overrides config)",
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Dashboard port (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			printBanner()

			if host := c.String("host"); host != "" {
				cfg.Dashboard.Host = host
			}
			if port := c.String("port"); port != "" {
				cfg.Dashboard.Port = port
			}

			s, err := store.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer s.Close()

			server := api.NewDashboardServer(cfg.Dashboard, s, cfg.TopRisksLimit, log)
			color.Green("Dashboard available on http://%s:%s\n", cfg.Dashboard.Host, cfg.Dashboard.Port)
			return server.Start()
		},
	}
}

// printTopRisks shows the highest-risk vulnerabilities colored by category
func printTopRisks(s *store.Store, limit int) {
	ranked, err := s.TopRisks(limit)
	if err != nil || len(ranked) == 0 {
		return
	}

	fmt.Println("\nTop risks:")
	for _, rv := range ranked {
		line := fmt.Sprintf("  %-18s %5.1f  %-8s %s",
			rv.Record.ID, rv.Score.EnhancedScore, rv.Score.Category, rv.Record.Title)
		switch rv.Score.Category {
		case "CRITICAL":
			color.Red(line)
		case "HIGH":
			color.Yellow(line)
		default:
			fmt.Println(line)
		}
	}
}
