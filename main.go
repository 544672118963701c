// Command alex_bench bulk loads the keys of an initial user into an ALEX index,
// replays the keys of the remaining users as inserts and writes the leaf models
// after every phase.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"alex_bench/config"
	"alex_bench/logging"
	"alex_bench/metrics"
	"alex_bench/workload"
)

type cli struct {
	Config       string   `help:"YAML config file; flags override its values" type:"path"`
	KeysFileType string   `help:"Encoding of the key files (binary or text)" aliases:"keys_file_type"`
	InitUsrID    *int     `help:"User whose keys are bulk loaded" name:"init-usr-id" aliases:"init_usr_id"`
	Users        []int    `help:"Users replayed after the bulk load, in order" sep:","`
	DataDir      string   `help:"Directory holding the key files"`
	OutDir       string   `help:"Directory node info files are written to"`
	MetricsFile  string   `help:"Write prometheus metrics to this file at the end of the run"`
	ResultsDB    string   `help:"Append phase results to this sqlite database"`
	Verify       bool     `help:"Check the index against an ordered shadow after every phase"`
	MemoryBudget int64    `help:"Bytes available to data node slots, 0 for unlimited"`
	InsertFrac   *float64 `help:"Expected fraction of inserts in the workload" name:"insert-frac"`
	LogLevel     string   `help:"debug, info, warn or error"`
	LogFormat    string   `help:"text or json"`
}

func (c *cli) apply(cfg *config.Config) {
	if c.KeysFileType != "" {
		cfg.KeysFileType = c.KeysFileType
	}
	if c.InitUsrID != nil {
		cfg.SetInitUserID(*c.InitUsrID)
	}
	if len(c.Users) > 0 {
		cfg.Users = c.Users
	}
	if c.DataDir != "" {
		cfg.DataDir = c.DataDir
	}
	if c.OutDir != "" {
		cfg.OutDir = c.OutDir
	}
	if c.MetricsFile != "" {
		cfg.MetricsFile = c.MetricsFile
	}
	if c.ResultsDB != "" {
		cfg.ResultsDB = c.ResultsDB
	}
	if c.Verify {
		cfg.Verify = true
	}
	if c.MemoryBudget != 0 {
		cfg.Index.MemoryBudgetBytes = c.MemoryBudget
	}
	if c.InsertFrac != nil {
		cfg.Index.ExpectedInsertFrac = c.InsertFrac
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.LogFormat = c.LogFormat
	}
}

func main() {
	var params cli
	kong.Parse(&params, kong.Description("Two phase ALEX learned index benchmark."))

	if err := run(&params); err != nil {
		fmt.Fprintln(os.Stderr, "alex_bench:", err)
		os.Exit(1)
	}
}

func run(params *cli) error {
	cfg, err := config.Load(params.Config)
	if err != nil {
		return err
	}
	params.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	runner := workload.NewRunner(cfg, workload.WithLogger(logger), workload.WithRecorder(metrics.NewRecorder()))
	logger.Info("run started", "run_id", runner.RunID(), "init_user", cfg.InitUserID, "users", cfg.RemainingUsers())
	rep, err := runner.Run()
	if rep != nil {
		if summaryErr := rep.WriteSummary(os.Stdout); summaryErr != nil && err == nil {
			err = summaryErr
		}
	}
	return err
}
