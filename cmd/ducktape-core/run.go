package main

import (
	"fmt"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/demo"
	"github.com/confluentinc/ducktape-core/pkg/log"
	"github.com/confluentinc/ducktape-core/pkg/runner"
	"github.com/confluentinc/ducktape-core/pkg/scheduler"
	"github.com/confluentinc/ducktape-core/pkg/storage"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the built-in demo suite against a synthetic cluster",
	Long: `Run drives the supervisor's full lifecycle against pkg/demo's synthetic
Loader and Cluster provider: it schedules the demo suite's TestContexts,
spawns one worker subprocess per test via os/exec, and prints the aggregate
result summary once every test has finished.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("results-dir", "./ducktape-core-results", "Directory for persisted results")
	runCmd.Flags().Int("max-parallel", 2, "Maximum number of tests running concurrently")
	runCmd.Flags().Bool("exit-first", false, "Stop scheduling new tests after the first failure")
	runCmd.Flags().Bool("no-teardown", false, "Skip teardown on failure (diagnostic only, informational in the demo)")
	runCmd.Flags().Int("deflake", 1, "Number of attempts for a failing test before it's recorded FAIL")
	runCmd.Flags().Int("min-port", 30000, "Lower bound of the IPC listener port range")
	runCmd.Flags().Int("max-port", 30100, "Upper bound of the IPC listener port range")
	runCmd.Flags().Bool("debug", false, "Enable debug-level logging for this run")
	runCmd.Flags().Bool("fail-bad-cluster-utilization", false, "Carried in the session context; no component checks cluster utilization, so it changes no result")
	runCmd.Flags().Int("nodes", 4, "Number of synthetic nodes in the demo cluster")
	runCmd.Flags().Int("shrink-after", 0, "Retire one available node every N allocations (0 disables)")
	runCmd.Flags().String("config", "", "Optional YAML file overlaying these flag values")
	runCmd.Flags().String("metrics-addr", "", "Address to serve /metrics, /healthz, /readyz, /livez on (empty disables)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := runConfig{}
	cfg.ResultsDir, _ = cmd.Flags().GetString("results-dir")
	cfg.MaxParallel, _ = cmd.Flags().GetInt("max-parallel")
	cfg.ExitFirst, _ = cmd.Flags().GetBool("exit-first")
	cfg.NoTeardown, _ = cmd.Flags().GetBool("no-teardown")
	cfg.DeflakeNum, _ = cmd.Flags().GetInt("deflake")
	cfg.MinPort, _ = cmd.Flags().GetInt("min-port")
	cfg.MaxPort, _ = cmd.Flags().GetInt("max-port")
	cfg.Debug, _ = cmd.Flags().GetBool("debug")
	cfg.FailBadClusterUtilization, _ = cmd.Flags().GetBool("fail-bad-cluster-utilization")
	cfg.NumNodes, _ = cmd.Flags().GetInt("nodes")
	cfg.ShrinkAfter, _ = cmd.Flags().GetInt("shrink-after")
	cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")

	configPath, _ := cmd.Flags().GetString("config")
	if err := loadConfigFile(configPath, &cfg); err != nil {
		return err
	}

	if cfg.Debug {
		log.Init(log.Config{Level: log.DebugLevel})
	}

	sessionID := uuid.NewString()
	logger := log.WithSessionID(sessionID)
	logger.Info().Str("results_dir", cfg.ResultsDir).Int("nodes", cfg.NumNodes).Msg("starting run")

	suite, err := demo.Suite(sessionID)
	if err != nil {
		return fmt.Errorf("build demo suite: %w", err)
	}

	c, err := demo.NewCluster(demo.ClusterConfig{NumNodes: cfg.NumNodes, ShrinkAfter: cfg.ShrinkAfter})
	if err != nil {
		return fmt.Errorf("build demo cluster: %w", err)
	}

	sched := scheduler.New()
	for _, ctx := range suite {
		sched.Put(ctx)
	}

	if cfg.MetricsAddr != "" {
		ms := newMetricsServer(cfg.MetricsAddr, c, sched, Version)
		ms.start()
		defer ms.stop()
	}

	store, err := storage.NewBoltStore(cfg.ResultsDir)
	if err != nil {
		return fmt.Errorf("open results store: %w", err)
	}
	defer store.Close()
	if err := store.SaveSessionID(sessionID); err != nil {
		logger.Warn().Err(err).Msg("failed to persist session id")
	}

	session := types.SessionContext{
		SessionID:                 sessionID,
		ResultsDir:                cfg.ResultsDir,
		Debug:                     cfg.Debug,
		ExitFirst:                 cfg.ExitFirst,
		NoTeardown:                cfg.NoTeardown,
		MaxParallel:               cfg.MaxParallel,
		DeflakeNum:                cfg.DeflakeNum,
		FinishJoinTimeout:         10 * time.Second,
		TestRunnerTimeout:         30 * time.Second,
		FailBadClusterUtilization: cfg.FailBadClusterUtilization,
		MinPort:                   cfg.MinPort,
		MaxPort:                   cfg.MaxPort,
	}

	sup, err := runner.New(session, c, sched, &demo.Spawner{}, store)
	if err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}

	results, err := sup.Run()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	printSummary(results)
	if !results.GetAggregateSuccess() {
		return fmt.Errorf("%d of %d tests failed", results.NumFailed(), len(results.Items))
	}
	return nil
}

func printSummary(results types.Results) {
	fmt.Println()
	fmt.Println("Results:")
	for _, r := range results.Items {
		fmt.Printf("  %-50s %-8s %s\n", r.TestID, r.Status, r.Summary)
	}
	fmt.Println()
	fmt.Printf("%d passed, %d failed, %d flaky, %d ignored (%s)\n",
		results.NumPassed(), results.NumFailed(), results.NumFlaky(), results.NumIgnored(), results.RunTime())
}
