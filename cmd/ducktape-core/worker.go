package main

import (
	"encoding/json"
	"fmt"

	"github.com/confluentinc/ducktape-core/pkg/demo"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run a single test's worker lifecycle (internal; spawned by run)",
	Hidden: true,
	RunE:   runWorker,
}

func init() {
	workerCmd.Flags().String("addr", "", "Supervisor IPC address")
	workerCmd.Flags().String("source-id", "", "Unique IPC source id for this worker")
	workerCmd.Flags().String("test-id", "", "Canonical test id")
	workerCmd.Flags().Int("test-index", 0, "Schedule index disambiguating deflake re-runs")
	workerCmd.Flags().String("function", "", "Built-in test function to run")
	workerCmd.Flags().Int("min-nodes", 0, "Minimum cluster size the test requires")
	workerCmd.Flags().Bool("ignore", false, "Short-circuit with an ignored result")
	workerCmd.Flags().String("args", "{}", "JSON-encoded injected args")

	for _, name := range []string{"addr", "source-id", "test-id", "function"} {
		workerCmd.MarkFlagRequired(name)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	sourceID, _ := cmd.Flags().GetString("source-id")
	testID, _ := cmd.Flags().GetString("test-id")
	testIndex, _ := cmd.Flags().GetInt("test-index")
	function, _ := cmd.Flags().GetString("function")
	minNodes, _ := cmd.Flags().GetInt("min-nodes")
	ignore, _ := cmd.Flags().GetBool("ignore")
	argsJSON, _ := cmd.Flags().GetString("args")

	var injectedArgs map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &injectedArgs); err != nil {
		return fmt.Errorf("decode --args: %w", err)
	}

	return demo.RunWorker(addr, sourceID, testID, testIndex, function, minNodes, ignore, injectedArgs)
}
