package demo

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/confluentinc/ducktape-core/pkg/runner"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/confluentinc/ducktape-core/pkg/worker"
)

// Spawner launches worker subprocesses by re-invoking the current binary's
// "worker" subcommand, the way a real ducktape-core deployment would (spec.md
// §4.6/§5: workers are plain OS subprocesses, never containers or remote
// shells). Each subprocess resolves its test body from the small built-in
// catalog in testcases.go, standing in for a real loader's compiled classes.
type Spawner struct {
	// BinaryPath is the executable to re-invoke; if empty, os.Executable(),
	// falling back to os.Args[0] when that fails.
	BinaryPath string
	Stdout     *os.File
	Stderr     *os.File
}

// cmdProcess adapts *exec.Cmd to the runner.Process interface.
type cmdProcess struct {
	cmd *exec.Cmd
}

func (p *cmdProcess) Wait() error { return p.cmd.Wait() }
func (p *cmdProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// ExitCode reports the worker subprocess's exit code, or -1 if it hasn't
// exited yet. Satisfies runner's exitCoder interface.
func (p *cmdProcess) ExitCode() int {
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Spawn starts a worker subprocess for ctx, connecting it to the supervisor's
// IPC endpoint at addr under the given sourceID.
func (s *Spawner) Spawn(ctx types.TestContext, addr, sourceID string) (runner.Process, error) {
	binary := s.BinaryPath
	if binary == "" {
		var err error
		binary, err = os.Executable()
		if err != nil {
			binary = os.Args[0]
		}
	}

	argsJSON, err := json.Marshal(ctx.InjectedArgs)
	if err != nil {
		return nil, fmt.Errorf("demo: encode injected args: %w", err)
	}

	cmd := exec.Command(binary, "worker",
		"--addr", addr,
		"--source-id", sourceID,
		"--test-id", ctx.TestID(),
		"--test-index", strconv.Itoa(ctx.ScheduleIndex),
		"--function", ctx.Function,
		"--min-nodes", strconv.Itoa(ctx.ExpectedNodes()),
		"--ignore="+strconv.FormatBool(ctx.Ignore),
		"--args", string(argsJSON),
	)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("demo: start worker subprocess: %w", err)
	}
	return &cmdProcess{cmd: cmd}, nil
}

// RunWorker is the entry point cmd/ducktape-core's "worker" subcommand calls
// after parsing the flags Spawn constructs above. It connects back to addr,
// resolves the built-in test body for function, and drives it to completion.
func RunWorker(addr, sourceID, testID string, testIndex int, function string, minNodes int, ignore bool, injectedArgs map[string]any) error {
	tc, err := newCaseAdapter(function, minNodes)
	if err != nil {
		return err
	}

	client, err := worker.New(addr, sourceID, testID, testIndex)
	if err != nil {
		return err
	}
	defer client.Close()

	_, err = client.Run(tc, ignore, injectedArgs)
	return err
}
