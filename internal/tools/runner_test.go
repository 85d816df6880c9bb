package tools

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/lookingglass/internal/testutil/testlog"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("runner fixtures use /bin/sh")
	}
}

func TestExecRunnerCapturesStreams(t *testing.T) {
	testlog.Start(t)
	skipWithoutShell(t)

	r := ExecRunner{Timeout: 5 * time.Second}
	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(string(res.Stdout)) != "out" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
	if strings.TrimSpace(string(res.Stderr)) != "err" {
		t.Fatalf("unexpected stderr %q", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
}

func TestExecRunnerArgumentsAreNotShellParsed(t *testing.T) {
	testlog.Start(t)
	skipWithoutShell(t)

	r := ExecRunner{Timeout: 5 * time.Second}
	res, err := r.Run(context.Background(), "echo", "a;b", "$(id)", "`x`")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "a;b $(id) `x`" {
		t.Fatalf("arguments were reinterpreted: %q", got)
	}
}

func TestExecRunnerNonzeroExitIsNotAnError(t *testing.T) {
	testlog.Start(t)
	skipWithoutShell(t)

	r := ExecRunner{Timeout: 5 * time.Second}
	res, err := r.Run(context.Background(), "sh", "-c", "echo partial; echo lost >&2; exit 3")
	if err != nil {
		t.Fatalf("expected nonzero exit to be returned as a result, got %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(string(res.Stdout), "partial") {
		t.Fatalf("expected stdout to be captured, got %q", res.Stdout)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	testlog.Start(t)

	r := ExecRunner{Timeout: time.Second}
	_, err := r.Run(context.Background(), "lookingglass-missing-tool-7f3a")
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}

	_, err = r.Run(context.Background(), "/nonexistent/dir/ping", "-c", "1")
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound for explicit path, got %v", err)
	}
}

func TestExecRunnerEmptyCommand(t *testing.T) {
	testlog.Start(t)

	_, err := ExecRunner{}.Run(context.Background(), "")
	if !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestExecRunnerTimeoutKillsProcess(t *testing.T) {
	testlog.Start(t)
	skipWithoutShell(t)

	r := ExecRunner{Timeout: 100 * time.Millisecond}
	start := time.Now()
	_, err := r.Run(context.Background(), "sh", "-c", "sleep 5")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout did not terminate the process quickly: %s", elapsed)
	}
}

func TestExecRunnerTimeoutKillsForkedChildren(t *testing.T) {
	testlog.Start(t)
	skipWithoutShell(t)

	// The background sleep inherits stdout; without a group kill Wait would
	// block on the pipe until WaitDelay.
	r := ExecRunner{Timeout: 100 * time.Millisecond}
	start := time.Now()
	_, err := r.Run(context.Background(), "sh", "-c", "sleep 5 & sleep 5")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Fatalf("forked child held the run open: %s", elapsed)
	}
}

func TestExecRunnerOutputLimitCombinesStreams(t *testing.T) {
	testlog.Start(t)
	skipWithoutShell(t)

	r := ExecRunner{Timeout: 5 * time.Second, MaxOutput: 64}
	res, err := r.Run(context.Background(), "sh", "-c", "printf '%040d' 0; printf '%040d' 0 >&2")
	if !errors.Is(err, ErrOutputLimit) {
		t.Fatalf("expected ErrOutputLimit, got %v", err)
	}
	if total := len(res.Stdout) + len(res.Stderr); total != 64 {
		t.Fatalf("expected 64 captured bytes across streams, got %d", total)
	}
}

func TestExecRunnerOutputLimitStopsRunawayProcess(t *testing.T) {
	testlog.Start(t)
	skipWithoutShell(t)

	r := ExecRunner{Timeout: 10 * time.Second, MaxOutput: 1024}
	start := time.Now()
	_, err := r.Run(context.Background(), "yes")
	if !errors.Is(err, ErrOutputLimit) {
		t.Fatalf("expected ErrOutputLimit, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("runaway process was not stopped at the limit: %s", elapsed)
	}
}

func TestExecRunnerConcurrentCallsDoNotShareBuffers(t *testing.T) {
	testlog.Start(t)
	skipWithoutShell(t)

	r := ExecRunner{Timeout: 5 * time.Second}
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	var wg sync.WaitGroup
	errs := make(chan error, len(words))
	for _, word := range words {
		wg.Add(1)
		go func(word string) {
			defer wg.Done()
			res, err := r.Run(context.Background(), "sh", "-c", `for i in 1 2 3; do echo "$0"; done`, word)
			if err != nil {
				errs <- err
				return
			}
			want := strings.Repeat(word+"\n", 3)
			if string(res.Stdout) != want {
				errs <- errors.New("cross-talk: got " + string(res.Stdout) + " want " + want)
			}
		}(word)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
