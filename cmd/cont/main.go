// Command cont is the container control shell: it boots a
// Kernel bound to a root directory, then reads one control-API command
// per line until EOF or "exit" — the in-process analogue of a user
// typing ccreate/cstart/cpause/cresume/cstop/cfork/cps at the reference
// kernel's console, since a real kernel's state cannot outlive a single
// cont process the way this port's in-memory Kernel cannot either.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/kcont/internal/kernel"
	"github.com/cuemby/kcont/internal/kernerr"
	"github.com/cuemby/kcont/internal/klog"
	"github.com/cuemby/kcont/pkg/kpath"
	"github.com/cuemby/kcont/pkg/kprog"
	"github.com/spf13/cobra"
)

var (
	flagRootPath string
	flagScript   string
	flagNCont    int
	flagNProc    int
	flagCPUs     int
	flagLogLevel string
	flagLogJSON  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cont: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cont",
	Short: "Container control shell for the in-kernel container subsystem",
	Long: `cont boots the container-aware process lifecycle manager and drives
it from a line-oriented command shell: create, start, pause, resume,
stop, cfork, and ps — one command per line, read from stdin or a
--script file.`,
	RunE: runShell,
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Output logs in JSON format")

	rootCmd.Flags().StringVar(&flagRootPath, "rootpath", mustGetwd(), "Root directory the boot container owns")
	rootCmd.Flags().StringVar(&flagScript, "script", "", "Read commands from this file instead of stdin")
	rootCmd.Flags().IntVar(&flagNCont, "ncont", kernel.DefaultNCont, "Container table size")
	rootCmd.Flags().IntVar(&flagNProc, "nproc", kernel.DefaultNProc, "Per-container process table size")
	rootCmd.Flags().IntVar(&flagCPUs, "cpus", 1, "Number of simulated scheduler CPUs")
}

func initLogging() {
	klog.Init(klog.Config{
		Level:      klog.Level(flagLogLevel),
		JSONOutput: flagLogJSON,
	})
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "/"
	}
	return wd
}

func runShell(cmd *cobra.Command, args []string) error {
	k := kernel.New(kernel.Config{NCont: flagNCont, NProc: flagNProc, CPUs: flagCPUs})
	if err := k.Boot(flagRootPath, kprog.Init()); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	defer func() {
		k.Shutdown()
	}()

	in := os.Stdin
	if flagScript != "" {
		f, err := os.Open(flagScript)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := dispatch(k, line); err != nil {
			fmt.Fprintf(os.Stderr, "cont: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

// dispatch runs a single command line against the booted kernel,
// mirroring the reference cont.c's argv[1]-dispatched subcommands.
func dispatch(k *kernel.Kernel, line string) error {
	fields := strings.Fields(line)
	verb, rest := fields[0], fields[1:]

	switch verb {
	case "create":
		if len(rest) != 1 {
			return fmt.Errorf("usage: create <path>")
		}
		cid, err := k.Create(rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("container created: cid=%d\n", cid)

	case "start":
		if len(rest) != 1 {
			return fmt.Errorf("usage: start <name>")
		}
		if err := checkPolicy(k, rest[0]); err != nil {
			return err
		}
		cid, err := k.Start(rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("container started: cid=%d\n", cid)

	case "pause":
		if len(rest) != 1 {
			return fmt.Errorf("usage: pause <name>")
		}
		if err := k.Pause(rest[0]); err != nil {
			return err
		}
		fmt.Println("container paused")

	case "resume":
		if len(rest) != 1 {
			return fmt.Errorf("usage: resume <name>")
		}
		if err := checkPolicy(k, rest[0]); err != nil {
			return err
		}
		if err := k.Resume(rest[0]); err != nil {
			return err
		}
		fmt.Println("container resumed")

	case "stop":
		if len(rest) != 1 {
			return fmt.Errorf("usage: stop <name>")
		}
		if err := k.Stop(rest[0]); err != nil {
			return err
		}
		fmt.Println("container stopped")

	case "cfork":
		if len(rest) < 1 {
			return fmt.Errorf("usage: cfork <name> [sleep-seconds | spin-n]")
		}
		entry := kprog.Spin(10)
		if len(rest) >= 2 {
			if n, isSpin := strings.CutPrefix(rest[1], "spin-"); isSpin {
				if count, err := strconv.Atoi(n); err == nil {
					entry = kprog.Spin(count)
				}
			} else if secs, err := strconv.Atoi(rest[1]); err == nil {
				entry = kprog.Sleep(time.Duration(secs) * time.Second)
			}
		}
		pid, err := k.CFork(rest[0], entry)
		if err != nil {
			return err
		}
		fmt.Printf("forked: pid=%d\n", pid)

	case "ps":
		printPS(k)

	default:
		return fmt.Errorf("unknown command %q", verb)
	}
	return nil
}

// checkPolicy implements the CLI-side rootpath confinement check
// start/resume require: the container's rootpath must be a path-prefix
// of the caller's cwd. The kernel itself does not enforce this.
func checkPolicy(k *kernel.Kernel, name string) error {
	rootPath, err := k.RootDirOf(name)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getcwd: %w", err)
	}
	if !kpath.IsPrefix(kpath.CwdOf(cwd), rootPath) {
		return fmt.Errorf("%w: has to be in its root directory", kernerr.ErrPolicy)
	}
	return nil
}

func printPS(k *kernel.Kernel) {
	snaps := k.PS()
	fmt.Printf("%-6s %-15s %-8s %s\n", "CID", "NAME", "STATE", "PROCS")
	for _, c := range snaps {
		var procs []string
		for _, p := range c.Procs {
			procs = append(procs, fmt.Sprintf("%d:%s:%s", p.PID, p.Name, p.State))
		}
		fmt.Printf("%-6d %-15s %-8s %s\n", c.CID, c.Name, c.State, strings.Join(procs, " "))
	}
}
