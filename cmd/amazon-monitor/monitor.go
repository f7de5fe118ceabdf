package main

import (
	"fmt"
	"io"
	"os"
	"time"
)

// runMonitor dispatches the monitor subcommands.
func runMonitor(args []string) {
	if len(args) < 1 {
		printMonitorUsage(os.Stderr)
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		runMonitorAdd(args[1:])
	case "list":
		runMonitorList(args[1:])
	case "run":
		runMonitorRun(args[1:])
	case "history":
		runMonitorHistory(args[1:])
	case "remove":
		runMonitorRemove(args[1:])
	case "pause":
		runMonitorSetActive(args[1:], false)
	case "resume":
		runMonitorSetActive(args[1:], true)
	case "-h", "--help", "help":
		printMonitorUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown monitor command: %s\n\n", args[0])
		printMonitorUsage(os.Stderr)
		os.Exit(1)
	}
}

func printMonitorUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  amazon-monitor monitor <command> [options]

Commands:
  add      Create a monitor for a keyword
  list     List all monitors
  run      Execute a monitor immediately
  history  Show run history
  remove   Delete a monitor (history is retained)
  pause    Deactivate a monitor
  resume   Reactivate a monitor`)
}

// monitorApp builds the wired application for a monitor subcommand.
func monitorApp(configFile, logLevel string) *app {
	log := setupLogger(logLevel, os.Stderr)
	appCfg := loadAndValidateConfig(configFile, log)

	a, err := buildApp(appCfg, log)
	if err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}
	return a
}

func runMonitorAdd(args []string) {
	fs := newFlagSet("monitor add", "Usage: amazon-monitor monitor add [options] <keyword>")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	category := fs.String("category", "All", "Category filter")
	email := fs.String("email", "", "Notification email address")
	frequency := fs.String("frequency", "daily", "Frequency: daily, weekly or monthly")
	logLevel := fs.String("loglevel", "warn", "Log level")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: keyword argument is required")
		fs.Usage()
		os.Exit(1)
	}

	a := monitorApp(*configFile, *logLevel)
	defer a.Close()

	m, err := a.registry.Add(fs.Arg(0), *category, *email, *frequency)
	if err != nil {
		a.log.Fatalf("Failed to create monitor: %v", err)
	}
	printJSON(m)
}

func runMonitorList(args []string) {
	fs := newFlagSet("monitor list", "Usage: amazon-monitor monitor list [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a := monitorApp(*configFile, *logLevel)
	defer a.Close()

	monitors := a.registry.List()
	if len(monitors) == 0 {
		fmt.Println("No monitors configured.")
		return
	}

	for _, m := range monitors {
		state := "active"
		if !m.Active {
			state = "paused"
		}
		lastRun := "never"
		if m.LastRun != nil {
			lastRun = m.LastRun.Format(time.RFC3339)
		}
		fmt.Printf("%s  [%s]\n", m.ID, state)
		fmt.Printf("    Keyword:   %s\n", m.Keyword)
		if m.Category != "" && m.Category != "All" {
			fmt.Printf("    Category:  %s\n", m.Category)
		}
		if m.Email != "" {
			fmt.Printf("    Email:     %s\n", m.Email)
		}
		fmt.Printf("    Frequency: %s\n", m.Frequency)
		fmt.Printf("    Last run:  %s\n\n", lastRun)
	}
}

func runMonitorRun(args []string) {
	fs := newFlagSet("monitor run", "Usage: amazon-monitor monitor run [options] <monitor-id>")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: monitor-id argument is required")
		fs.Usage()
		os.Exit(1)
	}

	a := monitorApp(*configFile, *logLevel)
	defer a.Close()

	ctx := signalContext(a.log)
	out, err := a.registry.Execute(ctx, fs.Arg(0))
	if err != nil {
		a.log.Errorf("Monitor run failed: %v", err)
	}
	printJSON(out.WithAffiliateURLs(a.cfg.AffiliateTag))
	if err != nil {
		os.Exit(1)
	}
}

func runMonitorHistory(args []string) {
	fs := newFlagSet("monitor history", "Usage: amazon-monitor monitor history [options] [monitor-id]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a := monitorApp(*configFile, *logLevel)
	defer a.Close()

	runs := a.registry.History(fs.Arg(0))
	for i := range runs {
		runs[i] = runs[i].WithAffiliateURLs(a.cfg.AffiliateTag)
	}
	printJSON(runs)
}

func runMonitorRemove(args []string) {
	fs := newFlagSet("monitor remove", "Usage: amazon-monitor monitor remove [options] <monitor-id>")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: monitor-id argument is required")
		fs.Usage()
		os.Exit(1)
	}

	a := monitorApp(*configFile, *logLevel)
	defer a.Close()

	if err := a.registry.Remove(fs.Arg(0)); err != nil {
		a.log.Fatalf("Failed to remove monitor: %v", err)
	}
	fmt.Printf("Monitor %s removed. Run history is retained.\n", fs.Arg(0))
}

func runMonitorSetActive(args []string, active bool) {
	name := "monitor pause"
	if active {
		name = "monitor resume"
	}
	fs := newFlagSet(name, fmt.Sprintf("Usage: amazon-monitor %s [options] <monitor-id>", name))
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: monitor-id argument is required")
		fs.Usage()
		os.Exit(1)
	}

	a := monitorApp(*configFile, *logLevel)
	defer a.Close()

	if err := a.registry.SetActive(fs.Arg(0), active); err != nil {
		a.log.Fatalf("Failed to update monitor: %v", err)
	}
	if active {
		fmt.Printf("Monitor %s resumed.\n", fs.Arg(0))
	} else {
		fmt.Printf("Monitor %s paused.\n", fs.Arg(0))
	}
}
