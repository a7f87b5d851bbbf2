package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hiroki-koketsu/go-todo/internal/client"
	"github.com/hiroki-koketsu/go-todo/internal/config"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/ui"
	"github.com/hiroki-koketsu/go-todo/internal/view"
)

const usage = `Usage: todo [flags] [command]

Commands:
  (none)          open the interactive list (requires a terminal)
  ls              print all tasks, newest first
  add <title>     create a task
  toggle <id>     flip a task between open and done
  rm <id>         delete a task

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "todo:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	apiURL := fs.String("api", cfg.APIURL, "task API base URL")
	logFile := fs.String("log", cfg.LogFile, "diagnostic log file")
	timeout := fs.Duration("timeout", cfg.Timeout, "per-request timeout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	logger, closeLog, err := openLog(*logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	v := view.New(client.New(*apiURL, *timeout), logger)

	rest := fs.Args()
	if len(rest) == 0 {
		if !ui.IsTTY(stdout) {
			return listTasks(ctx, v, stdout)
		}
		return ui.Run(ctx, v, *timeout)
	}

	switch cmd, params := rest[0], rest[1:]; cmd {
	case "ls", "list":
		return listTasks(ctx, v, stdout)
	case "add":
		title := strings.TrimSpace(strings.Join(params, " "))
		if title == "" {
			return errors.New("add: title is required")
		}
		if err := v.Add(ctx, title); err != nil {
			return fmt.Errorf("add: %w", err)
		}
		printTask(stdout, v.Tasks()[0])
		return nil
	case "toggle", "done":
		if len(params) != 1 {
			return errors.New("toggle: exactly one id is required")
		}
		if err := v.Load(ctx); err != nil {
			return fmt.Errorf("toggle: %w", err)
		}
		if err := v.Toggle(ctx, params[0]); err != nil {
			if errors.Is(err, view.ErrUnknownTask) || client.IsNotFound(err) {
				return fmt.Errorf("toggle: no task with id %q", params[0])
			}
			return fmt.Errorf("toggle %s: %w", params[0], err)
		}
		for _, task := range v.Tasks() {
			if task.ID == params[0] {
				printTask(stdout, task)
			}
		}
		return nil
	case "rm", "delete":
		if len(params) == 0 {
			return errors.New("rm: at least one id is required")
		}
		for _, id := range params {
			if err := v.Remove(ctx, id); err != nil {
				return fmt.Errorf("rm %s: %w", id, err)
			}
		}
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func listTasks(ctx context.Context, v *view.View, w io.Writer) error {
	if err := v.Load(ctx); err != nil {
		return fmt.Errorf("ls: %w", err)
	}
	for _, task := range v.Tasks() {
		printTask(w, task)
	}
	return nil
}

func printTask(w io.Writer, task model.Task) {
	box := "[ ]"
	if task.Completed {
		box = "[x]"
	}
	fmt.Fprintf(w, "%s %s  %s\n", box, task.ID, task.Title)
}

// openLog opens the diagnostic log. The interactive screen owns stdout, so
// client failures go to a file instead.
func openLog(path string) (*log.Logger, func(), error) {
	if path == "" || path == "-" {
		return log.NewWithOptions(os.Stderr, log.Options{Prefix: "todo"}), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := log.NewWithOptions(f, log.Options{
		Level:           log.DebugLevel,
		Formatter:       log.LogfmtFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "todo",
	})
	return logger, func() { f.Close() }, nil
}
