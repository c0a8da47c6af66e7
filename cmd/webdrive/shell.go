package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/fruitsalade/webdrive/internal/dashboard"
	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/internal/metrics"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

var shellMetricsAddr string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Browse interactively",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	shellCmd.Flags().StringVar(&shellMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
}

var shellCommands = []string{
	"cd", "clear", "debug", "exit", "filter", "help", "ls", "mkdir", "purge", "pwd", "recent", "reload",
	"rename", "restore", "rm", "search", "shared", "sort", "star", "starred", "storage", "suggest",
	"trash", "up", "upload",
}

type shell struct {
	s     *dashboard.Session
	liner *liner.State
	out   io.Writer
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	addr := shellMetricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logging.Info("metrics listening", logging.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server failed", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sh := &shell{s: s, out: os.Stdout}
	return sh.run(ctx)
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func historyFile() string {
	return filepath.Join(cfg.StateDir, "history")
}

func (sh *shell) run(ctx context.Context) error {
	sh.liner = liner.NewLiner()
	defer sh.liner.Close()

	sh.liner.SetCtrlCAborts(true)
	sh.liner.SetCompleter(sh.complete)

	if f, err := os.Open(historyFile()); err == nil {
		sh.liner.ReadHistory(f)
		f.Close()
	}
	defer sh.saveHistory()

	fmt.Fprintf(sh.out, "webdrive - %s\n", sh.s.User().Email)
	fmt.Fprintln(sh.out, "Type 'help' for available commands.")
	sh.show(sh.s.LoadRoot(ctx))

	for {
		line, err := sh.liner.Prompt(sh.prompt())
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(sh.out, "\nBye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.liner.AppendHistory(line)

		parts := strings.Fields(line)
		if cmd := strings.ToLower(parts[0]); cmd == "exit" || cmd == "quit" || cmd == "q" {
			fmt.Fprintln(sh.out, "Bye!")
			return nil
		}
		if err := sh.dispatch(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
			fmt.Fprintf(sh.out, "Error: %s\n", describe(err))
		}
	}
}

func (sh *shell) saveHistory() {
	if f, err := os.Create(historyFile()); err == nil {
		sh.liner.WriteHistory(f)
		f.Close()
	}
}

func (sh *shell) prompt() string {
	l := sh.s.Current()
	switch l.Mode {
	case dashboard.ModeFolder, dashboard.ModeTrash:
		return crumbPath(l) + "> "
	}
	return "[" + l.Mode.String() + "]> "
}

func (sh *shell) complete(line string) []string {
	var out []string
	fields := strings.Fields(line)
	if len(fields) <= 1 && !strings.HasSuffix(line, " ") {
		for _, c := range shellCommands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
		return out
	}

	cmd := fields[0]
	prefix := ""
	if len(fields) > 1 && !strings.HasSuffix(line, " ") {
		prefix = fields[len(fields)-1]
	}
	head := strings.TrimSuffix(line, prefix)
	for _, it := range sh.s.Current().Items() {
		if cmd == "cd" && !it.IsFolder() {
			continue
		}
		if strings.HasPrefix(it.Name, prefix) && !strings.Contains(it.Name, " ") {
			out = append(out, head+it.Name)
		}
	}
	sort.Strings(out)
	return out
}

func (sh *shell) show(l dashboard.Listing, err error) {
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %s\n", describe(err))
	}
	printListing(sh.out, l)
}

func (sh *shell) dispatch(ctx context.Context, cmd string, args []string) error {
	s := sh.s
	arg := strings.Join(args, " ")

	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "clear", "cls":
		fmt.Fprint(sh.out, "\033[H\033[2J")
	case "debug":
		switch arg {
		case "on":
			logging.SetLevel("debug")
		case "off":
			logging.SetLevel(cfg.LogLevel)
		}
		fmt.Fprintf(sh.out, "log level: %s\n", logging.Level())

	case "ls":
		printListing(sh.out, s.Current())
	case "pwd":
		fmt.Fprintln(sh.out, crumbPath(s.Current()))
	case "reload":
		sh.show(s.Reload(ctx))
	case "cd":
		switch arg {
		case "", "/":
			sh.show(s.LoadRoot(ctx))
		case "..":
			sh.show(s.Up(ctx))
		default:
			if strings.Contains(arg, "/") {
				sh.show(s.Walk(ctx, arg))
				return nil
			}
			it, err := s.Find(arg)
			if err != nil {
				return err
			}
			sh.show(s.Enter(ctx, it))
		}
	case "up":
		sh.show(s.Up(ctx))
	case "trash":
		sh.show(s.LoadTrash(ctx))
	case "starred":
		sh.show(s.LoadStarred(ctx))
	case "recent":
		sh.show(s.LoadRecent(ctx))
	case "shared":
		sh.show(s.LoadSharedByMe(ctx))
	case "search":
		sh.show(s.Search(ctx, arg, dashboard.SearchOptions{}))
	case "suggest":
		printSuggestions(sh.out, s.Suggestions(ctx, arg))

	case "sort":
		if len(args) == 0 {
			printListing(sh.out, s.SetSort(dashboard.SortSpec{}))
			return nil
		}
		order := string(protocol.Asc)
		if len(args) > 1 {
			order = args[1]
		}
		spec, _, err := viewSettings(args[0], order, "")
		if err != nil {
			return err
		}
		printListing(sh.out, s.SetSort(spec))
	case "filter":
		f, ok := dashboard.ParseFilter(arg)
		if !ok {
			return fmt.Errorf("unknown filter %q", arg)
		}
		printListing(sh.out, s.SetFilter(f))

	case "star":
		it, err := s.Find(arg)
		if err != nil {
			return err
		}
		l, _, err := s.ToggleStar(it)
		sh.show(l, err)
	case "mkdir":
		sh.show(s.CreateFolder(ctx, arg))
	case "rm":
		it, err := s.Find(arg)
		if err != nil {
			return err
		}
		sh.show(s.Delete(ctx, it))
	case "restore":
		it, err := s.Find(arg)
		if err != nil {
			return err
		}
		sh.show(s.Restore(ctx, it))
	case "purge":
		it, err := s.Find(arg)
		if err != nil {
			return err
		}
		answer, err := sh.liner.Prompt(fmt.Sprintf("Delete %s permanently? (yes/no): ", it.Name))
		if err != nil || strings.ToLower(strings.TrimSpace(answer)) != "yes" {
			fmt.Fprintln(sh.out, "Cancelled")
			return nil
		}
		sh.show(s.PermanentDelete(ctx, it))
	case "rename":
		if len(args) < 2 {
			return errors.New("usage: rename <name> <new name>")
		}
		it, err := s.Find(args[0])
		if err != nil {
			return err
		}
		sh.show(s.Rename(ctx, it, strings.Join(args[1:], " ")))
	case "upload":
		if len(args) == 0 {
			return errors.New("usage: upload <file-or-dir>...")
		}
		l, err := uploadPaths(ctx, s, args, printProgress)
		fmt.Fprintln(os.Stderr)
		sh.show(l, err)
	case "storage":
		acct, err := s.Account(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "%s plan, %s\n", acct.Plan, storageLine(acct))

	default:
		fmt.Fprintf(sh.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return nil
}

func (sh *shell) printHelp() {
	fmt.Fprint(sh.out, `Commands:
  ls                      show the current view
  cd <name|path|..|/>     open a folder
  up                      go to the parent folder
  pwd                     show the current path
  reload                  fetch the current view again
  trash, starred, recent, shared
                          switch view
  search <query>          search files and folders
  suggest <text>          show search suggestions
  sort <key> [asc|desc]   name, modified, size or type; no key resets
  filter <all|files|folders>
  star <name>             toggle a star
  mkdir <name>            create a folder here
  rename <name> <new>     rename an item
  rm <name>               move an item to the trash
  restore <name>          restore a trashed item
  purge <name>            delete a trashed item for good
  upload <path>...        upload local files or directories here
  storage                 show storage usage
  debug [on|off]          toggle request logging
  exit                    leave
`)
}
