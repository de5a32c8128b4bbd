package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"

	"github.com/p-arndt/arenacall/algorithm"
	"github.com/p-arndt/arenacall/internal/config"
	"github.com/p-arndt/arenacall/internal/store"
)

// historyRecorder stores every invocation made by one client.
type historyRecorder struct {
	store      *store.Store
	processDir string
}

func (r *historyRecorder) Record(inv *algorithm.Invocation) error {
	rec := &store.Invocation{
		ProcessDir:  r.processDir,
		Name:        inv.Name,
		Kind:        inv.Kind.String(),
		Args:        inv.Args,
		Status:      inv.Result.Status,
		TimeUsage:   inv.Result.Usage.Time,
		MemoryUsage: inv.Result.Usage.Memory,
		Error:       inv.Error,
		StartedAt:   inv.StartedAt,
		DurationMs:  inv.Duration.Milliseconds(),
	}
	if inv.Result.HasValue {
		v := inv.Result.Value
		rec.ReturnValue = &v
	}
	return r.store.CreateInvocation(rec)
}

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("arenacall history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "path to arenacall.yaml or arenacall.toml")
	dbPath := fs.String("db", "", "history database (default from config)")
	name := fs.String("name", "", "only show calls of this function or procedure")
	limit := fs.Int("limit", 0, "maximum number of calls to show (default from config)")
	prune := fs.Duration("prune", 0, "delete calls older than this before listing")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := newLogger(stderr, slog.LevelInfo)
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}
	logger = newLogger(stderr, cfg.Level())

	path := *dbPath
	if path == "" {
		path = cfg.DBPath
	}
	if path == "" {
		logger.Error("no history database: pass -db or set db_path")
		return 2
	}
	n := *limit
	if n <= 0 {
		n = cfg.HistoryLimit
	}

	st, err := store.New(path, 0)
	if err != nil {
		logger.Error("open history", "path", path, "error", err)
		return 1
	}
	defer st.Close()

	if *prune > 0 {
		removed, err := st.Prune(time.Now().Add(-*prune))
		if err != nil {
			logger.Error("prune history", "error", err)
			return 1
		}
		logger.Info("pruned history", "removed", removed)
	}

	if err := listHistory(stdout, st, *name, n); err != nil {
		logger.Error("list history", "error", err)
		return 1
	}
	return 0
}

func listHistory(w io.Writer, st *store.Store, name string, limit int) error {
	var invocations []*store.Invocation
	var err error
	if name != "" {
		invocations, err = st.ListInvocationsByName(name, limit)
	} else {
		invocations, err = st.ListInvocations(limit)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tCALL\tSTATUS\tRETURN\tTIME\tMEMORY")
	for _, inv := range invocations {
		ret := "-"
		if inv.ReturnValue != nil {
			ret = strconv.Itoa(*inv.ReturnValue)
		}
		status := inv.Status
		if inv.Error != "" {
			status = "error"
		}
		fmt.Fprintf(tw, "%s ago\t%s\t%s\t%s\t%d\t%s\n",
			units.HumanDuration(time.Since(inv.StartedAt)),
			formatCall(inv.Name, inv.Args),
			status, ret, inv.TimeUsage, memorySize(inv.MemoryUsage))
	}
	return tw.Flush()
}

func formatCall(name string, args []int) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strconv.Itoa(a)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
