package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/docker/go-units"

	"github.com/p-arndt/arenacall/algorithm"
	"github.com/p-arndt/arenacall/internal/config"
	"github.com/p-arndt/arenacall/internal/store"
	"github.com/p-arndt/arenacall/protocol"
)

type callOptions struct {
	Name      string
	Args      []protocol.Arg
	Procedure bool
	Source    string
	Interface string
	DBPath    string
}

func runCall(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("arenacall", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "path to arenacall.yaml or arenacall.toml")
	dbPath := fs.String("db", "", "record the call in this history database")
	procedure := fs.Bool("procedure", false, "call a procedure (no return value)")
	source := fs.String("source", "", "submitted source path (default $SUBMISSION_FILE_SOURCE)")
	iface := fs.String("interface", "", "interface description path (default $SUBMISSION_FILE_INTERFACE)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: arenacall [flags] NAME [ARGS...]")
		fmt.Fprintln(stderr, "       arenacall history [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	logger := newLogger(stderr, slog.LevelInfo)
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}
	logger = newLogger(stderr, cfg.Level())

	callArgs, err := parseArgs(fs.Args()[1:])
	if err != nil {
		logger.Error("parse arguments", "error", err)
		return 2
	}

	opts := callOptions{
		Name:      fs.Arg(0),
		Args:      callArgs,
		Procedure: *procedure,
		Source:    *source,
		Interface: *iface,
		DBPath:    *dbPath,
	}
	if err := call(cfg, opts, stdout, logger); err != nil {
		logger.Error("call failed", "name", opts.Name, "error", err)
		return 1
	}
	return 0
}

// call connects to the driver, performs one invocation and prints it.
func call(cfg *config.Config, opts callOptions, stdout io.Writer, logger *slog.Logger) error {
	source, err := submissionPath(opts.Source, "source")
	if err != nil {
		return err
	}
	iface, err := submissionPath(opts.Interface, "interface")
	if err != nil {
		return err
	}

	alg, err := algorithm.Open(algorithm.Config{
		SandboxDir:    cfg.SandboxDir,
		LanguageName:  cfg.LanguageName,
		HandshakeLock: cfg.HandshakeLock,
	}, source, iface, logger)
	if err != nil {
		return err
	}
	defer alg.Close()

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath != "" {
		st, err := store.New(dbPath, 0)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer st.Close()
		alg.SetRecorder(&historyRecorder{store: st, processDir: alg.Endpoint().ProcessDir})
	}

	if opts.Procedure {
		err = alg.CallProcedure(opts.Name, opts.Args...)
	} else {
		_, err = alg.CallFunction(opts.Name, opts.Args...)
	}
	if err != nil {
		return err
	}

	printResult(stdout, alg.LastResult())
	return nil
}

// submissionPath falls back to SUBMISSION_FILE_<PARAM> when no flag was given.
func submissionPath(flagValue, param string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	v, err := algorithm.SubmissionParameter(param)
	if err != nil {
		return "", fmt.Errorf("no -%s flag: %w", param, err)
	}
	return v, nil
}

func parseArgs(raw []string) ([]protocol.Arg, error) {
	args := make([]protocol.Arg, len(raw))
	for i, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %q is not an integer", i+1, s)
		}
		args[i] = protocol.Scalar(n)
	}
	return args, nil
}

func printResult(w io.Writer, res algorithm.Result) {
	fmt.Fprintf(w, "status: %s\n", res.Status)
	if res.HasValue {
		fmt.Fprintf(w, "return: %d\n", res.Value)
	}
	fmt.Fprintf(w, "time: %d\n", res.Usage.Time)
	fmt.Fprintf(w, "memory: %d (%s)\n", res.Usage.Memory, memorySize(res.Usage.Memory))
}

// The driver reports memory in KiB.
func memorySize(kib int) string {
	return units.BytesSize(float64(kib) * 1024)
}
