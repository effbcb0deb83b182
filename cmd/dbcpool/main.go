package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/squadracorsepolito/dbcpool/dbc"
	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/pool"
)

func usage() {
	fmt.Fprint(os.Stderr, `dbcpool decodes and encodes CAN frames described by a DBC file.

Usage:

	dbcpool <command> [arguments]

The commands are:

	inspect     print the compiled signals of a DBC file, optionally decoding a frame
	listen      decode the frames of a SocketCAN interface
	send        encode signal values and transmit the frame
	help        display this help prompt

Use "dbcpool <command> -h" for the arguments of a command.
`)
}

func main() {
	flag.CommandLine.Usage = usage
	flag.Parse()

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	command := flag.Arg(0)

	var err error
	switch command {
	case "inspect":
		err = runInspect(flag.Args()[1:])
	case "listen":
		err = runListen(ctx, flag.Args()[1:])
	case "send":
		err = runSend(ctx, flag.Args()[1:])
	case "", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "dbcpool %s: unknown command\n", command)
		fmt.Fprintln(os.Stderr, "Run 'dbcpool help' for usage")
		os.Exit(2)
	}

	if err != nil {
		internal.NewLogger(string(internal.StageKindCLI), command).Error("command failed", err)
		cancelCtx()
		os.Exit(1)
	}
}

type commonFlags struct {
	configPath string
	dbcPath    string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.configPath, "c", "", "YAML configuration file")
	fs.StringVar(&f.dbcPath, "dbc", "", "DBC file, overrides the configuration")
	return f
}

// setup loads the configuration and the DBC file and builds the pool.
func (f *commonFlags) setup() (*config, *dbc.Database, *pool.Pool, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	if f.dbcPath != "" {
		cfg.DBC = f.dbcPath
	}
	if cfg.DBC == "" {
		return nil, nil, nil, errors.New("no dbc file given")
	}

	level, err := cfg.logLevel()
	if err != nil {
		return nil, nil, nil, err
	}
	internal.SetLogLevel(level)

	db, err := dbc.ParseFile(cfg.DBC)
	if err != nil {
		return nil, nil, nil, err
	}

	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	p, err := pool.New(db.Messages, poolCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, db, p, nil
}
