package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/squadracorsepolito/dbcpool"
	"github.com/squadracorsepolito/dbcpool/connector"
	"github.com/squadracorsepolito/dbcpool/egress"
	"github.com/squadracorsepolito/dbcpool/handler"
	"github.com/squadracorsepolito/dbcpool/ingress"
	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/message"
)

const (
	frameQueueSize  = 1024
	signalQueueSize = 1024
)

func runListen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	common := addCommonFlags(fs)
	iface := fs.String("i", "", "CAN interface, overrides the configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, p, err := common.setup()
	if err != nil {
		return err
	}

	if *iface != "" {
		cfg.SocketCAN.Interface = *iface
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := initTelemetry(ctx, cfg.Telemetry)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				internal.NewLogger(string(internal.StageKindCLI), "listen").Error("failed to shutdown telemetry", err)
			}
		}()
	}

	frames := connector.NewRingBuffer[*message.CANFrameBatch](frameQueueSize)
	signals := connector.NewRingBuffer[*message.CANSignalBatch](signalQueueSize)

	var ingressStage dbcpool.Stage
	switch cfg.Transport {
	case transportSocketCAN:
		socketCAN := ingress.NewSocketCAN(cfg.ingressConfig(p))
		socketCAN.SetOutput(frames)
		ingressStage = socketCAN
	case transportCannelloni:
		cannelloni := ingress.NewCannelloni(cfg.cannelloniConfig())
		cannelloni.SetOutput(frames)
		ingressStage = cannelloni
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	handlerStage := handler.NewPool(&handler.PoolConfig{Pool: p})
	handlerStage.SetInput(frames)
	handlerStage.SetOutput(signals)

	pipeline := dbcpool.NewPipeline()
	pipeline.AddStage(ingressStage)
	pipeline.AddStage(handlerStage)

	if cfg.QuestDB.Enabled {
		egressStage := egress.NewQuestDB(cfg.questDBConfig())
		egressStage.SetInput(signals)
		pipeline.AddStage(egressStage)
	} else {
		sink := newLogSink()
		sink.SetInput(signals)
		pipeline.AddStage(sink)
	}

	if err := pipeline.Init(ctx); err != nil {
		return err
	}

	pipeline.Run(ctx)

	<-ctx.Done()
	pipeline.Stop()

	return nil
}
