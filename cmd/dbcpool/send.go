package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/squadracorsepolito/dbcpool/codec"
	"github.com/squadracorsepolito/dbcpool/connector"
	"github.com/squadracorsepolito/dbcpool/dbc"
	"github.com/squadracorsepolito/dbcpool/egress"
	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/pool"
	"go.einride.tech/can"
)

func runSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	common := addCommonFlags(fs)
	iface := fs.String("i", "", "CAN interface, overrides the configuration")
	msgFlag := fs.String("m", "", "name or CAN id of the message")
	count := fs.Int("n", 1, "number of frames to transmit")
	period := fs.Duration("period", 100*time.Millisecond, "interval between frames")
	dryRun := fs.Bool("dry", false, "print the frame without transmitting it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, db, p, err := common.setup()
	if err != nil {
		return err
	}

	if *iface != "" {
		cfg.SocketCAN.Interface = *iface
	}

	msg, err := lookupMessage(db, p, *msgFlag)
	if err != nil {
		return err
	}

	frame, err := encodeFrame(msg, fs.Args())
	if err != nil {
		return err
	}

	fmt.Println(frame.String())
	if *dryRun {
		return nil
	}

	frames := connector.NewChannel[*message.CANFrameBatch](1)

	tx := egress.NewSocketCAN(cfg.egressConfig())
	tx.SetInput(frames)

	if err := tx.Init(ctx); err != nil {
		return err
	}
	go tx.Run(ctx)
	defer tx.Stop()

	ticker := time.NewTicker(*period)
	defer ticker.Stop()

	for i := range max(*count, 1) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

		batch := message.NewCANFrameBatch()
		batch.Append(message.CANFrame{Frame: frame, Timestamp: uint64(time.Now().UnixMicro())})
		batch.SetReceiveTime(time.Now())

		if err := frames.Write(batch); err != nil {
			message.PutCANFrameBatch(batch)
			return err
		}
	}

	return nil
}

func lookupMessage(db *dbc.Database, p *pool.Pool, nameOrID string) (*pool.Message, error) {
	if nameOrID == "" {
		return nil, fmt.Errorf("no message given")
	}

	if id, err := strconv.ParseUint(nameOrID, 0, 32); err == nil {
		return p.Lookup(uint32(id))
	}

	desc, ok := db.MessageByName(nameOrID)
	if !ok {
		return nil, fmt.Errorf("message %q not found", nameOrID)
	}
	return p.Lookup(desc.ID)
}

// encodeFrame builds a frame of msg from "signal=value" arguments.
func encodeFrame(msg *pool.Message, assignments []string) (can.Frame, error) {
	values := make(map[string]codec.Value, len(assignments))

	for _, arg := range assignments {
		name, text, err := parseAssignment(arg)
		if err != nil {
			return can.Frame{}, err
		}

		sig, err := msg.Signal(name)
		if err != nil {
			return can.Frame{}, err
		}

		value, err := parseValue(sig.Codec(), text)
		if err != nil {
			return can.Frame{}, fmt.Errorf("signal %s: %w", name, err)
		}
		values[name] = value
	}

	data, err := msg.Encode(values)
	if err != nil {
		return can.Frame{}, err
	}

	if len(data) > can.MaxDataLength {
		return can.Frame{}, fmt.Errorf("message %s is %d bytes, classic frames carry at most %d",
			msg.Name(), len(data), can.MaxDataLength)
	}

	frame := can.Frame{
		ID:         msg.ID(),
		IsExtended: msg.Extended(),
		Length:     uint8(len(data)),
	}
	copy(frame.Data[:], data)

	return frame, nil
}
