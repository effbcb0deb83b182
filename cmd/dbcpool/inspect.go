package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/squadracorsepolito/dbcpool/pool"
	"github.com/squadracorsepolito/dbcpool/verify"
)

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	common := addCommonFlags(fs)
	idFlag := fs.String("id", "", "CAN id of the frame to decode")
	dataFlag := fs.String("data", "", "hex payload of the frame to decode")
	verifyFlag := fs.Bool("verify", false, "cross-check the decoded frame against acmelib")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, p, err := common.setup()
	if err != nil {
		return err
	}

	if *idFlag == "" {
		return printPool(os.Stdout, p)
	}

	id, err := strconv.ParseUint(*idFlag, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", *idFlag, err)
	}

	data, err := hex.DecodeString(*dataFlag)
	if err != nil {
		return fmt.Errorf("invalid data %q: %w", *dataFlag, err)
	}

	msg, _, err := p.Update(uint32(id), data, uint64(time.Now().UnixMicro()), pool.TransportRead)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(msg); err != nil {
		return err
	}

	if !*verifyFlag {
		return nil
	}

	checker, err := verify.LoadDBCFile(cfg.DBC)
	if err != nil {
		return err
	}

	return verifyFrame(os.Stderr, checker, msg, data)
}

// verifyFrame reports the signals decoded differently by the reference.
func verifyFrame(w io.Writer, checker *verify.Checker, msg *pool.Message, data []byte) error {
	mismatches, err := checker.Check(msg, data)
	if err != nil {
		return err
	}

	for _, mismatch := range mismatches {
		fmt.Fprintln(w, mismatch)
	}

	if len(mismatches) > 0 {
		return fmt.Errorf("%d signals of %s differ from the acmelib decoding", len(mismatches), msg.Name())
	}
	return nil
}

// printPool writes one block per message listing the compiled signals.
func printPool(w io.Writer, p *pool.Pool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for _, msg := range p.Messages() {
		fmt.Fprintf(tw, "0x%03X\t%s\t%d bytes\n", msg.ID(), msg.Name(), msg.Size())

		for _, sig := range msg.Signals() {
			c := sig.Codec()
			layout := c.Layout()
			rep := c.Representation()

			fmt.Fprintf(tw, "\t%s\t[%d, %d)\t%s\t%s\t%s",
				c.Name(), layout.Start, layout.End, layout.ByteOrder, rep.Class, c.Kind())

			if minimum, maximum, declared := c.Range(); declared {
				fmt.Fprintf(tw, "\t[%g, %g]", minimum, maximum)
			} else {
				fmt.Fprint(tw, "\t-")
			}

			fmt.Fprintf(tw, "\t%s\n", c.Descriptor().Unit)

			if enum := c.Enum(); enum != nil {
				for _, variant := range enum.Variants() {
					fmt.Fprintf(tw, "\t\t%s\t= %s\n", variant.Ident(), variant.Value)
				}
				for _, label := range enum.Unreachable() {
					fmt.Fprintf(tw, "\t\t%s\t= %g (unreachable)\n", label.Label, label.Code)
				}
			}
		}
	}

	return tw.Flush()
}
