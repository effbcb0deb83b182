package pool

import (
	"slices"

	"github.com/squadracorsepolito/dbcpool/codec"
)

// Config controls which messages enter a pool and how
// their signals are compiled.
type Config struct {
	// Name identifies the pool in errors and logs.
	Name string

	// Allow keeps only the listed CAN ids when not empty.
	Allow []uint32
	// Deny drops the listed CAN ids, it is applied after Allow.
	Deny []uint32

	// RangeCheck rejects scaled values outside the declared range on encode.
	RangeCheck bool
	SignPolicy codec.SignPolicy

	// Enums enables the value label view of labelled signals.
	Enums bool
	// DisabledEnums lists "Message.Signal" pairs that never get an enum view.
	DisabledEnums []string
}

func NewDefaultConfig() *Config {
	return &Config{
		Name:       "dbcpool",
		RangeCheck: true,
		SignPolicy: codec.SignExtend,
		Enums:      true,
	}
}

func (c *Config) accepts(id uint32) bool {
	if len(c.Allow) > 0 && !slices.Contains(c.Allow, id) {
		return false
	}
	return !slices.Contains(c.Deny, id)
}

func (c *Config) codecOptions(msgName, sigName string) codec.Options {
	return codec.Options{
		RangeCheck: c.RangeCheck,
		SignPolicy: c.SignPolicy,
		Enum:       c.Enums && !slices.Contains(c.DisabledEnums, msgName+"."+sigName),
	}
}
