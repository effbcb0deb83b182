package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/squadracorsepolito/dbcpool/codec"
)

// parseAssignment splits a "name=value" argument.
func parseAssignment(arg string) (name, value string, err error) {
	name, value, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid assignment %q, expected name=value", arg)
	}
	return name, value, nil
}

// parseValue converts text into a value of the signal kind.
// Value label names are accepted for signals with an enum view.
func parseValue(sig *codec.Signal, text string) (codec.Value, error) {
	if enum := sig.Enum(); enum != nil {
		if variant, ok := enum.Lookup(text); ok {
			return enum.FromEnum(variant)
		}
	}

	kind := sig.Kind()
	switch {
	case kind == codec.KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return codec.Value{}, err
		}
		return codec.Bool(b), nil

	case kind == codec.KindF64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return codec.Value{}, err
		}
		return codec.F64(f), nil

	case kind.IsUnsigned():
		u, err := strconv.ParseUint(text, 0, kindBits(kind))
		if err != nil {
			return codec.Value{}, err
		}

		switch kind {
		case codec.KindU8:
			return codec.U8(uint8(u)), nil
		case codec.KindU16:
			return codec.U16(uint16(u)), nil
		case codec.KindU32:
			return codec.U32(uint32(u)), nil
		default:
			return codec.U64(u), nil
		}

	case kind.IsSigned():
		i, err := strconv.ParseInt(text, 0, kindBits(kind))
		if err != nil {
			return codec.Value{}, err
		}

		switch kind {
		case codec.KindI8:
			return codec.I8(int8(i)), nil
		case codec.KindI16:
			return codec.I16(int16(i)), nil
		case codec.KindI32:
			return codec.I32(int32(i)), nil
		default:
			return codec.I64(i), nil
		}
	}

	return codec.Value{}, fmt.Errorf("signal %s has no value kind", sig.Name())
}

func kindBits(kind codec.Kind) int {
	switch kind {
	case codec.KindU8, codec.KindI8:
		return 8
	case codec.KindU16, codec.KindI16:
		return 16
	case codec.KindU32, codec.KindI32:
		return 32
	default:
		return 64
	}
}
