// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// evo-dump prints the version byte and decoded evolution header of a
// serialized record without needing its codec. Field bodies are opaque; the
// format is not self-describing, so only the framing can be inspected.
//
// Usage:
//
//	evo-dump < record.bin
//	evo-dump -input record.bin
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/grailbio/evo/wire"
)

var inputFlag = flag.String("input", "", "File to read; stdin if empty")

func main() {
	shutdown := grail.Init()
	defer shutdown()

	r := io.Reader(os.Stdin)
	if *inputFlag != "" {
		f, err := os.Open(*inputFlag)
		if err != nil {
			log.Fatalf("open %s: %v", *inputFlag, err)
		}
		defer f.Close() // nolint: errcheck
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	if err := dump(os.Stdout, data); err != nil {
		log.Fatalf("dump: %v", err)
	}
}

func dump(w io.Writer, data []byte) error {
	in := wire.NewInput(data)
	version, err := in.ReadInt8()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "version: %d\n", version)
	if version < 0 {
		return fmt.Errorf("negative record version %d", version)
	}
	if version == 0 {
		fmt.Fprintf(w, "simple mode, %d payload bytes\n", in.Remaining())
		return nil
	}
	for i := 0; i <= int(version); i++ {
		code, err := in.ReadVarInt32(false)
		if err != nil {
			return err
		}
		switch {
		case code > 0:
			fmt.Fprintf(w, "chunk %d: %d bytes\n", i, code)
		case code == 0:
			fmt.Fprintf(w, "chunk %d: unknown step, empty\n", i)
		case code == -1:
			b, err := in.ReadInt8()
			if err != nil {
				return err
			}
			if b == -128 {
				fmt.Fprintf(w, "chunk %d: field made optional (field since removed)\n", i)
			} else if b <= 0 {
				fmt.Fprintf(w, "chunk %d: field made optional at chunk 0 position %d\n", i, -b)
			} else {
				fmt.Fprintf(w, "chunk %d: field made optional at chunk %d\n", i, b)
			}
		case code == -2:
			name, err := readHeaderString(in)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "chunk %d: field %q removed\n", i, name)
		default:
			return fmt.Errorf("unknown evolution step code %d", code)
		}
	}
	fmt.Fprintf(w, "chunk bodies: %d bytes\n", in.Remaining())
	return nil
}

// readHeaderString decodes a removed-field name; header names are stored
// plain, outside the stream's string interning.
func readHeaderString(in *wire.Input) (string, error) {
	n, err := in.ReadVarInt32(false)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("interned header string %d", n)
	}
	b, err := in.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
