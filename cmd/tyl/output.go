package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/tyl-lang/tyl/internal/codegen"
	"github.com/tyl-lang/tyl/internal/pe"
)

func defaultOutput(buf *codegen.CodeBuffer, obj bool) string {
	if obj {
		return "a.o"
	}
	_ = buf
	return "a.exe"
}

func writeObject(buf *codegen.CodeBuffer, output string, src []byte) {
	if output == "" {
		output = defaultOutput(buf, true)
	}
	obj, err := pe.WriteCOFF(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "E5001: %v\n", err)
		os.Exit(exitCompiler)
	}
	if err := os.WriteFile(output, obj, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "E9002: %v\n", err)
		os.Exit(exitCompiler)
	}
}

func writeExecutable(buf *codegen.CodeBuffer, output string, src []byte, wantMap bool) {
	if output == "" {
		output = defaultOutput(buf, false)
	}
	exe, err := pe.WriteEXE(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "E5001: %v\n", err)
		os.Exit(exitCompiler)
	}
	if err := os.WriteFile(output, exe, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "E9002: %v\n", err)
		os.Exit(exitCompiler)
	}
	if wantMap {
		if err := writeMapFile(buf, output+".map"); err != nil {
			fmt.Fprintf(os.Stderr, "E9002: %v\n", err)
			os.Exit(exitCompiler)
		}
	}
}

// writeMapFile emits a plain-text symbol map (spec §6.1's --map): every
// symbol defined in .text, sorted by offset, since the PE/COFF writer
// itself (spec §1's external collaborator) is the only place that knows
// the final link-time addresses.
func writeMapFile(buf *codegen.CodeBuffer, path string) error {
	type entry struct {
		name   string
		offset int
	}
	var entries []entry
	for name, sym := range buf.Symbols {
		if sym.External {
			continue
		}
		entries = append(entries, entry{name, sym.Offset})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	var out []byte
	for _, e := range entries {
		out = append(out, []byte(fmt.Sprintf("%08x %s\n", e.offset, e.name))...)
	}
	return os.WriteFile(path, out, 0644)
}
