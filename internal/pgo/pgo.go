// Package pgo loads and applies profile-guided optimisation data (spec
// §4.5.10, §6.4): per-function call counts and cycles, per-branch taken/
// not-taken tallies, and per-loop iteration averages. The optimizer's
// PGOPass uses the branch tallies to reorder if/else statements; the
// hot/cold, trip-count and threshold-scale queries here have no caller in
// the optimizer, so inline/unroll thresholds are not biased and cold
// functions are not placed separately.
package pgo

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// formatVersion is the only version this reader/writer accepts; both the
// text and binary forms are rejected on mismatch (spec §6.4).
const formatVersion = 1

const textHeader = "# tyl-profile"

const binaryMagic = "TYLP"

// FuncProfile is the recorded behaviour of a single function across a
// profiling run.
type FuncProfile struct {
	Name       string
	CallCount  int64
	TotalCycles int64
}

// BranchProfile records how often a conditional at Func:Line went each way.
type BranchProfile struct {
	Func      string
	Line      int
	Taken     int64
	NotTaken  int64
}

// LoopProfile records average iteration count and entry count for a loop.
type LoopProfile struct {
	Func       string
	Line       int
	Iterations int64
	Entries    int64
}

// Profile is the full set of data loaded from a .prof file.
type Profile struct {
	Funcs    map[string]FuncProfile
	Branches []BranchProfile
	Loops    []LoopProfile
}

func empty() *Profile {
	return &Profile{Funcs: map[string]FuncProfile{}}
}

// ParseText reads the line-oriented text form (spec §6.4): header
// `# tyl-profile 1`, then `fn name calls cycles`, `br func line taken
// nottaken`, `lp func line iterations entries` lines.
func ParseText(r io.Reader) (*Profile, error) {
	sc := bufio.NewScanner(r)
	p := empty()
	if !sc.Scan() {
		return nil, fmt.Errorf("pgo: empty profile")
	}
	if err := checkTextHeader(sc.Text()); err != nil {
		return nil, err
	}
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		var err error
		switch fields[0] {
		case "fn":
			err = p.addFunc(fields)
		case "br":
			err = p.addBranch(fields)
		case "lp":
			err = p.addLoop(fields)
		default:
			err = fmt.Errorf("unknown record kind %q", fields[0])
		}
		if err != nil {
			return nil, fmt.Errorf("pgo: line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

func checkTextHeader(line string) error {
	if !strings.HasPrefix(line, textHeader) {
		return fmt.Errorf("pgo: missing %q header", textHeader)
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fmt.Errorf("pgo: malformed header %q", line)
	}
	v, err := strconv.Atoi(fields[2])
	if err != nil {
		return fmt.Errorf("pgo: malformed header version %q", fields[2])
	}
	if v != formatVersion {
		return fmt.Errorf("pgo: unsupported profile version %d (want %d)", v, formatVersion)
	}
	return nil
}

func (p *Profile) addFunc(fields []string) error {
	if len(fields) != 4 {
		return fmt.Errorf("fn record wants 3 fields, got %d", len(fields)-1)
	}
	calls, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return err
	}
	cycles, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return err
	}
	p.Funcs[fields[1]] = FuncProfile{Name: fields[1], CallCount: calls, TotalCycles: cycles}
	return nil
}

func (p *Profile) addBranch(fields []string) error {
	if len(fields) != 5 {
		return fmt.Errorf("br record wants 4 fields, got %d", len(fields)-1)
	}
	ln, err := strconv.Atoi(fields[2])
	if err != nil {
		return err
	}
	taken, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return err
	}
	nottaken, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return err
	}
	p.Branches = append(p.Branches, BranchProfile{Func: fields[1], Line: ln, Taken: taken, NotTaken: nottaken})
	return nil
}

func (p *Profile) addLoop(fields []string) error {
	if len(fields) != 5 {
		return fmt.Errorf("lp record wants 4 fields, got %d", len(fields)-1)
	}
	ln, err := strconv.Atoi(fields[2])
	if err != nil {
		return err
	}
	iters, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return err
	}
	entries, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return err
	}
	p.Loops = append(p.Loops, LoopProfile{Func: fields[1], Line: ln, Iterations: iters, Entries: entries})
	return nil
}

// WriteText serialises p back into the spec §6.4 text form, funcs sorted
// by name for a deterministic diff-friendly file.
func WriteText(w io.Writer, p *Profile) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %d\n", textHeader, formatVersion)
	names := make([]string, 0, len(p.Funcs))
	for n := range p.Funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fp := p.Funcs[n]
		fmt.Fprintf(bw, "fn %s %d %d\n", fp.Name, fp.CallCount, fp.TotalCycles)
	}
	for _, b := range p.Branches {
		fmt.Fprintf(bw, "br %s %d %d %d\n", b.Func, b.Line, b.Taken, b.NotTaken)
	}
	for _, l := range p.Loops {
		fmt.Fprintf(bw, "lp %s %d %d %d\n", l.Func, l.Line, l.Iterations, l.Entries)
	}
	return bw.Flush()
}

// ParseBinary reads the little-endian binary form: a 4-byte magic, a
// uint32 version, then the same three record streams length-prefixed.
func ParseBinary(r io.Reader) (*Profile, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("pgo: %w", err)
	}
	if string(magic[:]) != binaryMagic {
		return nil, fmt.Errorf("pgo: bad magic %q", magic)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("pgo: unsupported profile version %d (want %d)", version, formatVersion)
	}
	p := empty()
	var nFuncs uint64
	if err := binary.Read(r, binary.LittleEndian, &nFuncs); err != nil {
		return nil, err
	}
	for i := uint64(0); i < nFuncs; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var calls, cycles int64
		if err := binary.Read(r, binary.LittleEndian, &calls); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &cycles); err != nil {
			return nil, err
		}
		p.Funcs[name] = FuncProfile{Name: name, CallCount: calls, TotalCycles: cycles}
	}
	var nBranches uint64
	if err := binary.Read(r, binary.LittleEndian, &nBranches); err != nil {
		return nil, err
	}
	for i := uint64(0); i < nBranches; i++ {
		b, err := readBranch(r)
		if err != nil {
			return nil, err
		}
		p.Branches = append(p.Branches, b)
	}
	var nLoops uint64
	if err := binary.Read(r, binary.LittleEndian, &nLoops); err != nil {
		return nil, err
	}
	for i := uint64(0); i < nLoops; i++ {
		l, err := readLoop(r)
		if err != nil {
			return nil, err
		}
		p.Loops = append(p.Loops, l)
	}
	return p, nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readBranch(r io.Reader) (BranchProfile, error) {
	name, err := readString(r)
	if err != nil {
		return BranchProfile{}, err
	}
	var line int64
	var taken, nottaken int64
	for _, dst := range []*int64{&line, &taken, &nottaken} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return BranchProfile{}, err
		}
	}
	return BranchProfile{Func: name, Line: int(line), Taken: taken, NotTaken: nottaken}, nil
}

func readLoop(r io.Reader) (LoopProfile, error) {
	name, err := readString(r)
	if err != nil {
		return LoopProfile{}, err
	}
	var line, iters, entries int64
	for _, dst := range []*int64{&line, &iters, &entries} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return LoopProfile{}, err
		}
	}
	return LoopProfile{Func: name, Line: int(line), Iterations: iters, Entries: entries}, nil
}

// WriteBinary serialises p into the little-endian binary form.
func WriteBinary(w io.Writer, p *Profile) error {
	buf := &bytes.Buffer{}
	buf.WriteString(binaryMagic)
	binary.Write(buf, binary.LittleEndian, uint32(formatVersion))

	names := make([]string, 0, len(p.Funcs))
	for n := range p.Funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	binary.Write(buf, binary.LittleEndian, uint64(len(names)))
	for _, n := range names {
		fp := p.Funcs[n]
		writeString(buf, fp.Name)
		binary.Write(buf, binary.LittleEndian, fp.CallCount)
		binary.Write(buf, binary.LittleEndian, fp.TotalCycles)
	}

	binary.Write(buf, binary.LittleEndian, uint64(len(p.Branches)))
	for _, b := range p.Branches {
		writeString(buf, b.Func)
		binary.Write(buf, binary.LittleEndian, int64(b.Line))
		binary.Write(buf, binary.LittleEndian, b.Taken)
		binary.Write(buf, binary.LittleEndian, b.NotTaken)
	}

	binary.Write(buf, binary.LittleEndian, uint64(len(p.Loops)))
	for _, l := range p.Loops {
		writeString(buf, l.Func)
		binary.Write(buf, binary.LittleEndian, int64(l.Line))
		binary.Write(buf, binary.LittleEndian, l.Iterations)
		binary.Write(buf, binary.LittleEndian, l.Entries)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

// HotThreshold is the call-count above which a function is considered hot
// (spec §4.5.10: hot functions get scaled inline/unroll thresholds).
const HotThreshold = 1000

// IsHot reports whether fn was called often enough to warrant more
// aggressive inlining/unrolling.
func (p *Profile) IsHot(fn string) bool {
	fp, ok := p.Funcs[fn]
	return ok && fp.CallCount >= HotThreshold
}

// IsCold reports whether fn was profiled at all but never actually called.
func (p *Profile) IsCold(fn string) bool {
	fp, ok := p.Funcs[fn]
	return ok && fp.CallCount == 0
}

// BranchBias reports whether the branch at func:line was taken more often
// than not, and whether the sample is confident enough to act on.
func (p *Profile) BranchBias(fn string, line int) (takenMoreOften, confident bool) {
	for _, b := range p.Branches {
		if b.Func != fn || b.Line != line {
			continue
		}
		total := b.Taken + b.NotTaken
		if total == 0 {
			return false, false
		}
		return b.Taken > b.NotTaken, total >= 16
	}
	return false, false
}

// LoopAverageTripCount returns the average iteration count recorded for the
// loop at func:line, or 0 if unprofiled.
func (p *Profile) LoopAverageTripCount(fn string, line int) int64 {
	for _, l := range p.Loops {
		if l.Func == fn && l.Line == line && l.Entries > 0 {
			return l.Iterations / l.Entries
		}
	}
	return 0
}

// InlineThresholdScale returns a multiplier for an inliner's statement-count
// budget for fn: 2.0 for a hot function, 1.0 otherwise (spec §4.5.10).
func (p *Profile) InlineThresholdScale(fn string) float64 {
	if p.IsHot(fn) {
		return 2.0
	}
	return 1.0
}

// UnrollThresholdScale mirrors InlineThresholdScale for the loop unroller's
// trip-count window.
func (p *Profile) UnrollThresholdScale(fn string) float64 {
	if p.IsHot(fn) {
		return 2.0
	}
	return 1.0
}
