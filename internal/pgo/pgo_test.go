package pgo

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseTextRoundTrip(t *testing.T) {
	const src = `# tyl-profile 1
fn main 4200 100000
fn helper 0 0
br main 10 90 10
lp main 12 500 50
`
	p, err := ParseText(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if p.Funcs["main"].CallCount != 4200 {
		t.Fatalf("expected main's call count 4200, got %d", p.Funcs["main"].CallCount)
	}
	if !p.IsHot("main") {
		t.Fatal("expected main to be hot (above HotThreshold by cycles is irrelevant; call count gates hotness)")
	}
	if !p.IsCold("helper") {
		t.Fatal("expected helper (0 calls) to be cold")
	}
	taken, confident := p.BranchBias("main", 10)
	if !taken || !confident {
		t.Fatalf("expected a confident taken bias, got taken=%v confident=%v", taken, confident)
	}
	if avg := p.LoopAverageTripCount("main", 12); avg != 10 {
		t.Fatalf("expected average trip count 10, got %d", avg)
	}

	var out bytes.Buffer
	if err := WriteText(&out, p); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	reparsed, err := ParseText(strings.NewReader(out.String()))
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if reparsed.Funcs["main"].TotalCycles != 100000 {
		t.Fatalf("round trip lost main's cycle count: %#v", reparsed.Funcs["main"])
	}
}

func TestParseTextRejectsVersionMismatch(t *testing.T) {
	_, err := ParseText(strings.NewReader("# tyl-profile 2\n"))
	if err == nil {
		t.Fatal("expected a version-mismatch error")
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	p := &Profile{
		Funcs: map[string]FuncProfile{"main": {Name: "main", CallCount: 7, TotalCycles: 999}},
		Branches: []BranchProfile{{Func: "main", Line: 3, Taken: 1, NotTaken: 9}},
		Loops:    []LoopProfile{{Func: "main", Line: 4, Iterations: 40, Entries: 4}},
	}
	var buf bytes.Buffer
	if err := WriteBinary(&buf, p); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	got, err := ParseBinary(&buf)
	if err != nil {
		t.Fatalf("ParseBinary: %v", err)
	}
	if got.Funcs["main"].CallCount != 7 || got.Funcs["main"].TotalCycles != 999 {
		t.Fatalf("func round trip mismatch: %#v", got.Funcs["main"])
	}
	if len(got.Branches) != 1 || got.Branches[0].Taken != 1 {
		t.Fatalf("branch round trip mismatch: %#v", got.Branches)
	}
	if len(got.Loops) != 1 || got.Loops[0].Iterations != 40 {
		t.Fatalf("loop round trip mismatch: %#v", got.Loops)
	}
}

func TestBinaryRejectsBadMagic(t *testing.T) {
	_, err := ParseBinary(bytes.NewReader([]byte("nope")))
	if err == nil {
		t.Fatal("expected a bad-magic error")
	}
}
