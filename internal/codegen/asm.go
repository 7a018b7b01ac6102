package codegen

import (
	"strings"

	"github.com/klauspost/asmfmt"
)

// DumpAssembly renders buf.Listing through asmfmt, the same formatting step
// the teacher's clang-output post-processing runs its generated assembly
// text through before writing it out. Listing must have been populated by
// calling buf.EnableListing() before code generation; an empty or nil
// Listing renders as an empty string rather than an error, since a caller
// that never asked for -s/--asm shouldn't pay for formatting an empty dump.
func DumpAssembly(buf *CodeBuffer) (string, error) {
	if len(buf.Listing) == 0 {
		return "", nil
	}
	src := strings.Join(buf.Listing, "\n") + "\n"
	formatted, err := asmfmt.Format(strings.NewReader(src))
	if err != nil {
		return "", err
	}
	return string(formatted), nil
}
