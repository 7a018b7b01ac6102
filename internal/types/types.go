// Package types implements the canonical-type-string model of spec §3.3:
// types are represented as the strings a parseType routine produces, rather
// than a structural type graph, matching the original's "generic functions
// store type arguments as raw strings" behaviour the redesign notes (§9.2)
// say a systems reimplementation should eventually normalise away — this
// core keeps the string representation, since spec §3.3 specifies it as
// the wire format the rest of the pipeline (optimizer, codegen) consumes.
package types

import "strings"

// Refinement is a named type of the form `type N = T where P(_)` whose
// values must satisfy P (spec glossary).
type Refinement struct {
	Name       string
	Underlying string
	Constraint string // canonical expression text with `_` placeholder
}

// Registry holds refinement-type declarations so VarDecl classification
// (spec §4.6.2 rule 14) and the CTFE type-metadata builtins can look them up.
type Registry struct {
	Refinements map[string]Refinement
}

func NewRegistry() *Registry {
	return &Registry{Refinements: map[string]Refinement{}}
}

func (r *Registry) Define(ref Refinement) { r.Refinements[ref.Name] = ref }

func (r *Registry) Lookup(name string) (Refinement, bool) {
	ref, ok := r.Refinements[name]
	return ref, ok
}

// IsPointer, IsNullable, ElemType and friends are small syntactic queries
// over the canonical string form (spec §3.3): `*T`, `**T`, `&T`, `&mut T`,
// `&'a mut T`, `[T]`, `[T; N]`, `fn(...) -> R`, `Box[T]`, trailing `?`.

func IsNullable(t string) bool { return strings.HasSuffix(t, "?") }

func StripNullable(t string) string { return strings.TrimSuffix(t, "?") }

func IsRawPointer(t string) bool { return strings.HasPrefix(t, "*") }

func PointerDepth(t string) int {
	n := 0
	for strings.HasPrefix(t, "*") {
		t = t[1:]
		n++
	}
	return n
}

func IsReference(t string) bool { return strings.HasPrefix(t, "&") }

// IsMutReference reports `&mut T` or `&'a mut T`.
func IsMutReference(t string) bool {
	if !IsReference(t) {
		return false
	}
	rest := strings.TrimPrefix(t, "&")
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "'") {
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) == 2 {
			rest = strings.TrimSpace(parts[1])
		}
	}
	return strings.HasPrefix(rest, "mut ")
}

// IsFixedArray reports `[T; N]` and returns T and the literal N text
// (which may itself be a SizeParam identifier rather than a digit string).
func IsFixedArray(t string) (elem string, size string, ok bool) {
	if !strings.HasPrefix(t, "[") || !strings.HasSuffix(t, "]") {
		return "", "", false
	}
	inner := t[1 : len(t)-1]
	parts := strings.SplitN(inner, ";", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// IsSlice reports a dynamic `[T]` (no `;`).
func IsSlice(t string) (elem string, ok bool) {
	if !strings.HasPrefix(t, "[") || !strings.HasSuffix(t, "]") {
		return "", false
	}
	inner := t[1 : len(t)-1]
	if strings.Contains(inner, ";") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

// genericShape matches `Name[T1, T2, ...]`.
func genericShape(t string) (name string, args []string, ok bool) {
	i := strings.IndexByte(t, '[')
	if i < 0 || !strings.HasSuffix(t, "]") {
		return "", nil, false
	}
	name = t[:i]
	inner := t[i+1 : len(t)-1]
	if inner == "" {
		return name, nil, true
	}
	for _, p := range splitTopLevelComma(inner) {
		args = append(args, strings.TrimSpace(p))
	}
	return name, args, true
}

func splitTopLevelComma(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

var smartPointerKinds = map[string]bool{
	"Box": true, "Rc": true, "Arc": true, "Weak": true, "Cell": true, "RefCell": true,
}

// SmartPointerKind returns ("Rc", "T", true) for "Rc[T]" etc.
func SmartPointerKind(t string) (kind string, elem string, ok bool) {
	name, args, ok := genericShape(t)
	if !ok || !smartPointerKinds[name] || len(args) != 1 {
		return "", "", false
	}
	return name, args[0], true
}

// IsAtomic returns the element type of `Atomic[T]`.
func IsAtomic(t string) (elem string, ok bool) {
	name, args, ok := genericShape(t)
	if !ok || name != "Atomic" || len(args) != 1 {
		return "", false
	}
	return args[0], true
}

// IsChannel returns element type and capacity for `chan[T]` / `chan[T, N]`.
func IsChannel(t string) (elem string, capacity int, ok bool) {
	name, args, ok2 := genericShape(t)
	if !ok2 || name != "chan" || len(args) == 0 {
		return "", 0, false
	}
	elem = args[0]
	if len(args) == 2 {
		capacity = parseIntOr0(args[1])
	}
	return elem, capacity, true
}

func parseIntOr0(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// IsMap returns key/value types for `Map[K, V]`.
func IsMap(t string) (key, val string, ok bool) {
	name, args, ok2 := genericShape(t)
	if !ok2 || name != "Map" || len(args) != 2 {
		return "", "", false
	}
	return args[0], args[1], true
}

// IsFloat reports whether t names one of the float scalar types.
func IsFloat(t string) bool {
	switch StripNullable(t) {
	case "float", "f16", "f32", "f64", "f128":
		return true
	}
	return false
}

// IsInteger reports whether t names one of the integer scalar types.
func IsInteger(t string) bool {
	switch StripNullable(t) {
	case "int", "i8", "i16", "i32", "i64", "i128", "u8", "u16", "u32", "u64", "u128":
		return true
	}
	return false
}

// SizeOf returns the byte size for scalar/pointer types the code generator
// needs a concrete width for; it does not resolve record layouts (those are
// owned by the code generator's record-size computation).
func SizeOf(t string) int {
	switch StripNullable(t) {
	case "i8", "u8", "bool", "char":
		return 1
	case "i16", "u16", "f16":
		return 2
	case "i32", "u32", "f32", "float":
		return 4
	case "i64", "u64", "f64", "int", "str":
		return 8
	case "i128", "u128", "f128":
		return 16
	}
	if IsRawPointer(t) || IsReference(t) {
		return 8
	}
	return 8
}
