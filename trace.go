package detour

import (
	"log"
	"os"
)

// traceLogger is the tracing sink spec.md §3/§7 refers to for no-throw
// destructor-time remove failures. No example repo in the retrieved pack
// pulls in a structured logging library for this kind of internal
// diagnostic trace (ditto and Real-Fruit-Snacks-Aquifer both wrap the
// standard log package), so this follows suit rather than adding an unused
// dependency; see SPEC_FULL.md §7.
var traceLogger = log.New(os.Stderr, "detour: ", log.LstdFlags|log.Lmicroseconds)
