package members

import (
	"sync"

	"nescc/internal/dataflow"
	"nescc/internal/diag"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// Class is a Function's closed set of roles (spec.md §3).
type Class int

const (
	Regular Class = iota
	Mode          // entry point; must have an associated NMI
	NMI           // interrupt handler; may not wait-nmi or goto-mode
	CompileTime   // evaluated at compile time only
)

func (c Class) String() string {
	switch c {
	case Mode:
		return "mode"
	case NMI:
		return "nmi"
	case CompileTime:
		return "compile-time"
	default:
		return "regular"
	}
}

// Modifiers is the modifier set a function is declared with: which
// groups it may touch (explicit or implicit), and for Mode functions,
// the NMI it pairs with.
type Modifiers struct {
	Groups   []*sym.Global
	Explicit bool
	NMIRef   *sym.Global // set only for Class == Mode
}

// GotoModeSite records a `goto mode` site and the groups it must
// preserve across the transfer (spec.md §4.5).
type GotoModeSite struct {
	Pos             diag.Pos
	Target          *sym.Global // the mode being transferred to
	PreservedGroups []*sym.Global
}

// DerefSite records a pointer-dereference site and the groups its
// pointer's tail names (spec.md §4.5, §4.7).
type DerefSite struct {
	Pos    diag.Pos
	Groups []*sym.Global
}

// PrecheckTracked is the evaluator's per-function dataflow record
// (spec.md §4.5 step 3), the raw input to CalcPrecheckBitsets.
type PrecheckTracked struct {
	UsedVars     []pool.Handle // gvar handles directly used
	CalledFuncs  []*sym.Global
	FenceSites   []diag.Pos
	WaitNMISites []diag.Pos
	GotoModes    []GotoModeSite
	DerefSites   []DerefSite
}

// ROMV is the read-only-memory-visibility flag set (spec.md glossary):
// which roots (mode path, NMI path) a function's code must be emitted
// under. Modeled as a small bitset-over-uint8, the way the teacher's
// compile/internal/types.bitset8 models closed flag sets.
type ROMV uint8

const (
	InMode ROMV = 1 << iota
	InNMI
)

func (f *ROMV) set(mask ROMV, b bool) {
	if b {
		*f |= mask
	} else {
		*f &^= mask
	}
}

// SetInMode sets or clears the InMode flag.
func (f *ROMV) SetInMode(b bool) { f.set(InMode, b) }

// SetInNMI sets or clears the InNMI flag.
func (f *ROMV) SetInNMI(b bool) { f.set(InNMI, b) }

// Function is spec.md §3's central per-function record.
type Function struct {
	Owner *sym.Global
	Class Class

	ParamThunks  []Thunk
	ReturnThunk  Thunk
	ParamTypes   []Type
	ReturnType   Type
	TypesResolved bool

	Modifiers Modifiers
	Def       interface{} // definition AST; opaque, owned by the parser (out of scope)

	// Precheck products (spec.md §4.5).
	Tracked           *PrecheckTracked
	PrecheckGroupVars dataflow.Set
	PrecheckRW        dataflow.Set
	PrecheckCalls     dataflow.Set
	PrecheckWaitNMI   bool
	PrecheckFences    bool

	// ParentModes is the reverse map populated by
	// modes.FinalizeModes (spec.md §4.6): every mode that transitively
	// calls this function, including the function itself if it is a
	// mode.
	ParentModes dataflow.Set

	// IncomingPreservedGroups is merged under modeMu by every caller's
	// goto-mode site, for functions of class Mode (spec.md §4.5 step 4:
	// "merged under the target mode's lock").
	modeMu                  sync.Mutex
	IncomingPreservedGroups dataflow.Set

	// IR products (spec.md §4.7).
	IRReads       dataflow.Set
	IRWrites      dataflow.Set
	IRCalls       dataflow.Set
	IRGroupVars   dataflow.Set
	IRDerefGroups dataflow.Set
	IOPure        bool
	IRFences      bool

	// Mode/NMI coupling products (spec.md §4.6, §4.7).
	NMIIndex    int // dense index among NMI functions, or -1
	UsedInModes dataflow.Set
	ROMVFlags   ROMV
	RomProc     pool.Handle

	FenceReads  dataflow.Set
	FenceWrites dataflow.Set

	// AvailReads/AvailWrites are allocated only on NMI functions: the
	// pre-compile conservative view and the post-compile fresh view,
	// per spec.md §4.7's has-dep asymmetry and §9's note that "both
	// accessors must exist on NMI records".
	availReadsConservative  dataflow.Set
	availWritesConservative dataflow.Set
	availReadsFresh         dataflow.Set
	availWritesFresh        dataflow.Set

	LocalVars []LocalVarSpan
}

// LocalVarSpan is one per-memory-class span of local-variable storage
// (spec.md §3: "per-memory-class local-variable storage spans").
type LocalVarSpan struct {
	MemClass string
	Size     int
}

// MergeIncomingPreservedGroups unions groups into the target mode's
// IncomingPreservedGroups under its own lock (spec.md §4.5 step 4).
func (f *Function) MergeIncomingPreservedGroups(groups []*sym.Global) {
	f.modeMu.Lock()
	defer f.modeMu.Unlock()
	for _, g := range groups {
		f.IncomingPreservedGroups.Add(int(g.Self()))
	}
}

// AvailReads returns the NMI's available-reads set: the fresh,
// post-compile view if hasDep, else the conservative pre-compile view
// (spec.md §4.7, §9's has-dep asymmetry note).
func (f *Function) AvailReads(hasDep bool) *dataflow.Set {
	if hasDep {
		return &f.availReadsFresh
	}
	return &f.availReadsConservative
}

// AvailWrites is the write-set analog of AvailReads.
func (f *Function) AvailWrites(hasDep bool) *dataflow.Set {
	if hasDep {
		return &f.availWritesFresh
	}
	return &f.availWritesConservative
}

// SeedConservativeAvail seeds an NMI's pre-compile conservative
// availability view from its own precheck_rw touched-gmember set
// (spec.md §4.7's has-dep asymmetry: a fence site that compiles before
// this NMI has no IR-derived read/write split to consult yet, so it
// falls back to precheck's single combined touched-set for both reads
// and writes). Called once, by internal/modes.FinalizeModes.
func (f *Function) SeedConservativeAvail() {
	f.availReadsConservative = *f.PrecheckRW.Clone()
	f.availWritesConservative = *f.PrecheckRW.Clone()
}

// SeedFreshAvail seeds an NMI's post-compile fresh availability view
// from its own IR-derived read/write sets, once they exist. Called
// once, by internal/driver after compiling an NMI function.
func (f *Function) SeedFreshAvail() {
	f.availReadsFresh = *f.IRReads.Clone()
	f.availWritesFresh = *f.IRWrites.Clone()
}
