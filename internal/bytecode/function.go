package bytecode

import (
	"sort"

	"github.com/funvibe/funscript/internal/scope"
)

// FunctionFlags
type FunctionFlags uint16

const (
	FnArrow FunctionFlags = 1 << iota
	FnUsesThis
	FnUsesArguments
	FnArgsCaptured
	FnVarsCaptured
	FnCapturesAncestor
	FnDirectEval
	FnRoot
)

// CompiledFunction is the finalized program of one Function plus the table
// of nested functions its CLOSURE and CALL_DIRECT operands index into.
type CompiledFunction struct {
	Name           string              `cbor:"1,keyasint"`
	ParamCount     int                 `cbor:"2,keyasint"`
	Code           []byte              `cbor:"3,keyasint"`
	Children       []*CompiledFunction `cbor:"4,keyasint,omitempty"`
	FuncLocalCount int                 `cbor:"5,keyasint"`
	SlotCount      int                 `cbor:"6,keyasint"` // slots of the outermost frame
	Flags          FunctionFlags       `cbor:"7,keyasint"`
	Lines          []LineEntry         `cbor:"8,keyasint,omitempty"`
	StartLine      int                 `cbor:"9,keyasint"`
	FuncID         int32               `cbor:"10,keyasint"` // Function id in the unit's Tree

	// Tree is the compile unit, kept for direct eval. Programs loaded from an
	// image carry no Tree until it is rebuilt from source.
	Tree *scope.Tree `cbor:"-"`
}

func (f *CompiledFunction) Has(fl FunctionFlags) bool { return f.Flags&fl != 0 }

// LineAt maps a code offset to its source line, or 0 when unknown.
func (f *CompiledFunction) LineAt(offset int) int {
	i := sort.Search(len(f.Lines), func(i int) bool { return int(f.Lines[i].Offset) > offset })
	if i == 0 {
		return 0
	}
	return int(f.Lines[i-1].Line)
}

// Walk visits f and every nested function depth-first in child order.
func (f *CompiledFunction) Walk(visit func(*CompiledFunction)) {
	visit(f)
	for _, c := range f.Children {
		c.Walk(visit)
	}
}

// Mode records how a unit was compiled; it is part of the cache key.
type Mode uint8

const (
	ModeProgram    Mode = iota
	ModeExpression      // a single expression whose value is returned
	ModePersistent      // root declarations are named globals (REPL, embedding)
)

// Program is a compiled top-level unit with the constant tables it uses.
type Program struct {
	Root    *CompiledFunction
	Strings []string
	Doubles []float64
	Globals []string // global names in index order at compile time
	Source  string
	Mode    Mode
}
