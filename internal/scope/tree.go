// Package scope holds the compile-time lexical model of one compilation unit:
// the Scope tree, Declarations, References and Function compile units.
//
// Everything lives in a Tree arena and links by int32 ids, so a unit can be
// dropped as a whole once its program is emitted. The parser grows the tree
// incrementally; Resolve, Flatten and Allocate run as post-passes once the
// unit's outermost body has been parsed.
package scope

import "fmt"

type (
	ScopeID int32
	DeclID  int32
	RefID   int32
	FuncID  int32
)

// NoScope, NoDecl, NoRef and NoFunc mark absent links.
const (
	NoScope ScopeID = -1
	NoDecl  DeclID  = -1
	NoRef   RefID   = -1
	NoFunc  FuncID  = -1
)

// StorageClass says where a Declaration lives at runtime.
type StorageClass uint8

const (
	Unassigned StorageClass = iota
	Global
	FunctionLocal
	BlockLocal
	Argument
	Register
	// NoStorage marks a function name that is only ever called directly.
	NoStorage
)

var storageClassNames = [...]string{
	Unassigned:    "unassigned",
	Global:        "global",
	FunctionLocal: "function",
	BlockLocal:    "block",
	Argument:      "arg",
	Register:      "register",
	NoStorage:     "none",
}

func (c StorageClass) String() string {
	if int(c) < len(storageClassNames) {
		return storageClassNames[c]
	}
	return fmt.Sprintf("StorageClass(%d)", c)
}

// DeclKind records which binding form introduced a Declaration.
type DeclKind uint8

const (
	KindVar DeclKind = iota
	KindLet
	KindConst
	KindParam
	KindFunction
	KindCatch
	KindImplicit
	KindArguments
	KindSelfName
)

var declKindNames = [...]string{
	KindVar:       "var",
	KindLet:       "let",
	KindConst:     "const",
	KindParam:     "param",
	KindFunction:  "function",
	KindCatch:     "catch",
	KindImplicit:  "implicit",
	KindArguments: "arguments",
	KindSelfName:  "self",
}

func (k DeclKind) String() string {
	if int(k) < len(declKindNames) {
		return declKindNames[k]
	}
	return fmt.Sprintf("DeclKind(%d)", k)
}

// DeclFlags are facts the resolver discovers about a Declaration.
type DeclFlags uint8

const (
	DeclImplicit    DeclFlags = 1 << iota // synthesized for an undeclared name
	DeclCaptured                          // referenced from a descendant Function
	DeclMutated                           // written after its declaration
	DeclFunction                          // names a function declaration
	DeclReadAsValue                       // used other than as a direct callee
)

// Declaration is a named binding.
type Declaration struct {
	Name  string
	Scope ScopeID
	Kind  DeclKind
	Flags DeclFlags

	Class StorageClass
	Index int // dense per class
	Slot  int // runtime frame slot for BlockLocal and Register

	ArgIndex int    // parameter position for KindParam
	Func     FuncID // declared function for KindFunction
}

func (d *Declaration) Has(f DeclFlags) bool { return d.Flags&f != 0 }

func (d *Declaration) IsConst() bool { return d.Kind == KindConst }

// ScopeKind distinguishes function bodies from nested blocks.
type ScopeKind uint8

const (
	ScopeRoot ScopeKind = iota
	ScopeFunction
	ScopeBlock
	ScopeCatch
)

// ScopeFlags
type ScopeFlags uint8

const (
	// ScopeDynamic: the scope or a descendant contains a direct eval.
	ScopeDynamic ScopeFlags = 1 << iota
	// ScopeDirectEval: the scope itself contains a direct eval call site.
	ScopeDirectEval
	// ScopeElided: spliced out of the runtime lookup chain by Flatten.
	ScopeElided
)

// Scope is one lexical region.
type Scope struct {
	ID     ScopeID
	Kind   ScopeKind
	Func   FuncID
	Depth  int
	Flags  ScopeFlags
	Parent ScopeID

	FirstChild  ScopeID
	lastChild   ScopeID
	NextSibling ScopeID

	// RuntimeParent is the nearest ancestor kept in the runtime chain.
	RuntimeParent ScopeID

	Decls []DeclID
	names map[string]DeclID

	BlockLocalCount int
	RegisterCount   int
}

func (s *Scope) Has(f ScopeFlags) bool { return s.Flags&f != 0 }

// SlotCount is the size of the Runtime Scope Frame backing this scope.
// Registers share the frame with block-locals.
func (s *Scope) SlotCount() int { return s.BlockLocalCount + s.RegisterCount }

// Lookup finds a Declaration made directly in this scope.
func (s *Scope) Lookup(name string) (DeclID, bool) {
	id, ok := s.names[name]
	return id, ok
}

// FuncFlags
type FuncFlags uint16

const (
	FuncArgsCaptured     FuncFlags = 1 << iota // an argument is referenced by a descendant
	FuncVarsCaptured                           // a variable is referenced by a descendant
	FuncCapturesAncestor                       // references a Declaration of an ancestor
	FuncArrow
	FuncDirectEval
	FuncUsesArguments
	FuncUsesThis
)

// Function is one compile unit: a function body or the program itself.
type Function struct {
	ID     FuncID
	Name   string
	Parent FuncID
	Scope  ScopeID // outermost scope
	Flags  FuncFlags

	// Scopes lists every scope owned by this function in creation order.
	Scopes []ScopeID
	// Children lists nested functions; a child's position is its call index.
	Children   []FuncID
	ChildIndex int

	Params   []DeclID
	SelfName DeclID // named function expression binding
	Args     DeclID // implicit `arguments`

	StartLine int
	EndLine   int

	FuncLocalCount int
	RegisterCount  int

	refHead RefID
	refTail RefID
}

func (f *Function) Has(fl FuncFlags) bool { return f.Flags&fl != 0 }

// Reference is a name-use site.
type Reference struct {
	Name  string
	Scope ScopeID
	Func  FuncID
	Line  int

	Write  bool // assignment target
	Call   bool // callee of a call expression
	Typeof bool // operand of typeof

	Next RefID

	// Binding after resolution. Tree is nil for the unit's own Declarations.
	Decl DeclID
	Tree *Tree
}

// Resolved reports whether the reference has been bound.
func (r *Reference) Resolved() bool { return r.Decl != NoDecl }

// Tree is the arena for one compilation unit.
type Tree struct {
	Scopes []Scope
	Decls  []Declaration
	Refs   []Reference
	Funcs  []Function

	Globals *GlobalTable

	// Enclosing is the unit an eval-like compilation runs inside.
	Enclosing      *Tree
	EnclosingScope ScopeID

	// PersistentRoot keeps root declarations reachable from later units.
	PersistentRoot bool

	resolved  bool
	allocated bool
}

// NewTree creates a unit with its root Function and root Scope.
// enclosing may be nil; globals is shared with every unit of the program.
func NewTree(globals *GlobalTable, enclosing *Tree, enclosingScope ScopeID) *Tree {
	if globals == nil {
		globals = NewGlobalTable()
	}
	t := &Tree{
		Globals:        globals,
		Enclosing:      enclosing,
		EnclosingScope: enclosingScope,
	}
	root := t.newFunction(NoFunc, NoScope, "<main>", ScopeRoot)
	t.Funcs[root].StartLine = 1
	return t
}

// Root is always function 0.
func (t *Tree) Root() *Function { return &t.Funcs[0] }

func (t *Tree) Scope(id ScopeID) *Scope { return &t.Scopes[id] }

func (t *Tree) Decl(id DeclID) *Declaration { return &t.Decls[id] }

func (t *Tree) Ref(id RefID) *Reference { return &t.Refs[id] }

func (t *Tree) Func(id FuncID) *Function { return &t.Funcs[id] }

// IsProgramRoot reports whether s is the root scope of a top-level unit.
func (t *Tree) IsProgramRoot(s ScopeID) bool {
	return s == t.Root().Scope && t.Enclosing == nil
}

// FunctionScope returns the outermost scope of the function owning s.
func (t *Tree) FunctionScope(s ScopeID) ScopeID {
	return t.Funcs[t.Scopes[s].Func].Scope
}

func (t *Tree) newScope(parent ScopeID, fn FuncID, kind ScopeKind) ScopeID {
	id := ScopeID(len(t.Scopes))
	depth := 0
	if parent != NoScope {
		depth = t.Scopes[parent].Depth + 1
	}
	t.Scopes = append(t.Scopes, Scope{
		ID:            id,
		Kind:          kind,
		Func:          fn,
		Depth:         depth,
		Parent:        parent,
		FirstChild:    NoScope,
		lastChild:     NoScope,
		NextSibling:   NoScope,
		RuntimeParent: parent,
		names:         make(map[string]DeclID),
	})
	if parent != NoScope {
		p := &t.Scopes[parent]
		if p.lastChild == NoScope {
			p.FirstChild = id
		} else {
			t.Scopes[p.lastChild].NextSibling = id
		}
		p.lastChild = id
	}
	t.Funcs[fn].Scopes = append(t.Funcs[fn].Scopes, id)
	return id
}

func (t *Tree) newFunction(parent FuncID, parentScope ScopeID, name string, kind ScopeKind) FuncID {
	id := FuncID(len(t.Funcs))
	t.Funcs = append(t.Funcs, Function{
		ID:       id,
		Name:     name,
		Parent:   parent,
		SelfName: NoDecl,
		Args:     NoDecl,
		refHead:  NoRef,
		refTail:  NoRef,
	})
	if parent != NoFunc {
		p := &t.Funcs[parent]
		t.Funcs[id].ChildIndex = len(p.Children)
		p.Children = append(p.Children, id)
	}
	t.Funcs[id].Scope = t.newScope(parentScope, id, kind)
	return id
}

// NewFunction opens a nested function body under parentScope.
func (t *Tree) NewFunction(parentScope ScopeID, name string, arrow bool, line int) FuncID {
	parent := t.Scopes[parentScope].Func
	id := t.newFunction(parent, parentScope, name, ScopeFunction)
	f := &t.Funcs[id]
	f.StartLine = line
	if arrow {
		f.Flags |= FuncArrow
	}
	return id
}

// NewBlockScope opens a block scope nested in parent, owned by parent's function.
func (t *Tree) NewBlockScope(parent ScopeID) ScopeID {
	return t.newScope(parent, t.Scopes[parent].Func, ScopeBlock)
}

// NewCatchScope opens the scope holding a catch parameter.
func (t *Tree) NewCatchScope(parent ScopeID) ScopeID {
	return t.newScope(parent, t.Scopes[parent].Func, ScopeCatch)
}

// Children iterates the direct child scopes of s in creation order.
func (t *Tree) Children(s ScopeID) []ScopeID {
	var out []ScopeID
	for c := t.Scopes[s].FirstChild; c != NoScope; c = t.Scopes[c].NextSibling {
		out = append(out, c)
	}
	return out
}

// MarkDirectEval flags s as containing a direct eval and propagates the
// dynamic flag to every ancestor scope, across function boundaries.
func (t *Tree) MarkDirectEval(s ScopeID) {
	t.Scopes[s].Flags |= ScopeDirectEval
	t.Funcs[t.Scopes[s].Func].Flags |= FuncDirectEval
	for cur := s; cur != NoScope; cur = t.Scopes[cur].Parent {
		t.Scopes[cur].Flags |= ScopeDynamic
	}
}

// MarkUsesThis records a `this` use, attributing arrows to their enclosing function.
func (t *Tree) MarkUsesThis(s ScopeID) {
	f := t.Scopes[s].Func
	for f != NoFunc {
		t.Funcs[f].Flags |= FuncUsesThis
		if !t.Funcs[f].Has(FuncArrow) {
			return
		}
		f = t.Funcs[f].Parent
	}
}
