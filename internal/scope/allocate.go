package scope

import "fmt"

// Flatten splices block Scopes without Declarations out of the runtime
// lookup chain. Function bookkeeping keeps them; only RuntimeParent changes.
func (t *Tree) Flatten() {
	for i := range t.Scopes {
		s := &t.Scopes[i]
		if (s.Kind == ScopeBlock || s.Kind == ScopeCatch) && len(s.Decls) == 0 {
			s.Flags |= ScopeElided
		}
	}
	// parents always precede children in the arena
	for i := range t.Scopes {
		s := &t.Scopes[i]
		p := s.Parent
		if p != NoScope && t.Scopes[p].Has(ScopeElided) {
			p = t.Scopes[p].RuntimeParent
		}
		s.RuntimeParent = p
	}
}

// Allocate assigns every Declaration its storage class, index and frame slot.
// It must follow Resolve; after it returns the Tree is never mutated again.
func (t *Tree) Allocate() {
	if !t.resolved {
		panic("scope: Allocate before Resolve")
	}
	if t.allocated {
		return
	}
	t.Flatten()
	for fi := range t.Funcs {
		f := &t.Funcs[fi]
		reg := 0
		t.allocateScope(f.Scope, &reg)
		f.RegisterCount = reg
	}
	t.allocated = true
}

func (t *Tree) allocateScope(s ScopeID, reg *int) {
	sc := &t.Scopes[s]
	fn := &t.Funcs[sc.Func]
	root := s == t.Root().Scope
	dynamic := sc.Has(ScopeDynamic) || (root && t.PersistentRoot)
	globalHome := t.IsProgramRoot(s)

	var registers []DeclID
	for _, id := range sc.Decls {
		d := &t.Decls[id]
		if d.Class != Unassigned {
			continue
		}
		switch {
		case d.Kind == KindParam:
			d.Class = Argument
			d.Index = d.ArgIndex
		case d.Has(DeclFunction):
			switch {
			case d.Kind == KindFunction && !d.Has(DeclReadAsValue) && !d.Has(DeclMutated) && !dynamic:
				d.Class = NoStorage
			case globalHome && t.PersistentRoot:
				d.Class = Global
				d.Index = t.Globals.Intern(d.Name)
			default:
				d.Class = FunctionLocal
				d.Index = fn.FuncLocalCount
				fn.FuncLocalCount++
			}
		case d.Has(DeclCaptured) || dynamic:
			if globalHome {
				d.Class = Global
				d.Index = t.Globals.Intern(d.Name)
			} else {
				d.Class = BlockLocal
				d.Index = sc.BlockLocalCount
				d.Slot = d.Index
				sc.BlockLocalCount++
			}
		default:
			d.Class = Register
			d.Index = *reg
			*reg++
			registers = append(registers, id)
		}
	}
	for i, id := range registers {
		t.Decls[id].Slot = sc.BlockLocalCount + i
	}
	sc.RegisterCount = len(registers)

	for c := sc.FirstChild; c != NoScope; c = t.Scopes[c].NextSibling {
		if t.Scopes[c].Func == sc.Func {
			t.allocateScope(c, reg)
		}
	}
}

// RuntimeScope is the scope whose frame is current while code of s runs.
func (t *Tree) RuntimeScope(s ScopeID) ScopeID {
	if t.Scopes[s].Has(ScopeElided) {
		return t.Scopes[s].RuntimeParent
	}
	return s
}

// Hops counts runtime frames between the frame current in from and the frame
// of to, which must be a kept ancestor on the runtime chain.
func (t *Tree) Hops(from, to ScopeID) int {
	n := 0
	for cur := t.RuntimeScope(from); cur != to; cur = t.Scopes[cur].RuntimeParent {
		if cur == NoScope {
			panic(fmt.Sprintf("scope: scope %d is not a runtime ancestor of %d", to, from))
		}
		n++
	}
	return n
}

// Access locates a storage-backed binding relative to the code that uses it.
type Access struct {
	Class StorageClass
	Depth int
	Index int
}

// AccessRef locates the binding of a resolved Reference as seen from its own Scope.
func (t *Tree) AccessRef(r *Reference) Access {
	owner := r.Tree
	if owner == nil {
		owner = t
	}
	return t.access(r.Scope, owner, r.Decl)
}

// AccessDecl locates a Declaration of this unit as seen from scope from.
func (t *Tree) AccessDecl(from ScopeID, id DeclID) Access {
	return t.access(from, t, id)
}

func (t *Tree) access(from ScopeID, owner *Tree, id DeclID) Access {
	depth := 0
	cur, s := t, from
	for cur != owner {
		// leave this unit's root frame for the frame it was evaluated in
		depth += cur.Hops(s, cur.Root().Scope) + 1
		s = cur.EnclosingScope
		cur = cur.Enclosing
		if cur == nil {
			panic("scope: foreign binding outside the enclosing chain")
		}
	}
	d := &owner.Decls[id]
	switch d.Class {
	case Global:
		return Access{Class: Global, Index: d.Index}
	case BlockLocal, Register:
		return Access{Class: d.Class, Depth: depth + owner.Hops(s, d.Scope), Index: d.Slot}
	case Argument, FunctionLocal:
		return Access{Class: d.Class, Depth: depth + owner.Hops(s, owner.FunctionScope(d.Scope)), Index: d.Index}
	case NoStorage:
		panic(fmt.Sprintf("scope: %q has no runtime storage", d.Name))
	default:
		panic(fmt.Sprintf("scope: %q reached code generation with storage class %s", d.Name, d.Class))
	}
}

// DirectCall is the specialized call target for a function Declaration that
// needs no runtime storage.
type DirectCall struct {
	Depth int // hops to the frame the callee is defined in
	Child int // index in the defining Function's Children
}

// CallTarget reports whether a call through r may use the direct form.
func (t *Tree) CallTarget(r *Reference) (DirectCall, bool) {
	if r.Tree != nil || r.Decl == NoDecl {
		return DirectCall{}, false
	}
	d := &t.Decls[r.Decl]
	if d.Class != NoStorage {
		return DirectCall{}, false
	}
	return DirectCall{
		Depth: t.Hops(r.Scope, d.Scope),
		Child: t.Funcs[d.Func].ChildIndex,
	}, true
}
