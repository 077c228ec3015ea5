package scope

// Resolve binds every Reference of the unit. It runs once, after the whole
// unit (nested Functions included) has been parsed: a name may be used before
// the statement declaring it, and capture facts are only complete once every
// nested Function has been seen.
func (t *Tree) Resolve() {
	if t.resolved {
		return
	}
	// Code compiled by a direct eval may name `arguments`; the enclosing unit
	// cannot grow after it is finished, so the binding is made eagerly.
	for i := range t.Scopes {
		if !t.Scopes[i].Has(ScopeDirectEval) {
			continue
		}
		if fn := t.argumentsOwner(t.Scopes[i].Func); fn != NoFunc {
			t.declareArguments(fn)
		}
	}
	for fi := range t.Funcs {
		t.References(FuncID(fi), func(id RefID, _ *Reference) {
			t.resolveReference(id)
		})
	}
	t.resolved = true
}

// argumentsOwner is the nearest non-arrow Function at or above fn, or NoFunc
// when the walk reaches the unit root.
func (t *Tree) argumentsOwner(fn FuncID) FuncID {
	for fn != NoFunc {
		f := &t.Funcs[fn]
		if f.Parent == NoFunc {
			return NoFunc
		}
		if !f.Has(FuncArrow) {
			return fn
		}
		fn = f.Parent
	}
	return NoFunc
}

func (t *Tree) resolveReference(id RefID) {
	r := &t.Refs[id]
	if r.Resolved() {
		return
	}
	for s := r.Scope; s != NoScope; s = t.Scopes[s].Parent {
		if d, ok := t.Scopes[s].Lookup(r.Name); ok {
			t.bind(r, d)
			return
		}
		if r.Name == "arguments" && t.Funcs[t.Scopes[s].Func].Scope == s {
			fn := t.Scopes[s].Func
			f := &t.Funcs[fn]
			if f.Parent != NoFunc && !f.Has(FuncArrow) {
				t.bind(r, t.declareArguments(fn))
				return
			}
		}
	}
	if t.Enclosing != nil {
		if owner, d, ok := t.Enclosing.lookupFrom(t.EnclosingScope, r.Name); ok {
			r.Tree = owner
			r.Decl = d
			return
		}
	}
	t.bind(r, t.DeclareImplicitGlobal(r.Name))
}

// lookupFrom walks a finished unit outward from s without modifying it.
func (t *Tree) lookupFrom(s ScopeID, name string) (*Tree, DeclID, bool) {
	for ; s != NoScope; s = t.Scopes[s].Parent {
		if d, ok := t.Scopes[s].Lookup(name); ok {
			return t, d, true
		}
	}
	if t.Enclosing != nil {
		return t.Enclosing.lookupFrom(t.EnclosingScope, name)
	}
	return nil, NoDecl, false
}

// bind attaches r to a Declaration of this unit and records what the use
// tells about it. Crossing a Function boundary marks the Declaration captured,
// flags the declaring Function by argument or variable capture, and flags
// every Function from the referencing one up to (not including) the declarer.
func (t *Tree) bind(r *Reference, id DeclID) {
	r.Decl = id
	d := &t.Decls[id]
	if r.Write {
		d.Flags |= DeclMutated
	}
	if !r.Call && !r.Write {
		d.Flags |= DeclReadAsValue
	}
	if d.Class == Global {
		return
	}
	declFn := t.Scopes[d.Scope].Func
	if declFn == r.Func {
		return
	}
	d.Flags |= DeclCaptured
	if d.Kind == KindParam {
		t.Funcs[declFn].Flags |= FuncArgsCaptured
	} else {
		t.Funcs[declFn].Flags |= FuncVarsCaptured
	}
	for f := r.Func; f != declFn && f != NoFunc; f = t.Funcs[f].Parent {
		t.Funcs[f].Flags |= FuncCapturesAncestor
	}
}
