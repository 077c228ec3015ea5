package scope

import "fmt"

// RedeclarationError reports a let/const collision inside one Scope.
type RedeclarationError struct {
	Name string
}

func (e *RedeclarationError) Error() string {
	return fmt.Sprintf("Identifier '%s' has already been declared", e.Name)
}

func (t *Tree) addDecl(s ScopeID, name string, kind DeclKind) DeclID {
	id := DeclID(len(t.Decls))
	t.Decls = append(t.Decls, Declaration{
		Name:     name,
		Scope:    s,
		Kind:     kind,
		Index:    -1,
		Slot:     -1,
		ArgIndex: -1,
		Func:     NoFunc,
	})
	sc := &t.Scopes[s]
	sc.Decls = append(sc.Decls, id)
	sc.names[name] = id
	return id
}

// varTarget is where a `var` binds: the outermost scope of the owning Function.
func (t *Tree) varTarget(s ScopeID) ScopeID {
	return t.FunctionScope(s)
}

// DeclareVariable declares name in s. `var` hoists to the Function's outermost
// Scope and is a no-op against an existing Declaration there; let and const
// bind in s itself and collide with anything already declared in s.
func (t *Tree) DeclareVariable(s ScopeID, name string, kind DeclKind) (DeclID, error) {
	switch kind {
	case KindVar:
		target := t.varTarget(s)
		// a var inside a block cannot hoist past a lexical binding of the same name
		for cur := s; cur != target; cur = t.Scopes[cur].Parent {
			if id, ok := t.Scopes[cur].Lookup(name); ok && t.Decls[id].Kind != KindVar && t.Decls[id].Kind != KindCatch {
				return NoDecl, &RedeclarationError{Name: name}
			}
		}
		if id, ok := t.Scopes[target].Lookup(name); ok {
			d := &t.Decls[id]
			switch d.Kind {
			case KindLet, KindConst:
				return NoDecl, &RedeclarationError{Name: name}
			case KindSelfName, KindArguments:
				// shadowed by an ordinary variable
			default:
				return id, nil
			}
		}
		return t.addDecl(target, name, KindVar), nil
	case KindLet, KindConst:
		if id, ok := t.Scopes[s].Lookup(name); ok {
			switch t.Decls[id].Kind {
			case KindSelfName, KindArguments:
			default:
				return NoDecl, &RedeclarationError{Name: name}
			}
		}
		return t.addDecl(s, name, kind), nil
	default:
		panic(fmt.Sprintf("scope: DeclareVariable with kind %s", kind))
	}
}

// DeclareArgument binds the index-th parameter in a Function's outermost Scope.
// A repeated parameter name keeps the first Declaration.
func (t *Tree) DeclareArgument(fn FuncID, name string, index int) DeclID {
	f := &t.Funcs[fn]
	if id, ok := t.Scopes[f.Scope].Lookup(name); ok && t.Decls[id].Kind == KindParam {
		t.Decls[id].ArgIndex = index
		f.Params = append(f.Params, id)
		return id
	}
	id := t.addDecl(f.Scope, name, KindParam)
	t.Decls[id].ArgIndex = index
	f.Params = append(f.Params, id)
	return id
}

// DeclareFunction binds a function declaration's name in s. Redeclaring over
// a var, parameter or earlier function keeps the existing Declaration and
// marks it mutated, since more than one initializer now writes it.
func (t *Tree) DeclareFunction(s ScopeID, name string, child FuncID) (DeclID, error) {
	if id, ok := t.Scopes[s].Lookup(name); ok {
		d := &t.Decls[id]
		switch d.Kind {
		case KindLet, KindConst, KindCatch:
			return NoDecl, &RedeclarationError{Name: name}
		case KindSelfName, KindArguments:
		default:
			d.Flags |= DeclMutated | DeclFunction
			return id, nil
		}
	}
	id := t.addDecl(s, name, KindFunction)
	d := &t.Decls[id]
	d.Flags |= DeclFunction
	d.Func = child
	return id, nil
}

// DeclareCatchParam binds the catch clause parameter in its own Scope.
func (t *Tree) DeclareCatchParam(s ScopeID, name string) DeclID {
	return t.addDecl(s, name, KindCatch)
}

// DeclareSelfName binds a named function expression's own name.
func (t *Tree) DeclareSelfName(fn FuncID, name string) DeclID {
	f := &t.Funcs[fn]
	id := t.addDecl(f.Scope, name, KindSelfName)
	f.SelfName = id
	return id
}

// declareArguments synthesizes the implicit `arguments` binding of fn.
func (t *Tree) declareArguments(fn FuncID) DeclID {
	f := &t.Funcs[fn]
	if f.Args != NoDecl {
		return f.Args
	}
	id := t.addDecl(f.Scope, "arguments", KindArguments)
	f.Args = id
	f.Flags |= FuncUsesArguments
	return id
}

// DeclareImplicitGlobal synthesizes a global for an undeclared name at the
// unit's root and registers it in the shared GlobalTable.
func (t *Tree) DeclareImplicitGlobal(name string) DeclID {
	root := t.Root().Scope
	if id, ok := t.Scopes[root].Lookup(name); ok && t.Decls[id].Has(DeclImplicit) {
		return id
	}
	id := t.addDecl(root, name, KindImplicit)
	d := &t.Decls[id]
	d.Flags |= DeclImplicit
	d.Class = Global
	d.Index = t.Globals.Intern(name)
	return id
}

// AddReference records a name use and threads it onto the owning Function's list.
func (t *Tree) AddReference(s ScopeID, name string, line int) RefID {
	fn := t.Scopes[s].Func
	id := RefID(len(t.Refs))
	t.Refs = append(t.Refs, Reference{
		Name:  name,
		Scope: s,
		Func:  fn,
		Line:  line,
		Next:  NoRef,
		Decl:  NoDecl,
	})
	f := &t.Funcs[fn]
	if f.refTail == NoRef {
		f.refHead = id
	} else {
		t.Refs[f.refTail].Next = id
	}
	f.refTail = id
	return id
}

// References walks fn's threaded reference list in creation order.
func (t *Tree) References(fn FuncID, visit func(RefID, *Reference)) {
	for id := t.Funcs[fn].refHead; id != NoRef; id = t.Refs[id].Next {
		visit(id, &t.Refs[id])
	}
}
