package compiler

import (
	"fmt"

	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/bytecode"
)

type controlKind uint8

const (
	ctlLoop    controlKind = iota // break/continue target
	ctlScope                      // an entered runtime frame
	ctlTry                        // an active TRY_BEGIN handler
	ctlFinally                    // a finally block that exits must run
	ctlStack                      // values held on the operand stack
)

// control is one entry of the compile-time stack of constructs that a
// break, continue or return has to unwind.
type control struct {
	kind    controlKind
	brk     bytecode.Label
	cont    bytecode.Label
	finally *ast.BlockStatement
	values  int
}

func (fc *funcCompiler) push(c control) { fc.ctl = append(fc.ctl, c) }

func (fc *funcCompiler) pop(kind controlKind) {
	n := len(fc.ctl)
	if n == 0 || fc.ctl[n-1].kind != kind {
		panic(fmt.Sprintf("compiler: control stack out of balance popping kind %d", kind))
	}
	fc.ctl = fc.ctl[:n-1]
}

// innermostLoop returns the index of the nearest loop entry.
func (fc *funcCompiler) innermostLoop() int {
	for i := len(fc.ctl) - 1; i >= 0; i-- {
		if fc.ctl[i].kind == ctlLoop {
			return i
		}
	}
	panic("compiler: break or continue outside a loop")
}

// unwind emits the cleanup for leaving every construct above index target
// (-1 leaves them all). A return keeps its value on top of the stack, so
// stack-held values below it are left for RETURN to discard.
func (fc *funcCompiler) unwind(target int, returning bool) {
	leave := 0
	flush := func() {
		if leave > 0 {
			fc.e.Emit(bytecode.OP_LEAVE_SCOPE, leave)
			leave = 0
		}
	}
	for i := len(fc.ctl) - 1; i > target; i-- {
		c := fc.ctl[i]
		if c.kind == ctlScope {
			leave++
			if leave == 0xFF {
				flush()
			}
			continue
		}
		flush()
		switch c.kind {
		case ctlTry:
			fc.e.Emit(bytecode.OP_TRY_END)
		case ctlFinally:
			// the finally body runs with only the constructs outside it active
			saved := fc.ctl
			fc.ctl = append([]control(nil), fc.ctl[:i]...)
			fc.block(c.finally)
			fc.ctl = saved
		case ctlStack:
			if !returning {
				for n := 0; n < c.values; n++ {
					fc.e.Emit(bytecode.OP_POP)
				}
			}
		}
	}
	flush()
}
