package cache

import (
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/compiler"
)

func compile(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	prog, err := compiler.Compile(src, compiler.Options{})
	be.Err(t, err, nil)
	return prog
}

func TestKey(t *testing.T) {
	a := Key("1 + 1", bytecode.ModeProgram)
	be.Equal(t, len(a), 64)
	be.Equal(t, Key("1 + 1", bytecode.ModeProgram), a)
	be.True(t, Key("1 + 1", bytecode.ModeExpression) != a)
	be.True(t, Key("1 + 2", bytecode.ModeProgram) != a)
}

func TestPutGet(t *testing.T) {
	c, err := Open(":memory:")
	be.Err(t, err, nil)
	defer c.Close()

	src := "function f(a) { return a * 2; } f(4);"
	prog := compile(t, src)
	key := Key(src, prog.Mode)

	_, err = c.Get(key)
	be.Err(t, err, ErrMiss)

	id, err := c.Put(key, "double.js", prog)
	be.Err(t, err, nil)
	be.Equal(t, len(id), 36)

	got, err := c.Get(key)
	be.Err(t, err, nil)
	be.Equal(t, got.Source, src)
	be.Equal(t, got.Root.Code, prog.Root.Code)
	be.Equal(t, got.Strings, prog.Strings)

	entries, err := c.Entries()
	be.Err(t, err, nil)
	be.Equal(t, len(entries), 1)
	be.Equal(t, entries[0].ID, id)
	be.Equal(t, entries[0].Name, "double.js")
	be.Equal(t, entries[0].Hits, 1)
}

func TestPutReplaces(t *testing.T) {
	c, err := Open(":memory:")
	be.Err(t, err, nil)
	defer c.Close()

	prog := compile(t, "1")
	first, err := c.Put("k", "a", prog)
	be.Err(t, err, nil)
	second, err := c.Put("k", "b", prog)
	be.Err(t, err, nil)
	be.True(t, first != second)

	entries, err := c.Entries()
	be.Err(t, err, nil)
	be.Equal(t, len(entries), 1)
	be.Equal(t, entries[0].Name, "b")
}

func TestCorruptEntryIsDropped(t *testing.T) {
	c, err := Open(":memory:")
	be.Err(t, err, nil)
	defer c.Close()

	_, err = c.db.Exec("INSERT INTO programs (key, id, name, mode, image, created) VALUES ('bad0000000000', 'x', 'x', 0, x'00', 0)")
	be.Err(t, err, nil)

	_, err = c.Get("bad0000000000")
	be.Err(t, err, ErrMiss)
	entries, err := c.Entries()
	be.Err(t, err, nil)
	be.Equal(t, len(entries), 0)
}

func TestFileBackedAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "programs.db")
	c, err := Open(path)
	be.Err(t, err, nil)
	_, err = c.Put(Key("x", bytecode.ModeProgram), "x", compile(t, "var x = 1;"))
	be.Err(t, err, nil)
	be.Err(t, c.Close(), nil)

	c, err = Open(path)
	be.Err(t, err, nil)
	defer c.Close()
	be.Equal(t, c.Path(), path)

	n, err := c.Clear()
	be.Err(t, err, nil)
	be.Equal(t, n, int64(1))
}
