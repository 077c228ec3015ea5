package pool

import (
	"math"
	"testing"

	"github.com/nalgeon/be"
)

func TestInternString(t *testing.T) {
	p := New(0)
	be.Equal(t, p.InternString("a"), uint32(0))
	be.Equal(t, p.InternString("b"), uint32(1))
	be.Equal(t, p.InternString("a"), uint32(0))
	be.Equal(t, p.String(1), "b")
	be.Equal(t, p.String(9), "")
	be.Equal(t, p.Strings(), []string{"a", "b"})
}

func TestInternDoubleKeysByBits(t *testing.T) {
	p := New(0)
	zero := p.InternDouble(0)
	negZero := p.InternDouble(math.Copysign(0, -1))
	be.True(t, zero != negZero)
	be.True(t, math.Signbit(p.Double(negZero)))

	nan := p.InternDouble(math.NaN())
	be.Equal(t, p.InternDouble(math.NaN()), nan)
	be.True(t, math.IsNaN(p.Double(nan)))
	be.True(t, math.IsNaN(p.Double(100)))
	be.Equal(t, len(p.Doubles()), 3)
}

func TestFromTablesKeepsHandles(t *testing.T) {
	p := FromTables([]string{"x", "y"}, []float64{1.5, 2.5})
	be.Equal(t, p.InternString("y"), uint32(1))
	be.Equal(t, p.InternDouble(1.5), uint32(0))
	be.Equal(t, p.InternString("z"), uint32(2))
	be.Equal(t, p.BufferSize(), DefaultBufferSize)
}

func TestBufferReuse(t *testing.T) {
	p := New(8)
	b := p.AcquireBuffer()
	be.Equal(t, cap(b), 8)
	be.Equal(t, len(b), 0)
	b = append(b, 1, 2, 3)
	be.Equal(t, p.Outstanding(), 1)

	p.ReleaseBuffer(b)
	be.Equal(t, p.Outstanding(), 0)
	again := p.AcquireBuffer()
	be.Equal(t, len(again), 0)
	be.Equal(t, &again[:1][0], &b[0])

	// buffers of another size are not taken back
	p.ReleaseBuffer(make([]byte, 0, 4))
	be.Equal(t, p.Outstanding(), 1)
}
