package irq

import (
	"testing"

	"github.com/mozaika228/barecore/kernel/cpu"
)

type portWrite struct {
	port uint16
	val  uint8
}

func mockPorts(t *testing.T, readVal map[uint16]uint8) *[]portWrite {
	var writes []portWrite
	portWriteByteFn = func(port uint16, val uint8) {
		writes = append(writes, portWrite{port, val})
	}
	portReadByteFn = func(port uint16) uint8 {
		return readVal[port]
	}
	ioWaitFn = func() {}

	t.Cleanup(func() {
		portWriteByteFn = cpu.PortWriteByte
		portReadByteFn = cpu.PortReadByte
		ioWaitFn = cpu.IOWait
	})

	return &writes
}

func TestRemap(t *testing.T) {
	writes := mockPorts(t, map[uint16]uint8{
		masterDataPort: 0xb8,
		slaveDataPort:  0x8e,
	})

	var waits int
	ioWaitFn = func() { waits++ }

	Remap(0x20, 0x28)

	exp := []portWrite{
		{0x20, 0x11},
		{0xa0, 0x11},
		{0x21, 0x20},
		{0xa1, 0x28},
		{0x21, 0x04},
		{0xa1, 0x02},
		{0x21, 0x01},
		{0xa1, 0x01},
		// previous masks restored
		{0x21, 0xb8},
		{0xa1, 0x8e},
	}

	assertWrites(t, *writes, exp)

	if waits != 8 {
		t.Errorf("expected an io wait after each of the 8 ICW writes; got %d", waits)
	}
}

func TestInit(t *testing.T) {
	writes := mockPorts(t, nil)

	Init()

	got := *writes
	if len(got) < 2 {
		t.Fatalf("expected at least 2 port writes; got %d", len(got))
	}

	if exp := (portWrite{0x21, 0xfe}); got[len(got)-2] != exp {
		t.Errorf("expected master mask write %v; got %v", exp, got[len(got)-2])
	}
	if exp := (portWrite{0xa1, 0xff}); got[len(got)-1] != exp {
		t.Errorf("expected slave mask write %v; got %v", exp, got[len(got)-1])
	}
	if exp := (portWrite{0x21, MasterOffset}); got[2] != exp {
		t.Errorf("expected master offset write %v; got %v", exp, got[2])
	}
}

func TestEOI(t *testing.T) {
	specs := []struct {
		line uint8
		exp  []portWrite
	}{
		{TimerLine, []portWrite{{0x20, 0x20}}},
		{7, []portWrite{{0x20, 0x20}}},
		{8, []portWrite{{0xa0, 0x20}, {0x20, 0x20}}},
		{15, []portWrite{{0xa0, 0x20}, {0x20, 0x20}}},
	}

	for _, spec := range specs {
		writes := mockPorts(t, nil)
		EOI(spec.line)
		assertWrites(t, *writes, spec.exp)
	}
}

func assertWrites(t *testing.T, got, exp []portWrite) {
	t.Helper()
	if len(got) != len(exp) {
		t.Fatalf("expected %d port writes; got %d: %v", len(exp), len(got), got)
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("write %d: expected port 0x%x <- 0x%x; got port 0x%x <- 0x%x", i, exp[i].port, exp[i].val, got[i].port, got[i].val)
		}
	}
}
