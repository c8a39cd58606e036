package console

import (
	"sort"
	"testing"

	"github.com/mozaika228/barecore/kernel/hal/bootinfo"
)

func TestProbes(t *testing.T) {
	defer func() {
		getBootInfoFn = bootinfo.Get
	}()

	specs := []struct {
		info   bootinfo.Info
		expFb  bool
		expBGR bool
		expBpp uint32
	}{
		{bootinfo.Info{Magic: bootinfo.Magic, FramebufferBase: 0x80000000, Width: 800, Height: 600, Pitch: 800, Bpp: 32, Format: bootinfo.PixelBGRX}, true, true, 32},
		{bootinfo.Info{Magic: bootinfo.Magic, FramebufferBase: 0x80000000, Width: 800, Height: 600, Pitch: 832, Bpp: 24, Format: bootinfo.PixelRGBX}, true, false, 24},
		{bootinfo.Info{Magic: bootinfo.Magic, FramebufferBase: 0x80000000, Width: 800, Height: 600, Pitch: 800, Bpp: 16}, false, false, 0},
		{bootinfo.Info{Magic: bootinfo.Magic, Width: 800, Height: 600, Pitch: 800, Bpp: 32}, false, false, 0},
		{bootinfo.Info{Magic: 0xbad, FramebufferBase: 0x80000000, Width: 800, Height: 600, Pitch: 800, Bpp: 32}, false, false, 0},
	}

	for specIndex, spec := range specs {
		info := spec.info
		getBootInfoFn = func() *bootinfo.Info { return &info }

		drv := probeForFramebufferConsole()
		if !spec.expFb {
			if drv != nil {
				t.Errorf("[spec %d] expected no framebuffer console", specIndex)
			}
			continue
		}

		cons, ok := drv.(*FramebufferConsole)
		if !ok {
			t.Errorf("[spec %d] expected a *FramebufferConsole; got %T", specIndex, drv)
			continue
		}

		if cons.bgr != spec.expBGR || cons.bytesPerPixel<<3 != spec.expBpp {
			t.Errorf("[spec %d] expected bpp %d and bgr %t; got bpp %d and bgr %t", specIndex, spec.expBpp, spec.expBGR, cons.bytesPerPixel<<3, cons.bgr)
		}
		if exp := info.Pitch * spec.expBpp / 8; cons.pitch != exp {
			t.Errorf("[spec %d] expected pitch of %d bytes; got %d", specIndex, exp, cons.pitch)
		}
		if cons.fbAddr != uintptr(info.FramebufferBase) {
			t.Errorf("[spec %d] expected framebuffer at 0x%x; got 0x%x", specIndex, info.FramebufferBase, cons.fbAddr)
		}
	}
}

func TestProbeForVgaTextConsole(t *testing.T) {
	drv := probeForVgaTextConsole()
	cons, ok := drv.(*VgaTextConsole)
	if !ok {
		t.Fatalf("expected a *VgaTextConsole; got %T", drv)
	}

	if w, h := cons.Dimensions(Characters); w != VgaTextColumns || h != VgaTextRows {
		t.Errorf("expected an %dx%d console; got %dx%d", VgaTextColumns, VgaTextRows, w, h)
	}
	if cons.fbAddr != VgaTextAddr {
		t.Errorf("expected text buffer at 0x%x; got 0x%x", VgaTextAddr, cons.fbAddr)
	}
}

func TestProbeOrder(t *testing.T) {
	probes := Probes()
	sort.Stable(probes)

	if len(probes) != 2 {
		t.Fatalf("expected 2 probes; got %d", len(probes))
	}

	// The fallback text console is probed last.
	if _, ok := probes[1].Probe().(*VgaTextConsole); !ok {
		t.Fatal("expected the VGA text console to be probed last")
	}
}
