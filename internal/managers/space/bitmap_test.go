package space

import (
	"testing"

	"github.com/deploymenttheory/go-shellshock/internal/device"
)

func TestBitmap_FormatReservesAndLimits(t *testing.T) {
	dev := device.NewMemoryDevice(4)
	bm, err := FormatBitmap(dev, 1, 1, 10, []int{0, 3})
	if err != nil {
		t.Fatalf("FormatBitmap failed: %v", err)
	}
	if bm.Free() != 8 {
		t.Errorf("Free() = %d, want 8", bm.Free())
	}

	var got []int
	for {
		i, ok, err := bm.Allocate()
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, i)
	}
	want := []int{1, 2, 4, 5, 6, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("allocated %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("allocation %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBitmap_PersistsThroughReload(t *testing.T) {
	dev := device.NewMemoryDevice(4)
	bm, err := FormatBitmap(dev, 2, 2, 5000, nil)
	if err != nil {
		t.Fatalf("FormatBitmap failed: %v", err)
	}
	for i := 0; i < 4200; i++ {
		if _, _, err := bm.Allocate(); err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
	}
	if err := bm.Release(4100); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	loaded, err := LoadBitmap(dev, 2, 2, 5000)
	if err != nil {
		t.Fatalf("LoadBitmap failed: %v", err)
	}
	if loaded.Free() != bm.Free() {
		t.Errorf("reloaded Free() = %d, want %d", loaded.Free(), bm.Free())
	}
	if loaded.IsSet(4100) {
		t.Error("bit 4100 should be clear after reload")
	}
	if !loaded.IsSet(4099) {
		t.Error("bit 4099 should be set after reload")
	}
}

func TestBitmap_ReleaseErrors(t *testing.T) {
	dev := device.NewMemoryDevice(2)
	bm, err := FormatBitmap(dev, 1, 1, 16, nil)
	if err != nil {
		t.Fatalf("FormatBitmap failed: %v", err)
	}
	if err := bm.Release(3); err == nil {
		t.Error("releasing a clear bit should fail")
	}
	if err := bm.Release(16); err == nil {
		t.Error("releasing past the end should fail")
	}
}
