package vulkan

import "testing"

func TestValidateEnvmapSize(t *testing.T) {
	tests := []struct {
		size    uint32
		wantErr bool
	}{
		{1024, false},
		{512, false},
		{32, false},
		{96, false},
		{0, true},
		{16, true},
		{1000, true},
		{1025, true},
	}

	for _, tt := range tests {
		err := ValidateEnvmapSize(tt.size)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateEnvmapSize(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
		}
	}
}

func TestPrefilterDispatchGroups(t *testing.T) {
	if got := PrefilterDispatchGroups(1024); got != 32 {
		t.Errorf("groups for 1024 = %d, want 32", got)
	}
	if got := PrefilterDispatchGroups(32); got != 1 {
		t.Errorf("groups for 32 = %d, want 1", got)
	}
}

func TestMipChainSchedule(t *testing.T) {
	const size = 1024
	levels := NumMipLevels(size, size)
	if levels != 11 {
		t.Fatalf("NumMipLevels(1024) = %d, want 11", levels)
	}

	// Each level halves the previous one, floored, down to 1x1 at the tail.
	prevW, prevH := MipExtent(size, size, 0)
	if prevW != size || prevH != size {
		t.Fatalf("level 0 extent = %dx%d, want %dx%d", prevW, prevH, size, size)
	}
	for level := uint32(1); level < levels; level++ {
		w, h := MipExtent(size, size, level)
		wantW, wantH := prevW/2, prevH/2
		if wantW < 1 {
			wantW = 1
		}
		if wantH < 1 {
			wantH = 1
		}
		if w != wantW || h != wantH {
			t.Errorf("level %d extent = %dx%d, want %dx%d", level, w, h, wantW, wantH)
		}
		prevW, prevH = w, h
	}
	if prevW != 1 || prevH != 1 {
		t.Errorf("final level extent = %dx%d, want 1x1", prevW, prevH)
	}
}

func TestMipExtentNonSquare(t *testing.T) {
	w, h := MipExtent(640, 480, 3)
	if w != 80 || h != 60 {
		t.Errorf("MipExtent(640, 480, 3) = %dx%d, want 80x60", w, h)
	}
	// Narrow dimensions clamp at one while the other keeps halving.
	w, h = MipExtent(256, 4, 5)
	if w != 8 || h != 1 {
		t.Errorf("MipExtent(256, 4, 5) = %dx%d, want 8x1", w, h)
	}
}
