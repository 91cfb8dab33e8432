package math

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi int
		want      int
	}{
		{"inside", 5, 1, 10, 5},
		{"below", -3, 1, 10, 1},
		{"above", 42, 1, 10, 10},
		{"at low edge", 1, 1, 10, 1},
		{"at high edge", 10, 1, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
				t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}

	if got := Clamp(float32(0.5), 0.0, 1.0); got != 0.5 {
		t.Errorf("Clamp(0.5, 0, 1) = %v, want 0.5", got)
	}
}

func TestMat4MulIdentity(t *testing.T) {
	id := NewMat4Identity()
	m := NewMat4Translation(NewVec3(1, 2, 3))
	got := m.Mul(id)
	if got != m {
		t.Errorf("m * I = %v, want %v", got, m)
	}
	got = id.Mul(m)
	if got != m {
		t.Errorf("I * m = %v, want %v", got, m)
	}
}

func TestLookAtOrigin(t *testing.T) {
	// A camera at the origin looking down -Z with +Y up is the identity view.
	view := NewMat4LookAt(NewVec3(0, 0, 0), NewVec3(0, 0, -1), NewVec3(0, 1, 0))
	id := NewMat4Identity()
	for i := range view.Data {
		if absf(view.Data[i]-id.Data[i]) > Float32Eps {
			t.Fatalf("view[%d] = %v, want %v", i, view.Data[i], id.Data[i])
		}
	}
}

func TestPerspectiveFlipsY(t *testing.T) {
	proj := NewMat4Perspective(DegToRad(60), 16.0/9.0, 0.1, 100.0)
	if proj.Data[5] >= 0 {
		t.Errorf("proj[5] = %v, want negative for Vulkan clip space", proj.Data[5])
	}
	if proj.Data[11] != -1.0 {
		t.Errorf("proj[11] = %v, want -1", proj.Data[11])
	}
}

func TestWithoutTranslation(t *testing.T) {
	m := NewMat4Translation(NewVec3(4, 5, 6))
	got := m.WithoutTranslation()
	if got.Data[12] != 0 || got.Data[13] != 0 || got.Data[14] != 0 {
		t.Errorf("translation not cleared: %v", got.Data[12:15])
	}
	if got.Data[0] != 1 || got.Data[15] != 1 {
		t.Errorf("rotation block altered")
	}
}

func TestVec3Cross(t *testing.T) {
	x := NewVec3(1, 0, 0)
	y := NewVec3(0, 1, 0)
	z := x.Cross(y)
	if !z.Compare(NewVec3(0, 0, 1), Float32Eps) {
		t.Errorf("x cross y = %v, want (0,0,1)", z)
	}
}
