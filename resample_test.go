package rasterview

import "testing"

func blockFrom(width, height int, data []float64) *Block {
	b := NewBlock(width, height, false)
	copy(b.Data, data)
	return b
}

func TestReplicateBlockExact(t *testing.T) {
	src := blockFrom(2, 2, []float64{1, 2, 3, 4})
	out := replicateBlock(src, 4, 4, 0, 0, 0, 0)

	want := []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	if out.Width != 4 || out.Height != 4 {
		t.Fatalf("got %dx%d, want 4x4", out.Width, out.Height)
	}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("pixel %d got %f, want %f", i, out.Data[i], v)
		}
	}
}

func TestReplicateBlockExtras(t *testing.T) {
	src := blockFrom(2, 2, []float64{1, 2, 3, 4})
	// one replicated pixel trimmed off the left and top edges
	out := replicateBlock(src, 3, 3, 1, 1, 0, 0)

	want := []float64{
		1, 2, 2,
		3, 4, 4,
		3, 4, 4,
	}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("pixel %d got %f, want %f", i, out.Data[i], v)
		}
	}
}

func TestReplicateBlockEmptySource(t *testing.T) {
	src := NewBlock(0, 0, false)
	out := replicateBlock(src, 3, 2, 0, 0, 0, 0)
	if out.Width != 3 || out.Height != 2 {
		t.Fatalf("got %dx%d, want 3x2", out.Width, out.Height)
	}
	for i, v := range out.Data {
		if v != 0 {
			t.Errorf("pixel %d got %f, want 0", i, v)
		}
	}
}

func TestReplicateBlockKeepsFloatFlag(t *testing.T) {
	src := NewBlock(2, 2, true)
	out := replicateBlock(src, 4, 4, 0, 0, 0, 0)
	if !out.Float {
		t.Error("replicated block lost the float flag")
	}
}
