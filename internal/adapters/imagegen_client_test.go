package adapters

import "testing"

func TestClosestPresetAspect(t *testing.T) {
	cases := map[[2]int]string{
		{1920, 1080}: "16:9",
		{1080, 1920}: "9:16",
		{1000, 1000}: "1:1",
		{800, 600}:   "4:3",
		{600, 800}:   "3:4",
	}
	for dims, want := range cases {
		if got := ClosestPresetAspect(dims[0], dims[1]); got != want {
			t.Errorf("ClosestPresetAspect(%d,%d) = %q, want %q", dims[0], dims[1], got, want)
		}
	}
}
