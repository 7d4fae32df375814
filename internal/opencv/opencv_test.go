package opencv

import "testing"

func TestInit_Once(t *testing.T) {
	first := Init()
	second := Init()

	if first != second {
		t.Errorf("Init returned different info: %+v vs %+v", first, second)
	}
	if first.OpenCV == "" {
		t.Error("OpenCV version should not be empty")
	}
}
