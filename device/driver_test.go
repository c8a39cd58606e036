package device

import (
	"sort"
	"testing"
)

func TestDriverInfoListSorting(t *testing.T) {
	origlist := DriverInfoList{
		{Order: DetectOrderNormal},
		{Order: DetectOrderFallback},
		{Order: DetectOrderEarly},
		{Order: DetectOrderNormal + 1},
	}

	sorted := append(DriverInfoList(nil), origlist...)
	sort.Stable(sorted)

	expOrder := []int{2, 0, 3, 1}
	for i, exp := range expOrder {
		if sorted[i] != origlist[exp] {
			t.Errorf("expected sorted entry %d to be original entry %d", i, exp)
		}
	}
}
