package services

import (
	"route-results-service/internal/domain"
	"testing"
)

func TestLinkChainSkipsBreaks(t *testing.T) {
	points := []*domain.Point{
		{ID: 1, Kind: domain.KindHub, Ref: domain.EntityRef{Type: domain.EntityHub, ID: 9}},
		{ID: 2, Kind: domain.KindBreak, NextPointID: 77},
		{ID: 3, Kind: domain.KindDelivery, Ref: domain.EntityRef{Type: domain.EntityOrder, ID: 101}},
		{ID: 4, Kind: domain.KindDelivery, Ref: domain.EntityRef{Type: domain.EntityOrder, ID: 102}, NextPointID: 1},
	}

	LinkChain(renumber(points))

	want := map[int64]int64{1: 3, 2: 0, 3: 4, 4: 0}
	for i, p := range points {
		if p.Number != i+1 {
			t.Fatalf("point %d Number = %d, want %d", p.ID, p.Number, i+1)
		}
		if p.NextPointID != want[p.ID] {
			t.Fatalf("point %d NextPointID = %d, want %d", p.ID, p.NextPointID, want[p.ID])
		}
	}
}

func TestLinkChainEmpty(t *testing.T) {
	if got := LinkChain(nil); len(got) != 0 {
		t.Fatalf("LinkChain(nil) = %v, want empty", got)
	}
}
