package store

import (
	"testing"
	"time"

	"github.com/albapepper/chron/internal/entity"
)

func mkObs(sec int64, hash byte) entity.Observation {
	var h entity.Hash
	h[0] = hash
	return entity.Observation{
		Kind:      entity.KindPlayer,
		EntityID:  "p1",
		Timestamp: time.Unix(sec, 0).UTC(),
		Hash:      h,
	}
}

// S1: two identical polls collapse to a single open version.
func TestFoldObservationsIdenticalPolls(t *testing.T) {
	versions := FoldObservations([]entity.Observation{mkObs(100, 0xAA), mkObs(200, 0xAA)})

	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	v := versions[0]
	if !v.ValidFrom.Equal(time.Unix(100, 0).UTC()) || !v.Open() {
		t.Fatalf("unexpected version: %+v", v)
	}
}

// S2: change and back produces three versions with the expected intervals.
func TestFoldObservationsChangeAndBack(t *testing.T) {
	versions := FoldObservations([]entity.Observation{
		mkObs(100, 0x01),
		mkObs(200, 0x02),
		mkObs(300, 0x01),
	})

	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}

	wantFrom := []int64{100, 200, 300}
	wantTo := []int64{200, 300, 0}
	for i, v := range versions {
		if v.ValidFrom.Unix() != wantFrom[i] {
			t.Fatalf("version %d valid_from = %v, want %d", i, v.ValidFrom.Unix(), wantFrom[i])
		}
		if wantTo[i] == 0 {
			if !v.Open() {
				t.Fatalf("version %d should be open", i)
			}
		} else if v.ValidTo.Unix() != wantTo[i] {
			t.Fatalf("version %d valid_to = %v, want %d", i, v.ValidTo.Unix(), wantTo[i])
		}
	}

	if versions[0].Hash != versions[2].Hash {
		t.Fatalf("first and third version should share a hash (S2 change-and-back)")
	}
}

func TestFoldObservationsTieBreaksOnHash(t *testing.T) {
	same := time.Unix(500, 0).UTC()
	obsA := entity.Observation{Kind: entity.KindPlayer, EntityID: "p1", Timestamp: same, Hash: entity.Hash{0x01}}
	obsB := entity.Observation{Kind: entity.KindPlayer, EntityID: "p1", Timestamp: same, Hash: entity.Hash{0x02}}

	// Feed them in reverse lexicographic order; fold must still resolve the
	// tie deterministically by ascending hash bytes, not insertion order.
	versions := FoldObservations([]entity.Observation{obsB, obsA})
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].Hash != obsA.Hash {
		t.Fatalf("expected tie-break to order %x before %x", obsA.Hash, obsB.Hash)
	}
}
