package ordering

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func items(container string, ids ...string) []Item {
	out := make([]Item, len(ids))
	for i, id := range ids {
		out[i] = Item{ID: id, ContainerID: container, Order: i}
	}
	return out
}

// apply returns the siblings in the rank order produced by writes.
func apply(siblings []Item, writes []Write) []string {
	order := make(map[string]int, len(siblings))
	for _, s := range siblings {
		order[s.ID] = s.Order
	}
	for _, w := range writes {
		order[w.ID] = w.Order
	}
	out := make([]string, len(siblings))
	for id, o := range order {
		out[o] = id
	}
	return out
}

func TestReorder_ColumnScenario(t *testing.T) {
	cols := items("board", "A", "B", "C")

	writes, err := Reorder(cols, 2, 0)
	if err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}

	want := []Write{{ID: "C", Order: 0}, {ID: "A", Order: 1}, {ID: "B", Order: 2}}
	if !reflect.DeepEqual(writes, want) {
		t.Errorf("expected %v, got %v", want, writes)
	}
}

func TestReorder_AllPermutationsAreDense(t *testing.T) {
	for n := 2; n <= 5; n++ {
		for from := 0; from < n; from++ {
			for to := 0; to < n; to++ {
				t.Run(fmt.Sprintf("n%d_%d_to_%d", n, from, to), func(t *testing.T) {
					ids := make([]string, n)
					for i := range ids {
						ids[i] = fmt.Sprintf("x%d", i)
					}
					siblings := items("c", ids...)

					writes, err := Reorder(siblings, from, to)
					if err != nil {
						t.Fatalf("Reorder failed: %v", err)
					}
					if len(writes) != n {
						t.Fatalf("expected %d writes, got %d", n, len(writes))
					}
					seen := make(map[int]bool, n)
					for i, w := range writes {
						if w.Order != i {
							t.Errorf("write %d has order %d", i, w.Order)
						}
						seen[w.Order] = true
					}
					if len(seen) != n {
						t.Errorf("orders are not a permutation: %v", writes)
					}
					if writes[to].ID != ids[from] {
						t.Errorf("expected %s at %d, got %s", ids[from], to, writes[to].ID)
					}
				})
			}
		}
	}
}

func TestReorder_SameIndexIsIdempotent(t *testing.T) {
	siblings := items("c", "a", "b", "c")

	first, err := Reorder(siblings, 1, 1)
	if err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	if got := Minimize(siblings, first); len(got) != 0 {
		t.Errorf("expected no effective writes, got %v", got)
	}
}

func TestReorder_RepairsCorruptRanks(t *testing.T) {
	siblings := []Item{{ID: "a", Order: 3}, {ID: "b", Order: 3}, {ID: "c", Order: 9}}

	writes, err := Reorder(siblings, 0, 0)
	if err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	if got := apply(siblings, writes); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("expected dense a,b,c, got %v", got)
	}
	if got := Minimize(siblings, writes); len(got) != 3 {
		t.Errorf("expected every corrupt rank rewritten, got %v", got)
	}
}

func TestReorder_ShortListsNeedNoWrites(t *testing.T) {
	for _, siblings := range [][]Item{nil, items("c", "only")} {
		writes, err := Reorder(siblings, 0, 0)
		if err != nil {
			t.Fatalf("Reorder failed: %v", err)
		}
		if len(writes) != 0 {
			t.Errorf("expected no writes, got %v", writes)
		}
	}
}

func TestReorder_IndexOutOfRange(t *testing.T) {
	siblings := items("c", "a", "b")
	for _, tc := range [][2]int{{-1, 0}, {2, 0}, {0, 2}, {0, -1}} {
		if _, err := Reorder(siblings, tc[0], tc[1]); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Reorder(%d, %d): expected ErrIndexOutOfRange, got %v", tc[0], tc[1], err)
		}
	}
}

func TestPlan_CrossColumnMove(t *testing.T) {
	x := items("X", "p", "q")
	y := items("Y", "r")

	writes, err := Plan(Drop{
		ItemID:      "p",
		Source:      Location{ContainerID: "X", Index: 0},
		Destination: &Location{ContainerID: "Y", Index: 1},
	}, x, y)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := []Write{{ID: "p", Order: 1, ContainerID: "Y"}}
	if !reflect.DeepEqual(writes, want) {
		t.Errorf("expected %v, got %v", want, writes)
	}

	// q keeps its stale rank until X is reordered.
	remaining := x[1:]
	dense, err := Reorder(remaining, 0, 0)
	if err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	if !reflect.DeepEqual(dense, []Write(nil)) {
		t.Errorf("single remaining card needs no writes, got %v", dense)
	}
}

func TestPlan_CrossColumnIntoEmptyColumn(t *testing.T) {
	writes, err := Plan(Drop{
		Source:      Location{ContainerID: "X", Index: 1},
		Destination: &Location{ContainerID: "Z", Index: 0},
	}, items("X", "p", "q"), nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(writes) != 1 || writes[0].ID != "q" || writes[0].Order != 0 || writes[0].ContainerID != "Z" {
		t.Errorf("unexpected writes %v", writes)
	}
}

func TestPlan_CrossColumnIndexPastEnd(t *testing.T) {
	_, err := Plan(Drop{
		Source:      Location{ContainerID: "X", Index: 0},
		Destination: &Location{ContainerID: "Y", Index: 2},
	}, items("X", "p"), items("Y", "r"))
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestPlan_SameContainerDelegatesToReorder(t *testing.T) {
	x := items("X", "a", "b", "c")

	writes, err := Plan(Drop{
		ItemID:      "a",
		Source:      Location{ContainerID: "X", Index: 0},
		Destination: &Location{ContainerID: "X", Index: 2},
	}, x, nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if got := apply(x, writes); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Errorf("expected b,c,a, got %v", got)
	}
}

func TestPlan_CancelledDragIsNoop(t *testing.T) {
	writes, err := Plan(Drop{ItemID: "a", Source: Location{ContainerID: "X", Index: 99}}, nil, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if writes != nil {
		t.Errorf("expected no writes, got %v", writes)
	}
}

func TestPlan_StaleDrop(t *testing.T) {
	_, err := Plan(Drop{
		ItemID:      "b",
		Source:      Location{ContainerID: "X", Index: 0},
		Destination: &Location{ContainerID: "X", Index: 1},
	}, items("X", "a", "b"), nil)
	if !errors.Is(err, ErrStaleDrop) {
		t.Errorf("expected ErrStaleDrop, got %v", err)
	}
}

func TestMinimize(t *testing.T) {
	current := []Item{
		{ID: "a", ContainerID: "X", Order: 0},
		{ID: "b", ContainerID: "X", Order: 1},
	}
	writes := []Write{
		{ID: "a", Order: 0},
		{ID: "b", Order: 1, ContainerID: "Y"},
		{ID: "c", Order: 2},
	}

	got := Minimize(current, writes)
	want := []Write{{ID: "b", Order: 1, ContainerID: "Y"}, {ID: "c", Order: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPlan_CrossColumnIntoSparseColumnRenumbers(t *testing.T) {
	x := items("X", "p")
	y := []Item{{ID: "r", ContainerID: "Y", Order: 0}, {ID: "s", ContainerID: "Y", Order: 2}, {ID: "t", ContainerID: "Y", Order: 2}}

	writes, err := Plan(Drop{
		ItemID:      "p",
		Source:      Location{ContainerID: "X", Index: 0},
		Destination: &Location{ContainerID: "Y", Index: 2},
	}, x, y)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := []Write{
		{ID: "r", Order: 0},
		{ID: "s", Order: 1},
		{ID: "p", Order: 2, ContainerID: "Y"},
		{ID: "t", Order: 3},
	}
	if !reflect.DeepEqual(writes, want) {
		t.Errorf("expected %v, got %v", want, writes)
	}

	current := append(append([]Item{}, x...), y...)
	got := Minimize(current, writes)
	if len(got) != 3 || got[0].ID != "s" {
		t.Errorf("expected r to be skipped, got %v", got)
	}
}

func TestInsert_IndexOutOfRange(t *testing.T) {
	if _, err := Insert(Item{ID: "p"}, "Y", items("Y", "r"), 2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestDense(t *testing.T) {
	if !Dense(nil) || !Dense(items("c", "a", "b")) {
		t.Error("expected dense lists")
	}
	if Dense([]Item{{ID: "a", Order: 1}}) {
		t.Error("expected gap to be reported")
	}
}
