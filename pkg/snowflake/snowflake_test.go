package snowflake

import "testing"

func TestNodeRange(t *testing.T) {
	if _, err := NewNode(-1); err == nil {
		t.Fatal("expected error for negative node")
	}
	if _, err := NewNode(1024); err == nil {
		t.Fatal("expected error for node above max")
	}
	if _, err := NewNode(0); err != nil {
		t.Fatalf("NewNode(0): %v", err)
	}
}

func TestGenerateStrictlyIncreasing(t *testing.T) {
	node, err := NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	prev := node.Generate()
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}
