package chatsync

import "testing"

func atBottom() Viewport {
	return Viewport{ScrollTop: 900, ScrollHeight: 1500, ClientHeight: 600}
}

func scrolledUp() Viewport {
	return Viewport{ScrollTop: 100, ScrollHeight: 1500, ClientHeight: 600}
}

func TestAnchorFollowsOnFirstLoad(t *testing.T) {
	a := &Anchor{}
	if !a.ShouldFollow(ChangeInitial, 15, scrolledUp()) {
		t.Fatal("first load must scroll to newest regardless of viewport")
	}
}

func TestAnchorFollowsLivePushNearBottom(t *testing.T) {
	a := &Anchor{}
	a.ShouldFollow(ChangeInitial, 15, atBottom())

	if !a.ShouldFollow(ChangeLive, 16, atBottom()) {
		t.Fatal("live growth at the bottom must follow")
	}

	// Within the threshold still counts as at the bottom.
	near := Viewport{ScrollTop: 701, ScrollHeight: 1500, ClientHeight: 600}
	if !a.ShouldFollow(ChangeLive, 17, near) {
		t.Fatal("live growth within 200px of the bottom must follow")
	}
}

func TestAnchorIgnoresLivePushWhileScrolledUp(t *testing.T) {
	a := &Anchor{}
	a.ShouldFollow(ChangeInitial, 15, atBottom())

	if a.ShouldFollow(ChangeLive, 16, scrolledUp()) {
		t.Fatal("live growth while reading history must not yank the view")
	}

	exactly := Viewport{ScrollTop: 700, ScrollHeight: 1500, ClientHeight: 600}
	if a.ShouldFollow(ChangeLive, 17, exactly) {
		t.Fatal("exactly 200px from the bottom is outside the threshold")
	}
}

func TestAnchorNeverFollowsHistoryLoad(t *testing.T) {
	a := &Anchor{}
	a.ShouldFollow(ChangeInitial, 15, atBottom())

	if a.ShouldFollow(ChangeHistory, 30, atBottom()) {
		t.Fatal("history loaded upward must never scroll to newest")
	}
}

func TestAnchorIgnoresRefreshWithoutGrowth(t *testing.T) {
	a := &Anchor{}
	a.ShouldFollow(ChangeInitial, 15, atBottom())

	if a.ShouldFollow(ChangeRefresh, 15, atBottom()) {
		t.Fatal("a refetch with unchanged content must not move the view")
	}
	if !a.ShouldFollow(ChangeRefresh, 16, atBottom()) {
		t.Fatal("poll-discovered growth at the bottom must follow")
	}
}

func TestOffsetAfterPrepend(t *testing.T) {
	// Load-more triggered at the top: the added height becomes the new
	// offset, keeping the previously visible message stationary.
	if got := OffsetAfterPrepend(1500, 2400, 0); got != 900 {
		t.Fatalf("offset = %d, want 900", got)
	}
	if got := OffsetAfterPrepend(1500, 1500, 120); got != 120 {
		t.Fatalf("offset with no growth = %d, want 120", got)
	}
}
