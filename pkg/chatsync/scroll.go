package chatsync

// bottomThreshold is how close to the bottom (in pixels) the view must be
// for a live push to keep it pinned to the newest message.
const bottomThreshold = 200

// Viewport is the scroll geometry of the message pane at decision time.
type Viewport struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

func (v Viewport) distanceFromBottom() int {
	return v.ScrollHeight - v.ScrollTop - v.ClientHeight
}

// NearBottom reports whether the user is effectively viewing the newest
// message.
func (v Viewport) NearBottom() bool {
	return v.distanceFromBottom() < bottomThreshold
}

// Anchor decides when the view should snap to the newest message: always
// on first load, on live growth while the user is already near the
// bottom, and never when the growth came from history loaded upward.
type Anchor struct {
	loaded    bool
	prevCount int
}

func (a *Anchor) ShouldFollow(reason ChangeReason, count int, v Viewport) bool {
	grew := count > a.prevCount
	first := !a.loaded
	a.loaded = true
	a.prevCount = count

	switch {
	case first:
		return true
	case reason == ChangeHistory:
		return false
	case reason == ChangeLive || reason == ChangeRefresh:
		return grew && v.NearBottom()
	}
	return false
}

// OffsetAfterPrepend gives the scroll position that keeps the visible
// messages stationary after older history was inserted above them: the
// offset grows by exactly the height the new page added.
func OffsetAfterPrepend(prevHeight, newHeight, prevTop int) int {
	return prevTop + (newHeight - prevHeight)
}
