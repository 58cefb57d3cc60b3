package btree

// descentFrame records one step of a root-to-leaf descent: the page
// visited, and the index into the parent page's Children slice that led
// to it (-1 for the root frame, which has no parent). Insert and delete
// both build a descent stack this way so overflow/underflow repair can
// walk back up without re-searching the tree.
type descentFrame struct {
	pageID   uint32
	childIdx int
}

// rebalanceUnderflow repairs an underfull page left behind by a delete,
// walking up the descent stack as far as the damage propagates. stack[0]
// is the root; stack[len(stack)-1] is the leaf the key was removed from.
func (e *Engine) rebalanceUnderflow(stack []descentFrame) error {
	for i := len(stack) - 1; i > 0; i-- {
		frame := stack[i]

		page, err := e.store.take(frame.pageID)
		if err != nil {
			return err
		}
		if !page.Underflowing() {
			e.store.deposit(page)
			return nil
		}

		parent, err := e.store.take(stack[i-1].pageID)
		if err != nil {
			return err
		}

		var leftSibling, rightSibling *Page
		if frame.childIdx > 0 {
			leftSibling, err = e.store.take(parent.Children[frame.childIdx-1])
			if err != nil {
				return err
			}
		}
		if frame.childIdx < len(parent.Children)-1 {
			rightSibling, err = e.store.take(parent.Children[frame.childIdx+1])
			if err != nil {
				return err
			}
		}
		if leftSibling == nil && rightSibling == nil {
			return errInvariant("underflowing non-root page has no sibling")
		}

		// Prefer the sibling with more keys to borrow from or merge with;
		// ties go to the right sibling.
		useRight := rightSibling != nil && (leftSibling == nil || rightSibling.NumKeys() >= leftSibling.NumKeys())

		var left, right *Page
		var leftIdx int
		if useRight {
			left, right = page, rightSibling
			leftIdx = frame.childIdx
			if leftSibling != nil {
				e.store.deposit(leftSibling)
			}
		} else {
			left, right = leftSibling, page
			leftIdx = frame.childIdx - 1
			if rightSibling != nil {
				e.store.deposit(rightSibling)
			}
		}

		if left.NumKeys() > MinKeys || right.NumKeys() > MinKeys {
			borrow(parent, left, right, leftIdx)
			e.store.deposit(left)
			e.store.deposit(right)
			e.store.deposit(parent)
			return nil
		}

		merge(left, right, parent, leftIdx)
		e.store.deposit(left)
		e.store.deposit(parent)
		e.store.discard(right.ID)

		// The merge may have left parent itself underfull; the next loop
		// iteration (i-1) checks exactly that.
	}
	return nil
}

// borrow moves one key across the parent separator to relieve an
// underfull page, pulling from whichever of left/right currently holds
// more keys.
func borrow(parent, left, right *Page, leftIdx int) {
	if left.IsLeaf {
		borrowLeaf(parent, left, right, leftIdx)
	} else {
		borrowInternal(parent, left, right, leftIdx)
	}
}

// borrowLeaf rotates a key/value pair between leaf siblings. The
// separator in the parent is synthetic (right.Keys[0]-1, matching the
// convention split.go establishes), so it is recomputed after the move
// rather than rotated through the parent directly.
func borrowLeaf(parent, left, right *Page, leftIdx int) {
	if right.NumKeys() > left.NumKeys() {
		k, v := right.Keys[0], right.Vals[0]
		right.Keys = right.Keys[1:]
		right.Vals = right.Vals[1:]
		left.Keys = append(left.Keys, k)
		left.Vals = append(left.Vals, v)
	} else {
		n := len(left.Keys) - 1
		k, v := left.Keys[n], left.Vals[n]
		left.Keys = left.Keys[:n]
		left.Vals = left.Vals[:n]
		right.Keys = insertUint16At(right.Keys, 0, k)
		right.Vals = insertUint16At(right.Vals, 0, v)
	}
	parent.Keys[leftIdx] = right.Keys[0] - 1
}

// borrowInternal rotates a key through the parent separator, the
// classical scheme: the separator descends into the receiving side and
// the sibling's outermost key rises to take its place in the parent.
func borrowInternal(parent, left, right *Page, leftIdx int) {
	if right.NumKeys() > left.NumKeys() {
		left.Keys = append(left.Keys, parent.Keys[leftIdx])
		parent.Keys[leftIdx] = right.Keys[0]
		right.Keys = right.Keys[1:]

		left.Children = append(left.Children, right.Children[0])
		right.Children = right.Children[1:]
	} else {
		n := len(left.Keys) - 1
		cn := len(left.Children) - 1

		right.Keys = insertUint16At(right.Keys, 0, parent.Keys[leftIdx])
		parent.Keys[leftIdx] = left.Keys[n]
		left.Keys = left.Keys[:n]

		right.Children = insertUint32At(right.Children, 0, left.Children[cn])
		left.Children = left.Children[:cn]
	}
}

// merge absorbs right into left and removes the separator (and right's
// child pointer) from parent. For an internal merge the separator is a
// real key and is pulled down between the two halves' keys; for a leaf
// merge there is nothing to pull down, since the leaf separator was
// always synthetic.
func merge(left, right, parent *Page, leftIdx int) {
	if left.IsLeaf {
		left.Keys = append(left.Keys, right.Keys...)
		left.Vals = append(left.Vals, right.Vals...)
	} else {
		left.Keys = append(left.Keys, parent.Keys[leftIdx])
		left.Keys = append(left.Keys, right.Keys...)
		left.Children = append(left.Children, right.Children...)
	}
	parent.Keys = removeUint16At(parent.Keys, leftIdx)
	parent.Children = removeUint32At(parent.Children, leftIdx+1)
}
