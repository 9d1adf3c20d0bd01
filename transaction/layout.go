package transaction

import (
	"fmt"
	"strings"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

type layoutKind uint8

const (
	layoutAny layoutKind = iota
	layoutNone
	layoutStatic
)

/*
Layout is the shape a contract requires of a subtree contributed by someone
else before accepting it as its child.
*/
type Layout struct {
	kind     layoutKind
	children []Layout
}

var (
	// NoChildren accepts exactly one update without nested updates.
	NoChildren = Layout{kind: layoutNone}
	// AnyChildren accepts any subtree.
	AnyChildren = Layout{kind: layoutAny}
)

// StaticChildren requires exactly len(children) children, each matching its layout.
func StaticChildren(children ...Layout) Layout {
	return Layout{kind: layoutStatic, children: children}
}

// Check returns LayoutViolation when the subtree at id doesn't have the shape.
func (l Layout) Check(t *Tree, id NodeID) error {
	if !t.valid(id) {
		return fmt.Errorf("unknown node %d", id)
	}
	children := t.nodes[id].children
	switch l.kind {
	case layoutAny:
		return nil
	case layoutNone:
		if len(children) != 0 {
			return types.Violation(types.ErrLayoutViolation, "update of %s must have no children, got %d", t.nodes[id].update.AccountID(), len(children))
		}
		return nil
	case layoutStatic:
		if len(children) != len(l.children) {
			return types.Violation(types.ErrLayoutViolation, "update of %s must have %d children, got %d", t.nodes[id].update.AccountID(), len(l.children), len(children))
		}
		for i, c := range children {
			if err := l.children[i].Check(t, c); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown layout kind %d", l.kind)
	}
}

func (l Layout) String() string {
	switch l.kind {
	case layoutAny:
		return "AnyChildren"
	case layoutNone:
		return "NoChildren"
	case layoutStatic:
		parts := make([]string, len(l.children))
		for i, c := range l.children {
			parts[i] = c.String()
		}
		return "StaticChildren(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("Layout(%d)", l.kind)
	}
}
