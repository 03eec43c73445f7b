package core

import (
	"fmt"
	"strings"
)

// children returns the sub-conditions of a node, in order.
func children(c Condition) []Condition {
	switch n := c.(type) {
	case *Inverted:
		return []Condition{n.inner}
	case *Constraint:
		if n.shape != CompareToOtherConstraint {
			return nil
		}
		l, _ := n.left.(Condition)
		r, _ := n.right.(Condition)
		return []Condition{l, r}
	default:
		return nil
	}
}

func label(c Condition) string {
	switch n := c.(type) {
	case *Inverted:
		return "NOT"
	case *Constraint:
		if n.shape == CompareToOtherConstraint {
			return n.RequestedOperator()
		}
		return fmt.Sprintf("%s %s %s", n.left, n.RequestedOperator(), n.right)
	default:
		return c.String()
	}
}

// Walk visits root and its descendants depth-first, parents before children,
// using an explicit stack. It stops at the first error fn returns.
func Walk(root Condition, fn func(node Condition, depth int) error) error {
	type item struct {
		node  Condition
		depth int
	}
	stack := []item{{node: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := fn(it.node, it.depth); err != nil {
			return err
		}
		kids := children(it.node)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, item{node: kids[i], depth: it.depth + 1})
		}
	}
	return nil
}

// Leaves returns the compare-to-constant constraints of root, left to right.
func Leaves(root Condition) []*Constraint {
	var out []*Constraint
	_ = Walk(root, func(node Condition, _ int) error {
		if c, ok := node.(*Constraint); ok && c.shape == CompareToConstant {
			out = append(out, c)
		}
		return nil
	})
	return out
}

// Format renders the condition tree, one node per line:
//
//	&
//	├── distance(EARTH from SC) < 1000 km
//	└── NOT
//	    └── phase_angle(EARTH from SC, lit by SUN) > 30 deg
func Format(root Condition) string {
	type item struct {
		node   Condition
		prefix string // indentation inherited from ancestors
		branch string // connector drawn before this node
	}
	var b strings.Builder
	stack := []item{{node: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b.WriteString(it.prefix)
		b.WriteString(it.branch)
		b.WriteString(label(it.node))
		b.WriteByte('\n')

		childPrefix := it.prefix
		switch it.branch {
		case "├── ":
			childPrefix += "│   "
		case "└── ":
			childPrefix += "    "
		}
		kids := children(it.node)
		for i := len(kids) - 1; i >= 0; i-- {
			branch := "├── "
			if i == len(kids)-1 {
				branch = "└── "
			}
			stack = append(stack, item{node: kids[i], prefix: childPrefix, branch: branch})
		}
	}
	return b.String()
}
