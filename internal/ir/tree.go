package ir

// Node pairs a component with its position in the tree.
type Node struct {
	Component Component
	// Code is the qualified code.
	Code string
	// Parent is the parent's qualified code; empty for the root.
	Parent string
	// Ancestors lists qualified codes from the root down to the parent.
	Ancestors []string
}

// Walk visits every component in document order (parent before children).
// Returning false from fn skips the component's subtree.
func Walk(root Component, fn func(Node) bool) {
	walk(root, "", nil, fn)
}

func walk(c Component, parent string, ancestors []string, fn func(Node) bool) {
	code := c.QualifiedCode(parent)
	if !fn(Node{Component: c, Code: code, Parent: parent, Ancestors: ancestors}) {
		return
	}
	childAncestors := make([]string, len(ancestors), len(ancestors)+1)
	copy(childAncestors, ancestors)
	childAncestors = append(childAncestors, code)
	for _, child := range c.children {
		walk(child, code, childAncestors, fn)
	}
}

// Flatten returns every node in document order.
func Flatten(root Component) []Node {
	var nodes []Node
	Walk(root, func(n Node) bool {
		nodes = append(nodes, n)
		return true
	})
	return nodes
}

// Find returns the node with the given qualified code.
func Find(root Component, code string) (Node, bool) {
	var found Node
	var ok bool
	Walk(root, func(n Node) bool {
		if ok {
			return false
		}
		if n.Code == code {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}

// Rewrite rebuilds the tree bottom-up. fn receives each component after its
// children have been rewritten, together with its qualified code.
func Rewrite(root Component, fn func(code string, c Component) Component) Component {
	return rewrite(root, "", fn)
}

func rewrite(c Component, parent string, fn func(string, Component) Component) Component {
	code := c.QualifiedCode(parent)
	if len(c.children) > 0 {
		children := make([]Component, len(c.children))
		for i, child := range c.children {
			children[i] = rewrite(child, code, fn)
		}
		c = c.Duplicate(WithChildren(children))
	}
	return fn(code, c)
}

// TreeHasErrors reports whether any component or instruction in the tree
// carries an error.
func TreeHasErrors(root Component) bool {
	found := false
	Walk(root, func(n Node) bool {
		if found {
			return false
		}
		if n.Component.HasErrors() {
			found = true
			return false
		}
		for _, ins := range n.Component.Instructions() {
			if HasErrors(ins) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// EndGroup returns the END group among the survey's children.
func EndGroup(survey Component) (Component, bool) {
	for _, child := range survey.children {
		if child.IsEndGroup() {
			return child, true
		}
	}
	return Component{}, false
}
