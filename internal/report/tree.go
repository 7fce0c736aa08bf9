package report

import (
	"github.com/xlab/treeprint"

	"github.com/phobologic/cellanalyser/internal/analyser"
)

// Tree renders an expression tree with one line per node.
func Tree(n *analyser.Node) string {
	if n == nil {
		return ""
	}
	root := treeprint.New()
	addNode(root, n)
	return root.String()
}

func addNode(parent treeprint.Tree, n *analyser.Node) {
	if n.Left == nil && n.Right == nil {
		parent.AddNode(label(n))
		return
	}
	branch := parent.AddBranch(label(n))
	for _, child := range []*analyser.Node{n.Left, n.Right} {
		if child != nil {
			addNode(branch, child)
		}
	}
}

func label(n *analyser.Node) string {
	switch n.Kind {
	case analyser.KindCI:
		if n.Variable != nil {
			return "ci " + n.Variable.Name
		}
	case analyser.KindCN:
		return "cn " + n.Value
	}
	return n.Kind.String()
}
