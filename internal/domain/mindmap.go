package domain

import (
	"fmt"
	"strings"
)

// MindMapBranch is one node of the tree the completion service returns.
type MindMapBranch struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	KeyPoints   []string        `json:"key_points"`
	Level       int             `json:"level"`
	Children    []MindMapBranch `json:"children"`
}

// MindMapTree is the raw structure produced by the completion service.
type MindMapTree struct {
	CentralTopic string          `json:"central_topic"`
	Branches     []MindMapBranch `json:"branches"`
}

// MindMapNode is one flattened node of the final mind map.
type MindMapNode struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Level       int      `json:"level"`
	ParentID    string   `json:"parent_id,omitempty"`
	Description string   `json:"description"`
	KeyPoints   []string `json:"key_points,omitempty"`
}

// MindMapRelation is a directed edge between two nodes.
type MindMapRelation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// MindMap is the assembled overview: flattened nodes plus a box-and-arrow
// diagram description.
type MindMap struct {
	Title          string            `json:"title"`
	CentralTopic   string            `json:"central_topic"`
	Nodes          []MindMapNode     `json:"nodes"`
	Relationships  []MindMapRelation `json:"relationships"`
	MermaidDiagram string            `json:"mermaid_diagram"`
	TotalNodes     int               `json:"total_nodes"`
	SourcesUsed    int               `json:"sources_used"`
}

// centralNodeID is the root of every assembled mind map.
const centralNodeID = "0"

// AssembleMindMap flattens a tree into nodes rooted at a synthetic central
// node, builds the "contains" relationship list, and renders the Mermaid
// diagram text.
func AssembleMindMap(tree MindMapTree, sourcesUsed int) MindMap {
	nodes, rels := flattenBranches(tree.Branches, "")

	centralTopic := tree.CentralTopic
	if centralTopic == "" {
		centralTopic = "Document Overview"
	}
	central := MindMapNode{
		ID:          centralNodeID,
		Label:       centralTopic,
		Level:       0,
		Description: "Central concept",
	}

	rootRels := make([]MindMapRelation, 0, len(tree.Branches))
	for _, b := range tree.Branches {
		rootRels = append(rootRels, MindMapRelation{From: centralNodeID, To: b.ID, Type: "contains"})
	}
	rels = append(rootRels, rels...)

	all := append([]MindMapNode{central}, nodes...)
	return MindMap{
		Title:          "Mind Map: Document Overview",
		CentralTopic:   centralTopic,
		Nodes:          all,
		Relationships:  rels,
		MermaidDiagram: mermaidDiagram(all, rels),
		TotalNodes:     len(all),
		SourcesUsed:    sourcesUsed,
	}
}

func flattenBranches(branches []MindMapBranch, parentID string) ([]MindMapNode, []MindMapRelation) {
	var nodes []MindMapNode
	var rels []MindMapRelation
	for _, b := range branches {
		level := b.Level
		if level == 0 {
			level = 1
		}
		nodes = append(nodes, MindMapNode{
			ID:          b.ID,
			Label:       b.Label,
			Level:       level,
			ParentID:    parentID,
			Description: b.Description,
			KeyPoints:   b.KeyPoints,
		})
		if parentID != "" {
			rels = append(rels, MindMapRelation{From: parentID, To: b.ID, Type: "contains"})
		}
		childNodes, childRels := flattenBranches(b.Children, b.ID)
		nodes = append(nodes, childNodes...)
		rels = append(rels, childRels...)
	}
	return nodes, rels
}

// mermaidDiagram renders nodes and relationships as Mermaid graph syntax.
func mermaidDiagram(nodes []MindMapNode, rels []MindMapRelation) string {
	lines := make([]string, 0, 1+len(nodes)+len(rels))
	lines = append(lines, "graph TD")
	for _, n := range nodes {
		label := strings.ReplaceAll(n.Label, `"`, "'")
		lines = append(lines, fmt.Sprintf(`    %s["%s"]`, n.ID, label))
	}
	for _, r := range rels {
		lines = append(lines, fmt.Sprintf("    %s --> %s", r.From, r.To))
	}
	return strings.Join(lines, "\n")
}
