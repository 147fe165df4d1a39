package flow

// The export contract consumed by the rendering collaborator: read-only
// access to the finished graph. Layout, color and file emission are entirely
// the renderer's business.

// EntryDID returns the dialed number the graph was built for.
func (g *Graph) EntryDID() string {
	return g.entryDID
}

// Truncated reports whether the depth cap cut the traversal short.
func (g *Graph) Truncated() bool {
	return g.truncated
}

// Nodes returns the graph's nodes. The slice is a copy; mutating it does not
// affect the graph.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the graph's edges as a copy.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Document is the wire form of a finished graph.
type Document struct {
	EntryDID  string `json:"entryDid"`
	Truncated bool   `json:"truncated,omitempty"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
}

// Export renders the graph into its wire form.
func (g *Graph) Export() Document {
	return Document{
		EntryDID:  g.entryDID,
		Truncated: g.truncated,
		Nodes:     g.Nodes(),
		Edges:     g.Edges(),
	}
}
