// Package flow builds directed call-flow graphs from a snapshot: starting at
// an inbound route, destinations are decoded and resolved breadth-first into
// typed nodes and labeled edges. Two guards keep misconfigured stores from
// hanging the build: nodes are deduplicated by key (a revisited node links
// but never re-expands, which terminates pure cycles) and a depth cap cuts
// pathological daisy-chains.
package flow

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"callflowmap/internal/dest"
	"callflowmap/internal/snapshot"
)

// ErrDIDNotFound reports that no inbound route matches the requested number.
// Distinct from a found-but-undecodable route, which still yields a graph.
var ErrDIDNotFound = errors.New("no inbound route matches the requested number")

// DefaultMaxDepth bounds traversal when the caller does not.
const DefaultMaxDepth = 64

// KindInboundRoute is the kind of the entry node; every other node kind
// comes from the destination decoder.
const KindInboundRoute dest.Kind = "inbound-route"

// Node is one routing step in the graph, deduplicated by Key.
type Node struct {
	Key      string            `json:"key"`
	Kind     dest.Kind         `json:"kind"`
	ID       string            `json:"id"`
	Label    string            `json:"label,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Edge connects two nodes; BranchLabel carries the condition under which the
// call takes this edge ("true", "digit 3", "no-answer", ...).
type Edge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	BranchLabel string `json:"branchLabel,omitempty"`
}

// Graph is one finished call-flow traversal.
type Graph struct {
	entryDID  string
	truncated bool
	nodes     []Node
	nodeIndex map[string]int
	edges     []Edge
	edgeSeen  map[string]bool
}

// workItem is one pending destination to resolve.
type workItem struct {
	parent string // node key of the origin, "" only for the seed
	raw    string // undecoded destination string
	branch string
	depth  int
}

// Build constructs the call-flow graph for one dialed number. maxDepth <= 0
// selects DefaultMaxDepth. A DID with no matching inbound route returns
// ErrDIDNotFound; a matching route always yields at least the entry node and
// one leaf, even when its destination cannot be decoded.
func Build(snap *snapshot.Snapshot, did string, maxDepth int) (*Graph, error) {
	route, ok := snap.RouteForDID(did)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDIDNotFound, did)
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	g := &Graph{
		entryDID:  did,
		nodeIndex: make(map[string]int),
		edgeSeen:  make(map[string]bool),
	}

	label := route.Label
	if label == "" {
		label = did
	}
	entry := Node{
		Key:   nodeKeyFor(KindInboundRoute, did),
		Kind:  KindInboundRoute,
		ID:    did,
		Label: label,
		Metadata: compactMetadata(map[string]string{
			"callerIdFilter": route.CallerIDFilter,
			"destination":    route.Destination,
		}),
	}
	g.addNode(entry)

	queue := []workItem{{parent: entry.Key, raw: route.Destination, depth: 1}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		if it.depth > maxDepth {
			// breadth-first order: everything still queued is at least as deep
			g.truncated = true
			break
		}

		ref := dest.Decode(it.raw)
		key := nodeKeyFor(ref.Kind, ref.TargetID)
		if _, exists := g.nodeIndex[key]; exists {
			// cycle or convergence: link, never re-expand
			g.addEdge(it.parent, key, it.branch)
			continue
		}

		g.addNode(resolveNode(snap, ref, key))
		g.addEdge(it.parent, key, it.branch)
		for _, child := range childDestinations(snap, ref) {
			queue = append(queue, workItem{
				parent: key,
				raw:    child.raw,
				branch: child.branch,
				depth:  it.depth + 1,
			})
		}
	}
	return g, nil
}

func nodeKeyFor(kind dest.Kind, id string) string {
	return string(kind) + ":" + id
}

func (g *Graph) addNode(n Node) {
	g.nodeIndex[n.Key] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

func (g *Graph) addEdge(from, to, branch string) {
	sig := from + "\x00" + to + "\x00" + branch
	if g.edgeSeen[sig] {
		return
	}
	g.edgeSeen[sig] = true
	g.edges = append(g.edges, Edge{From: from, To: to, BranchLabel: branch})
}

// resolveNode looks the decoded reference up in the snapshot and builds its
// node. A reference to an entity missing from the snapshot still gets a node
// of its kind, marked unresolved.
func resolveNode(snap *snapshot.Snapshot, ref dest.Ref, key string) Node {
	n := Node{Key: key, Kind: ref.Kind, ID: ref.TargetID}

	switch ref.Kind {
	case dest.KindRingGroup:
		if g, ok := snap.RingGroupByID(ref.TargetID); ok {
			n.Label = g.Label
			n.Metadata = compactMetadata(map[string]string{
				"strategy":    g.Strategy,
				"ringSeconds": nonZero(g.RingSeconds),
				"members":     strings.Join(g.MemberList, " "),
			})
			return n
		}
	case dest.KindQueue:
		if q, ok := snap.QueueByID(ref.TargetID); ok {
			n.Label = q.Label
			n.Metadata = compactMetadata(map[string]string{
				"strategy":       q.Strategy,
				"timeoutSeconds": nonZero(q.TimeoutSeconds),
				"staticMembers":  nonZero(len(q.StaticMembers)),
				"dynamicMembers": nonZero(len(q.DynamicMembers)),
			})
			return n
		}
	case dest.KindIvr:
		if m, ok := snap.IvrByID(ref.TargetID); ok {
			n.Label = m.Label
			n.Metadata = compactMetadata(map[string]string{
				"announcementId": m.AnnouncementID,
				"options":        nonZero(len(snap.OptionsForIvr(ref.TargetID))),
			})
			return n
		}
	case dest.KindTimeCondition:
		if tc, ok := snap.TimeConditionByID(ref.TargetID); ok {
			n.Label = tc.Label
			n.Metadata = compactMetadata(map[string]string{"timeGroupId": tc.TimeGroupID})
			return n
		}
	case dest.KindAnnouncement:
		if a, ok := snap.AnnouncementByID(ref.TargetID); ok {
			n.Label = a.Label
			n.Metadata = compactMetadata(map[string]string{"recordingId": a.RecordingID})
			return n
		}
	case dest.KindExtension:
		if e, ok := snap.ExtensionByNumber(ref.TargetID); ok {
			n.Label = e.Label
			return n
		}
	case dest.KindVoicemail:
		n.Metadata = compactMetadata(map[string]string{"greeting": ref.SubSelector})
		if e, ok := snap.ExtensionByNumber(ref.TargetID); ok {
			n.Label = e.Label
		}
		return n
	case dest.KindOutboundRoute:
		if r, ok := snap.OutboundRouteByID(ref.TargetID); ok {
			n.Label = r.Label
			n.Metadata = compactMetadata(map[string]string{
				"patterns": strings.Join(r.Patterns, " "),
			})
			return n
		}
	case dest.KindTrunk:
		if tr, ok := snap.TrunkByID(ref.TargetID); ok {
			n.Label = tr.Label
			n.Metadata = compactMetadata(map[string]string{
				"technology": tr.Technology,
				"channelId":  tr.ChannelID,
				"disabled":   boolString(tr.Disabled),
			})
			return n
		}
	case dest.KindHangup:
		n.Label = "Hang up"
		return n
	case dest.KindUnknown:
		n.Label = ref.Raw
		n.Metadata = compactMetadata(map[string]string{"raw": ref.Raw})
		return n
	}

	// decoded fine, but the snapshot has no such entity
	n.Metadata = map[string]string{"unresolved": "true"}
	return n
}

// childDest pairs one outgoing destination with its branch label.
type childDest struct {
	raw    string
	branch string
}

// childDestinations applies the kind-specific branching rule. An empty
// destination yields no edge. Extension, Trunk, Voicemail, Hangup and
// Unknown are terminal.
func childDestinations(snap *snapshot.Snapshot, ref dest.Ref) []childDest {
	var out []childDest
	add := func(raw, branch string) {
		if strings.TrimSpace(raw) != "" {
			out = append(out, childDest{raw: raw, branch: branch})
		}
	}

	switch ref.Kind {
	case dest.KindTimeCondition:
		if tc, ok := snap.TimeConditionByID(ref.TargetID); ok {
			add(tc.DestinationTrue, "true")
			add(tc.DestinationFalse, "false")
		}
	case dest.KindIvr:
		opts := snap.OptionsForIvr(ref.TargetID)
		sort.SliceStable(opts, func(i, j int) bool {
			return selectionRank(opts[i].Selection) < selectionRank(opts[j].Selection)
		})
		for _, o := range opts {
			add(o.Destination, branchForSelection(o.Selection))
		}
	case dest.KindRingGroup:
		if g, ok := snap.RingGroupByID(ref.TargetID); ok {
			add(g.Destination, "no-answer")
		}
	case dest.KindQueue:
		if q, ok := snap.QueueByID(ref.TargetID); ok {
			add(q.Destination, "timeout")
		}
	case dest.KindAnnouncement:
		if a, ok := snap.AnnouncementByID(ref.TargetID); ok {
			add(a.PostDestination, "after-playback")
		}
	case dest.KindOutboundRoute:
		if r, ok := snap.OutboundRouteByID(ref.TargetID); ok {
			for i, trunkID := range r.TrunkSequence {
				add("ext-trunk,"+trunkID+",1", "trunk "+strconv.Itoa(i+1))
			}
		}
	}
	return out
}

// selectionRank fixes the display order of menu options: digits first, then
// star, pound, timeout, invalid.
func selectionRank(sel string) int {
	if len(sel) == 1 && sel[0] >= '0' && sel[0] <= '9' {
		return int(sel[0] - '0')
	}
	switch sel {
	case "*":
		return 10
	case "#":
		return 11
	case "t":
		return 12
	case "i":
		return 13
	}
	return 14
}

func branchForSelection(sel string) string {
	switch sel {
	case "t":
		return "timeout"
	case "i":
		return "invalid"
	}
	return "digit " + sel
}

func compactMetadata(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func nonZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func boolString(b bool) string {
	if !b {
		return ""
	}
	return "true"
}
