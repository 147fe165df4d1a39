package flow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callflowmap/internal/dest"
	"callflowmap/internal/snapshot"
)

func edgeSet(g *Graph) map[string]bool {
	set := map[string]bool{}
	for _, e := range g.Edges() {
		set[fmt.Sprintf("%s -> %s [%s]", e.From, e.To, e.BranchLabel)] = true
	}
	return set
}

func nodeKeys(g *Graph) map[string]Node {
	m := map[string]Node{}
	for _, n := range g.Nodes() {
		m[n.Key] = n
	}
	return m
}

func TestBuildIvrScenario(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "2485551234", Destination: "ivr-7,s,"}},
		IvrMenus:      []snapshot.IvrMenu{{IvrID: "7", Label: "Day menu"}},
		IvrOptions:    []snapshot.IvrOption{{IvrID: "7", Selection: "1", Destination: "ext-local,4220,1"}},
		Extensions:    []snapshot.Extension{{Number: "4220", Label: "Front Desk"}},
	}

	g, err := Build(snap, "2485551234", 0)
	require.NoError(t, err)

	nodes := nodeKeys(g)
	require.Len(t, nodes, 3)
	assert.Contains(t, nodes, "inbound-route:2485551234")
	assert.Contains(t, nodes, "ivr:7")
	assert.Contains(t, nodes, "extension:4220")
	assert.Equal(t, "Front Desk", nodes["extension:4220"].Label)

	edges := edgeSet(g)
	assert.Contains(t, edges, "inbound-route:2485551234 -> ivr:7 []")
	assert.Contains(t, edges, "ivr:7 -> extension:4220 [digit 1]")
	assert.Len(t, edges, 2)
	assert.False(t, g.Truncated())
}

func TestBuildTimeConditionBranches(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "timeconditions,3,1"}},
		TimeConditions: []snapshot.TimeCondition{{
			ID:               "3",
			DestinationTrue:  "ext-group,10,",
			DestinationFalse: "app-blackhole,hangup,1",
		}},
		RingGroups: []snapshot.RingGroup{{GroupID: "10", Label: "Day team"}},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err)

	edges := edgeSet(g)
	assert.Contains(t, edges, "time-condition:3 -> ring-group:10 [true]")
	assert.Contains(t, edges, "time-condition:3 -> hangup:hangup [false]")

	outgoing := 0
	for _, e := range g.Edges() {
		if e.From == "time-condition:3" {
			outgoing++
		}
	}
	assert.Equal(t, 2, outgoing, "exactly two outgoing edges")
}

func TestBuildCycleTerminates(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "ext-group,10,1"}},
		RingGroups: []snapshot.RingGroup{
			{GroupID: "10", Destination: "ext-group,20,1"},
			{GroupID: "20", Destination: "ext-group,10,1"},
		},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err)

	nodes := nodeKeys(g)
	require.Len(t, nodes, 3, "entry plus the two mutually-referencing groups")
	assert.Contains(t, nodes, "ring-group:10")
	assert.Contains(t, nodes, "ring-group:20")

	edges := edgeSet(g)
	assert.Contains(t, edges, "ring-group:10 -> ring-group:20 [no-answer]")
	assert.Contains(t, edges, "ring-group:20 -> ring-group:10 [no-answer]")
	assert.Len(t, edges, 3)
	assert.False(t, g.Truncated(), "dedup handles pure cycles without the depth cap")
}

func TestBuildDepthTruncation(t *testing.T) {
	const chainLen = 6
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "app-announcement-1,s,1"}},
	}
	for i := 1; i <= chainLen; i++ {
		a := snapshot.Announcement{ID: fmt.Sprintf("%d", i)}
		if i < chainLen {
			a.PostDestination = fmt.Sprintf("app-announcement-%d,s,1", i+1)
		}
		snap.Announcements = append(snap.Announcements, a)
	}

	g, err := Build(snap, "100", 3)
	require.NoError(t, err)
	assert.True(t, g.Truncated())
	assert.Less(t, len(g.Nodes()), chainLen)

	// a generous cap walks the whole chain
	g, err = Build(snap, "100", 0)
	require.NoError(t, err)
	assert.False(t, g.Truncated())
	assert.Len(t, g.Nodes(), chainLen+1)
}

func TestBuildDIDNotFound(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "ext-local,4220,1"}},
	}
	_, err := Build(snap, "999", 0)
	assert.ErrorIs(t, err, ErrDIDNotFound)
}

func TestBuildUndecodableDestination(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "call Bob on his cell"}},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err, "found-but-undecodable is not an error")

	nodes := g.Nodes()
	require.Len(t, nodes, 2, "entry plus the unknown leaf")
	assert.Equal(t, dest.KindUnknown, nodes[1].Kind)
	assert.Equal(t, "call Bob on his cell", nodes[1].Metadata["raw"])
	assert.Len(t, g.Edges(), 1)
}

func TestBuildQueueAndVoicemail(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "ext-queues,700,1"}},
		Queues: []snapshot.Queue{{
			QueueID:     "700",
			Label:       "Support",
			Strategy:    "rrmemory",
			Destination: "ext-local,vmu4220,1",
		}},
		Extensions: []snapshot.Extension{{Number: "4220", Label: "Front Desk"}},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err)

	edges := edgeSet(g)
	assert.Contains(t, edges, "queue:700 -> voicemail:4220 [timeout]")

	nodes := nodeKeys(g)
	vm := nodes["voicemail:4220"]
	assert.Equal(t, "u", vm.Metadata["greeting"])
	assert.Equal(t, "Front Desk", vm.Label)
}

func TestBuildRingGroupWithoutFallbackIsTerminal(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "ext-group,600,1"}},
		RingGroups:    []snapshot.RingGroup{{GroupID: "600", Label: "Sales"}},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err)
	assert.Len(t, g.Nodes(), 2)
	assert.Len(t, g.Edges(), 1, "no fallback destination, no synthetic edge")
}

func TestBuildOutboundRouteExpandsTrunkSequence(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "outrt-1,,"}},
		OutboundRoutes: []snapshot.OutboundRoute{{
			ID: "1", Label: "Local", TrunkSequence: []string{"1", "2"},
		}},
		Trunks: []snapshot.Trunk{
			{ID: "1", Label: "Carrier A", Technology: "sip"},
			{ID: "2", Label: "Carrier B", Technology: "iax2", Disabled: true},
		},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err)

	edges := edgeSet(g)
	assert.Contains(t, edges, "outbound-route:1 -> trunk:1 [trunk 1]")
	assert.Contains(t, edges, "outbound-route:1 -> trunk:2 [trunk 2]")

	nodes := nodeKeys(g)
	assert.Equal(t, "true", nodes["trunk:2"].Metadata["disabled"])
}

func TestBuildDanglingReferenceMarkedUnresolved(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "ext-group,600,1"}},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err)

	nodes := nodeKeys(g)
	rg := nodes["ring-group:600"]
	assert.Equal(t, dest.KindRingGroup, rg.Kind)
	assert.Equal(t, "true", rg.Metadata["unresolved"])
}

func TestBuildIvrOptionOrderAndLabels(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "ivr-7,s,"}},
		IvrMenus:      []snapshot.IvrMenu{{IvrID: "7"}},
		IvrOptions: []snapshot.IvrOption{
			{IvrID: "7", Selection: "t", Destination: "ext-local,1,1"},
			{IvrID: "7", Selection: "9", Destination: "ext-local,2,1"},
			{IvrID: "7", Selection: "0", Destination: "ext-local,3,1"},
			{IvrID: "7", Selection: "i", Destination: "ext-local,4,1"},
			{IvrID: "7", Selection: "*", Destination: "ext-local,5,1"},
		},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err)

	var labels []string
	for _, e := range g.Edges() {
		if e.From == "ivr:7" {
			labels = append(labels, e.BranchLabel)
		}
	}
	assert.Equal(t, []string{"digit 0", "digit 9", "digit *", "timeout", "invalid"}, labels)
}

func TestBuildIsDeterministic(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "timeconditions,1,1"}},
		TimeConditions: []snapshot.TimeCondition{{
			ID:               "1",
			DestinationTrue:  "ivr-7,s,",
			DestinationFalse: "ext-group,600,1",
		}},
		IvrMenus: []snapshot.IvrMenu{{IvrID: "7"}},
		IvrOptions: []snapshot.IvrOption{
			{IvrID: "7", Selection: "1", Destination: "ext-group,600,1"},
			{IvrID: "7", Selection: "2", Destination: "ext-local,4220,1"},
		},
		RingGroups: []snapshot.RingGroup{{GroupID: "600", Destination: "ext-local,4220,1"}},
		Extensions: []snapshot.Extension{{Number: "4220"}},
	}

	first, err := Build(snap, "100", 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Build(snap, "100", 0)
		require.NoError(t, err)
		assert.Equal(t, first.Export(), again.Export())
	}
}

func TestExportShape(t *testing.T) {
	snap := &snapshot.Snapshot{
		InboundRoutes: []snapshot.InboundRoute{{DID: "100", Destination: "ext-local,4220,1"}},
		Extensions:    []snapshot.Extension{{Number: "4220"}},
	}

	g, err := Build(snap, "100", 0)
	require.NoError(t, err)

	doc := g.Export()
	assert.Equal(t, "100", doc.EntryDID)
	assert.False(t, doc.Truncated)
	assert.Len(t, doc.Nodes, 2)
	assert.Len(t, doc.Edges, 1)

	// accessors hand out copies
	nodes := g.Nodes()
	nodes[0].Label = "mutated"
	assert.NotEqual(t, "mutated", g.Nodes()[0].Label)
}
