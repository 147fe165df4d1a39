package extract

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callflowmap/internal/snapshot"
	"callflowmap/internal/store"
)

// fixtureDB builds an in-memory store shaped like a current schema revision.
func fixtureDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE incoming (extension TEXT, cidnum TEXT, destination TEXT, description TEXT);
		CREATE TABLE ringgroups (grpnum INTEGER, description TEXT, grplist TEXT, strategy TEXT, grptime INTEGER, postdest TEXT);
		CREATE TABLE queues_config (extension TEXT, descr TEXT, dest TEXT);
		CREATE TABLE queues_details (id TEXT, keyword TEXT, data TEXT, flags INTEGER);
		CREATE TABLE queue_members (queue_name TEXT, interface TEXT, membername TEXT);
		CREATE TABLE ivr_details (id INTEGER, name TEXT, announcement INTEGER, timeout_destination TEXT, invalid_destination TEXT);
		CREATE TABLE ivr_entries (ivr_id INTEGER, selection TEXT, dest TEXT);
		CREATE TABLE timeconditions (timeconditions_id INTEGER, displayname TEXT, time INTEGER, truegoto TEXT, falsegoto TEXT);
		CREATE TABLE timegroups_groups (id INTEGER, description TEXT);
		CREATE TABLE timegroups_details (id INTEGER, timegroupid INTEGER, time TEXT);
		CREATE TABLE announcement (announcement_id INTEGER, description TEXT, recording_id INTEGER, post_dest TEXT);
		CREATE TABLE recordings (id INTEGER, displayname TEXT, filename TEXT);
		CREATE TABLE users (extension TEXT, name TEXT);
		CREATE TABLE trunks (trunkid INTEGER, name TEXT, tech TEXT, channelid TEXT, maxchans TEXT, disabled TEXT);
		CREATE TABLE outbound_routes (route_id INTEGER, name TEXT);
		CREATE TABLE outbound_route_patterns (route_id INTEGER, match_pattern_pass TEXT, match_pattern_prefix TEXT);
		CREATE TABLE outbound_route_trunks (route_id INTEGER, trunk_id INTEGER, seq INTEGER);
		CREATE TABLE admin (variable TEXT, value TEXT);
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO incoming VALUES
			('2485551234', '', 'ivr-7,s,', 'Main line'),
			('2485559999', '800*', 'timeconditions,3,1', 'Office line'),
			('', '', 'ext-local,4220,1', 'broken row'),
			('2485551234', '', 'ext-local,4221,1', 'duplicate DID');
		INSERT INTO ringgroups VALUES (600, 'Sales', '4220-4221-4222#', 'ringall', 20, 'ext-local,vmu4220,1');
		INSERT INTO queues_config VALUES ('700', 'Support', 'app-announcement-2,s,1');
		INSERT INTO queues_details VALUES
			('700', 'strategy', 'rrmemory', 0),
			('700', 'timeout', '300', 0),
			('700', 'member', 'Local/4220@from-queue/n,0', 0),
			('999', 'strategy', 'ringall', 0);
		INSERT INTO queue_members VALUES
			('700', 'Local/4221@from-queue/n', 'Agent 4221'),
			('888', 'Local/5555@from-queue/n', 'orphan');
		INSERT INTO ivr_details VALUES (7, 'Day menu', 3, 'ext-group,600,1', '');
		INSERT INTO ivr_entries VALUES
			(7, '1', 'ext-local,4220,1'),
			(7, '2', 'ext-queues,700,1'),
			(9, '1', 'ext-local,4220,1');
		INSERT INTO timeconditions VALUES (3, 'Office hours', 1, 'ext-group,600,1', 'app-blackhole,hangup,1');
		INSERT INTO timegroups_groups VALUES (1, 'Weekdays');
		INSERT INTO timegroups_details VALUES
			(10, 1, '09:00-17:00|mon-fri|*|*'),
			(11, 2, '*|sat-sun|*|*');
		INSERT INTO announcement VALUES (2, 'Closed message', 5, 'app-blackhole,hangup,1');
		INSERT INTO recordings VALUES (5, 'closed-msg', 'custom/closed-msg');
		INSERT INTO users VALUES ('4220', 'Front Desk'), ('4221', 'Back Office');
		INSERT INTO trunks VALUES (1, 'Carrier A', 'sip', 'carrier-a', '23', 'off'), (2, 'Carrier B', 'iax2', 'carrier-b', '', 'on');
		INSERT INTO outbound_routes VALUES (1, 'Local calls');
		INSERT INTO outbound_route_patterns VALUES (1, 'NXXNXXXXXX', ''), (1, 'NXXXXXX', '1248'), (42, 'X.', '');
		INSERT INTO outbound_route_trunks VALUES (1, 2, 2), (1, 1, 1);
		INSERT INTO admin VALUES ('version', '2.11.0.43'), ('need_reload', 'false');
	`)
	require.NoError(t, err)
	return db
}

func warningCodes(ws []snapshot.Warning) []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

func TestRunFullSchema(t *testing.T) {
	db := fixtureDB(t)
	snap, err := Run(context.Background(), store.NewDriverRunner(db), Options{Engine: "sqlite", Hostname: "pbx01"})
	require.NoError(t, err)

	// inbound routes: empty DID and duplicate DID dropped with warnings
	require.Len(t, snap.InboundRoutes, 2)
	r, ok := snap.RouteForDID("2485551234")
	require.True(t, ok)
	assert.Equal(t, "ivr-7,s,", r.Destination)
	assert.Equal(t, "Main line", r.Label)
	r, ok = snap.RouteForDID("2485559999")
	require.True(t, ok)
	assert.Equal(t, "800*", r.CallerIDFilter)

	require.Len(t, snap.RingGroups, 1)
	g := snap.RingGroups[0]
	assert.Equal(t, "600", g.GroupID)
	assert.Equal(t, []string{"4220", "4221", "4222"}, g.MemberList, "confirm marker stripped")
	assert.Equal(t, "ringall", g.Strategy)
	assert.Equal(t, 20, g.RingSeconds)
	assert.Equal(t, "ext-local,vmu4220,1", g.Destination)

	require.Len(t, snap.Queues, 1)
	q := snap.Queues[0]
	assert.Equal(t, "700", q.QueueID)
	assert.Equal(t, "rrmemory", q.Strategy)
	assert.Equal(t, 300, q.TimeoutSeconds)
	assert.Equal(t, []string{"Local/4220@from-queue/n,0"}, q.StaticMembers)
	assert.Equal(t, []string{"Agent 4221"}, q.DynamicMembers)
	assert.Equal(t, "app-announcement-2,s,1", q.Destination)

	require.Len(t, snap.IvrMenus, 1)
	assert.Equal(t, "Day menu", snap.IvrMenus[0].Label)
	assert.Equal(t, "3", snap.IvrMenus[0].AnnouncementID)
	opts := snap.OptionsForIvr("7")
	require.Len(t, opts, 3, "two digit options plus the synthetic timeout option")
	selections := map[string]string{}
	for _, o := range opts {
		selections[o.Selection] = o.Destination
	}
	assert.Equal(t, "ext-local,4220,1", selections["1"])
	assert.Equal(t, "ext-queues,700,1", selections["2"])
	assert.Equal(t, "ext-group,600,1", selections["t"])

	require.Len(t, snap.TimeConditions, 1)
	tc := snap.TimeConditions[0]
	assert.Equal(t, "3", tc.ID)
	assert.Equal(t, "1", tc.TimeGroupID)
	assert.Equal(t, "ext-group,600,1", tc.DestinationTrue)
	assert.Equal(t, "app-blackhole,hangup,1", tc.DestinationFalse)

	require.Len(t, snap.TimeGroups, 1)
	assert.Equal(t, []string{"09:00-17:00|mon-fri|*|*"}, snap.TimeGroups[0].Rules)

	require.Len(t, snap.Announcements, 1)
	assert.Equal(t, "app-blackhole,hangup,1", snap.Announcements[0].PostDestination)
	assert.Equal(t, "5", snap.Announcements[0].RecordingID)

	require.Len(t, snap.Recordings, 1)
	assert.Equal(t, "custom/closed-msg", snap.Recordings[0].Filename)

	require.Len(t, snap.Extensions, 2)

	require.Len(t, snap.Trunks, 2)
	assert.Equal(t, 23, snap.Trunks[0].MaxChannels)
	assert.False(t, snap.Trunks[0].Disabled)
	assert.True(t, snap.Trunks[1].Disabled)

	require.Len(t, snap.OutboundRoutes, 1)
	or := snap.OutboundRoutes[0]
	assert.Equal(t, []string{"NXXNXXXXXX", "1248|NXXXXXX"}, or.Patterns)
	assert.Equal(t, []string{"1", "2"}, or.TrunkSequence, "ordered by seq")

	assert.Equal(t, "pbx01", snap.Meta.Hostname)
	assert.Equal(t, "2.11.0.43", snap.Meta.PBXVersion)
	assert.NotEmpty(t, snap.Meta.StoreVersion)
	assert.NotEmpty(t, snap.Meta.RunID)
	assert.False(t, snap.Meta.GeneratedAtUTC.IsZero())
	assert.Equal(t, snapshot.FormatVersion, snap.Meta.FormatVersion)

	codes := warningCodes(snap.Warnings)
	assert.Contains(t, codes, "inbound-routes", "empty/duplicate DID rows warned")
	assert.Contains(t, codes, "queue-details", "orphaned detail rows warned")
	assert.Contains(t, codes, "queue-members", "orphaned member rows warned")
	assert.Contains(t, codes, "ivr-options", "orphaned option rows warned")
	assert.Contains(t, codes, "time-groups", "orphaned rule rows warned")
	assert.Contains(t, codes, "outbound-route-patterns", "orphaned pattern rows warned")
}

func TestRunEmptyStoreDegrades(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	snap, err := Run(context.Background(), store.NewDriverRunner(db), Options{Engine: "sqlite"})
	require.NoError(t, err, "a store with no tables at all still extracts")

	assert.Empty(t, snap.InboundRoutes)
	assert.Empty(t, snap.RingGroups)
	assert.Empty(t, snap.Queues)
	assert.Empty(t, snap.IvrMenus)
	assert.Empty(t, snap.TimeConditions)
	assert.Empty(t, snap.Trunks)
	assert.Empty(t, snap.OutboundRoutes)
	assert.NotEmpty(t, snap.Warnings, "every absent collection is warned about")
	assert.NotEmpty(t, snap.Meta.RunID)
}

func TestRunLegacySchemaRevision(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	// older revision: ivr/ivr_dests naming, no fail-over dest on queues,
	// no cidnum on incoming
	_, err = db.Exec(`
		CREATE TABLE incoming (extension TEXT, destination TEXT, description TEXT);
		CREATE TABLE ivr (ivr_id INTEGER, displayname TEXT, announcement INTEGER);
		CREATE TABLE ivr_dests (ivr_id INTEGER, selection TEXT, dest TEXT);
		INSERT INTO incoming VALUES ('2485551234', 'ivr-7,s,', 'Main line');
		INSERT INTO ivr VALUES (7, 'Old menu', 3);
		INSERT INTO ivr_dests VALUES (7, '1', 'ext-local,4220,1');
	`)
	require.NoError(t, err)

	snap, err := Run(context.Background(), store.NewDriverRunner(db), Options{Engine: "sqlite"})
	require.NoError(t, err)

	require.Len(t, snap.InboundRoutes, 1)
	assert.Empty(t, snap.InboundRoutes[0].CallerIDFilter)

	require.Len(t, snap.IvrMenus, 1)
	assert.Equal(t, "7", snap.IvrMenus[0].IvrID)
	assert.Equal(t, "Old menu", snap.IvrMenus[0].Label)

	opts := snap.OptionsForIvr("7")
	require.Len(t, opts, 1)
	assert.Equal(t, "1", opts[0].Selection)
	assert.Equal(t, "ext-local,4220,1", opts[0].Destination)
}

func TestRunUnsupportedEngine(t *testing.T) {
	db := fixtureDB(t)
	_, err := Run(context.Background(), store.NewDriverRunner(db), Options{Engine: "mssql"})
	assert.Error(t, err)
}

func TestSplitMemberList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"4220", []string{"4220"}},
		{"4220-4221", []string{"4220", "4221"}},
		{"4220#-4221", []string{"4220", "4221"}},
		{"-4220--", []string{"4220"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitMemberList(tt.in), "input %q", tt.in)
	}
}
