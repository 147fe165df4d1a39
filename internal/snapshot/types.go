// Package snapshot defines the canonical, schema-version-independent model
// of a PBX routing configuration, its durable JSON form, and lookup helpers
// used by the graph builder. A snapshot is immutable once serialized; a new
// extraction run always produces a new one.
package snapshot

import "time"

// FormatVersion is the snapshot document format revision. New optional
// fields may be added over time; existing field names and types are never
// repurposed.
const FormatVersion = 1

// Meta captures extraction metadata embedded in every snapshot.
type Meta struct {
	FormatVersion  int       `json:"formatVersion"`
	RunID          string    `json:"runId"`
	Hostname       string    `json:"hostname"`
	StoreVersion   string    `json:"storeVersion"`
	PBXVersion     string    `json:"pbxVersion"`
	GeneratedAtUTC time.Time `json:"generatedAtUtc"`
}

// Warning records a recovered extraction problem (missing table, orphaned
// row) so operators can judge data completeness per run.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InboundRoute maps a dialed number (DID) to its first routing destination.
type InboundRoute struct {
	DID            string `json:"did"`
	CallerIDFilter string `json:"callerIdFilter,omitempty"`
	Destination    string `json:"destination"`
	Label          string `json:"label,omitempty"`
}

// RingGroup rings a member list per a strategy, then falls through to an
// optional no-answer destination.
type RingGroup struct {
	GroupID     string   `json:"groupId"`
	Label       string   `json:"label,omitempty"`
	MemberList  []string `json:"memberList,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	RingSeconds int      `json:"ringSeconds,omitempty"`
	Destination string   `json:"destination,omitempty"`
}

// Queue holds callers for agents, then falls through to an optional timeout
// destination.
type Queue struct {
	QueueID        string   `json:"queueId"`
	Label          string   `json:"label,omitempty"`
	Strategy       string   `json:"strategy,omitempty"`
	TimeoutSeconds int      `json:"timeoutSeconds,omitempty"`
	StaticMembers  []string `json:"staticMembers,omitempty"`
	DynamicMembers []string `json:"dynamicMembers,omitempty"`
	Destination    string   `json:"destination,omitempty"`
}

// IvrMenu is an interactive voice menu; its options live in IvrOption rows.
type IvrMenu struct {
	IvrID          string `json:"ivrId"`
	Label          string `json:"label,omitempty"`
	AnnouncementID string `json:"announcementId,omitempty"`
}

// IvrOption is one caller-selectable branch of a menu. Selection is a digit
// 0-9, `*`, `#`, `t` (timeout) or `i` (invalid input).
type IvrOption struct {
	IvrID       string `json:"ivrId"`
	Selection   string `json:"selection"`
	Destination string `json:"destination"`
}

// TimeCondition gates between two destinations on a schedule.
type TimeCondition struct {
	ID               string `json:"id"`
	Label            string `json:"label,omitempty"`
	TimeGroupID      string `json:"timeGroupId,omitempty"`
	DestinationTrue  string `json:"destinationTrue,omitempty"`
	DestinationFalse string `json:"destinationFalse,omitempty"`
}

// TimeGroup carries opaque schedule rules referenced by time conditions.
// The rules are not interpreted here.
type TimeGroup struct {
	ID    string   `json:"id"`
	Rules []string `json:"rules,omitempty"`
}

// Announcement plays a recording, then continues to a destination.
type Announcement struct {
	ID              string `json:"id"`
	Label           string `json:"label,omitempty"`
	RecordingID     string `json:"recordingId,omitempty"`
	PostDestination string `json:"postDestination,omitempty"`
}

// Extension is a terminal dialable endpoint.
type Extension struct {
	Number string `json:"number"`
	Label  string `json:"label,omitempty"`
}

// Recording names a stored audio file.
type Recording struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Trunk is an outbound carrier channel.
type Trunk struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Technology  string `json:"technology,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	MaxChannels int    `json:"maxChannels,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
}

// OutboundRoute selects a trunk sequence for dialed numbers matching its
// patterns.
type OutboundRoute struct {
	ID            string   `json:"id"`
	Label         string   `json:"label,omitempty"`
	Patterns      []string `json:"patterns,omitempty"`
	TrunkSequence []string `json:"trunkSequence,omitempty"`
}

// Snapshot is the top-level document. Collection order is not meaningful;
// every identifying key is unique within its collection.
type Snapshot struct {
	Meta           Meta            `json:"meta"`
	InboundRoutes  []InboundRoute  `json:"inboundRoutes,omitempty"`
	RingGroups     []RingGroup     `json:"ringGroups,omitempty"`
	Queues         []Queue         `json:"queues,omitempty"`
	IvrMenus       []IvrMenu       `json:"ivrMenus,omitempty"`
	IvrOptions     []IvrOption     `json:"ivrOptions,omitempty"`
	TimeConditions []TimeCondition `json:"timeConditions,omitempty"`
	TimeGroups     []TimeGroup     `json:"timeGroups,omitempty"`
	Announcements  []Announcement  `json:"announcements,omitempty"`
	Extensions     []Extension     `json:"extensions,omitempty"`
	Recordings     []Recording     `json:"recordings,omitempty"`
	Trunks         []Trunk         `json:"trunks,omitempty"`
	OutboundRoutes []OutboundRoute `json:"outboundRoutes,omitempty"`
	Warnings       []Warning       `json:"warnings,omitempty"`
}
