// Package dest decodes the compact routing-destination strings found in PBX
// configuration fields. The format is a positional comma-separated triple:
// a kind token, a target id, and an optional extra selector, e.g.
// "ext-group,600,1" or "ivr-7,s,". Some tokens embed the target id in the
// token itself.
//
// Decode is pure and total: it never fails. Anything it cannot interpret
// (unknown token, wrong field count, empty string) decodes to KindUnknown
// with the raw text preserved, so a malformed row degrades to an
// "unresolved" graph leaf instead of aborting a run.
package dest

import "strings"

// Kind classifies the routing target a destination string points at.
type Kind string

const (
	KindRingGroup     Kind = "ring-group"
	KindQueue         Kind = "queue"
	KindIvr           Kind = "ivr"
	KindTimeCondition Kind = "time-condition"
	KindAnnouncement  Kind = "announcement"
	KindExtension     Kind = "extension"
	KindOutboundRoute Kind = "outbound-route"
	KindTrunk         Kind = "trunk"
	KindVoicemail     Kind = "voicemail"
	KindHangup        Kind = "hangup"
	KindUnknown       Kind = "unknown"
)

// Ref is the decoded form of a destination string.
type Ref struct {
	Kind        Kind
	TargetID    string
	SubSelector string
	Raw         string
}

const maxFields = 3

// Decode parses one destination string into a Ref.
func Decode(raw string) Ref {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return unknown(raw)
	}

	fields := strings.Split(trimmed, ",")
	if len(fields) > maxFields {
		return unknown(raw)
	}
	token := strings.TrimSpace(fields[0])
	var arg, extra string
	if len(fields) > 1 {
		arg = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		extra = strings.TrimSpace(fields[2])
	}

	// tokens that embed the target id
	if id, ok := strings.CutPrefix(token, "ivr-"); ok {
		if id == "" {
			return unknown(raw)
		}
		return Ref{Kind: KindIvr, TargetID: id, SubSelector: arg, Raw: raw}
	}
	if id, ok := strings.CutPrefix(token, "app-announcement-"); ok {
		if id == "" {
			return unknown(raw)
		}
		return Ref{Kind: KindAnnouncement, TargetID: id, SubSelector: arg, Raw: raw}
	}
	if id, ok := strings.CutPrefix(token, "outrt-"); ok {
		if id == "" {
			return unknown(raw)
		}
		return Ref{Kind: KindOutboundRoute, TargetID: id, SubSelector: arg, Raw: raw}
	}

	switch token {
	case "ext-group":
		return withArg(KindRingGroup, arg, extra, raw)
	case "ext-queues":
		return withArg(KindQueue, arg, extra, raw)
	case "timeconditions":
		return withArg(KindTimeCondition, arg, extra, raw)
	case "app-announcement":
		return withArg(KindAnnouncement, arg, extra, raw)
	case "outrt":
		return withArg(KindOutboundRoute, arg, extra, raw)
	case "ext-trunk":
		return withArg(KindTrunk, arg, extra, raw)
	case "ext-local", "from-did-direct":
		if number, mode, ok := voicemailTarget(arg); ok {
			return Ref{Kind: KindVoicemail, TargetID: number, SubSelector: mode, Raw: raw}
		}
		return withArg(KindExtension, arg, extra, raw)
	case "app-blackhole":
		// arg names the blackhole flavor (hangup, zapateller, ...); all terminal
		return Ref{Kind: KindHangup, TargetID: "hangup", SubSelector: arg, Raw: raw}
	}
	return unknown(raw)
}

func withArg(kind Kind, arg, extra, raw string) Ref {
	if arg == "" {
		return unknown(raw)
	}
	return Ref{Kind: kind, TargetID: arg, SubSelector: extra, Raw: raw}
}

// voicemailTarget recognizes the vmu/vmb/vms mailbox addressing prefixes on
// an extension target: vmu = unavailable greeting, vmb = busy, vms = no
// greeting. Returns the bare mailbox number and the mode letter.
func voicemailTarget(arg string) (number, mode string, ok bool) {
	if len(arg) < 4 || !strings.HasPrefix(arg, "vm") {
		return "", "", false
	}
	switch arg[2] {
	case 'u', 'b', 's':
		return arg[3:], string(arg[2]), true
	}
	return "", "", false
}

func unknown(raw string) Ref {
	return Ref{Kind: KindUnknown, TargetID: strings.TrimSpace(raw), Raw: raw}
}
