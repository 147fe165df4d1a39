package snapshot

// Lookup helpers over the snapshot collections. Collections are small
// (tens to a few hundred entries), linear scans are fine.

// RouteForDID returns the inbound route whose DID matches the dialed number.
func (s *Snapshot) RouteForDID(did string) (InboundRoute, bool) {
	for _, r := range s.InboundRoutes {
		if r.DID == did {
			return r, true
		}
	}
	return InboundRoute{}, false
}

func (s *Snapshot) RingGroupByID(id string) (RingGroup, bool) {
	for _, g := range s.RingGroups {
		if g.GroupID == id {
			return g, true
		}
	}
	return RingGroup{}, false
}

func (s *Snapshot) QueueByID(id string) (Queue, bool) {
	for _, q := range s.Queues {
		if q.QueueID == id {
			return q, true
		}
	}
	return Queue{}, false
}

func (s *Snapshot) IvrByID(id string) (IvrMenu, bool) {
	for _, m := range s.IvrMenus {
		if m.IvrID == id {
			return m, true
		}
	}
	return IvrMenu{}, false
}

// OptionsForIvr returns the menu's options in snapshot order.
func (s *Snapshot) OptionsForIvr(id string) []IvrOption {
	var opts []IvrOption
	for _, o := range s.IvrOptions {
		if o.IvrID == id {
			opts = append(opts, o)
		}
	}
	return opts
}

func (s *Snapshot) TimeConditionByID(id string) (TimeCondition, bool) {
	for _, tc := range s.TimeConditions {
		if tc.ID == id {
			return tc, true
		}
	}
	return TimeCondition{}, false
}

func (s *Snapshot) AnnouncementByID(id string) (Announcement, bool) {
	for _, a := range s.Announcements {
		if a.ID == id {
			return a, true
		}
	}
	return Announcement{}, false
}

func (s *Snapshot) ExtensionByNumber(number string) (Extension, bool) {
	for _, e := range s.Extensions {
		if e.Number == number {
			return e, true
		}
	}
	return Extension{}, false
}

func (s *Snapshot) TrunkByID(id string) (Trunk, bool) {
	for _, t := range s.Trunks {
		if t.ID == id {
			return t, true
		}
	}
	return Trunk{}, false
}

func (s *Snapshot) OutboundRouteByID(id string) (OutboundRoute, bool) {
	for _, r := range s.OutboundRoutes {
		if r.ID == id {
			return r, true
		}
	}
	return OutboundRoute{}, false
}
