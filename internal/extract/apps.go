package extract

import (
	"fmt"

	"callflowmap/internal/snapshot"
)

// ivr reads the menu definitions and their options. Older revisions use
// ivr/ivr_dests, newer ones ivr_details/ivr_entries with the timeout and
// invalid-input destinations folded into the menu row; those fold back out
// here as synthetic `t` and `i` options so the graph sees one uniform shape.
func (c *collector) ivr() ([]snapshot.IvrMenu, []snapshot.IvrOption) {
	const code = "ivr"
	table, ok := c.caps.FirstTable("ivr_details", "ivr")
	if !ok {
		c.warnf(code, "no IVR table present, collection empty")
		return nil, nil
	}
	idCol, ok := c.caps.FirstColumn(table, "id", "ivr_id")
	if !ok {
		c.warnf(code, "table %s lacks an id column, collection empty", table)
		return nil, nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s",
		idCol,
		c.colExpr(table, "name", "displayname", "description"),
		c.colExpr(table, "announcement", "announcement_id"),
		c.colExpr(table, "timeout_destination"),
		c.colExpr(table, "invalid_destination"),
		table)

	seen := map[string]bool{}
	var menus []snapshot.IvrMenu
	var options []snapshot.IvrOption
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if id == "" || seen[id] {
			c.warnf(code, "dropped an IVR row with empty or duplicate id %q", id)
			continue
		}
		seen[id] = true
		menus = append(menus, snapshot.IvrMenu{
			IvrID:          id,
			Label:          field(row, 1),
			AnnouncementID: field(row, 2),
		})
		if d := field(row, 3); d != "" {
			options = append(options, snapshot.IvrOption{IvrID: id, Selection: "t", Destination: d})
		}
		if d := field(row, 4); d != "" {
			options = append(options, snapshot.IvrOption{IvrID: id, Selection: "i", Destination: d})
		}
	}

	options = append(options, c.ivrOptions(seen)...)
	return menus, options
}

func (c *collector) ivrOptions(menus map[string]bool) []snapshot.IvrOption {
	const code = "ivr-options"
	table, ok := c.caps.FirstTable("ivr_entries", "ivr_dests")
	if !ok {
		return nil
	}
	idCol, ok := c.caps.FirstColumn(table, "ivr_id")
	if !ok {
		c.warnf(code, "table %s lacks an ivr id column, options skipped", table)
		return nil
	}
	selCol, ok := c.caps.FirstColumn(table, "selection")
	if !ok {
		c.warnf(code, "table %s lacks a selection column, options skipped", table)
		return nil
	}
	destCol, ok := c.caps.FirstColumn(table, "dest", "destination")
	if !ok {
		c.warnf(code, "table %s lacks a destination column, options skipped", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s FROM %s", idCol, selCol, destCol, table)

	orphans := 0
	var out []snapshot.IvrOption
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if !menus[id] {
			orphans++
			continue
		}
		sel := field(row, 1)
		d := field(row, 2)
		if sel == "" || d == "" {
			continue
		}
		out = append(out, snapshot.IvrOption{IvrID: id, Selection: sel, Destination: d})
	}
	if orphans > 0 {
		c.warnf(code, "dropped %d option rows for unknown menus", orphans)
	}
	return out
}

// timeConditions reads the schedule-gated branch points.
func (c *collector) timeConditions() []snapshot.TimeCondition {
	const code = "time-conditions"
	table, ok := c.caps.FirstTable("timeconditions")
	if !ok {
		c.warnf(code, "no time condition table present, collection empty")
		return nil
	}
	idCol, ok := c.caps.FirstColumn(table, "timeconditions_id", "id")
	if !ok {
		c.warnf(code, "table %s lacks an id column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s",
		idCol,
		c.colExpr(table, "displayname", "description"),
		c.colExpr(table, "time", "timegroupid"),
		c.colExpr(table, "truegoto"),
		c.colExpr(table, "falsegoto"),
		table)

	seen := map[string]bool{}
	var out []snapshot.TimeCondition
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if id == "" || seen[id] {
			c.warnf(code, "dropped a time condition row with empty or duplicate id %q", id)
			continue
		}
		seen[id] = true
		out = append(out, snapshot.TimeCondition{
			ID:               id,
			Label:            field(row, 1),
			TimeGroupID:      field(row, 2),
			DestinationTrue:  field(row, 3),
			DestinationFalse: field(row, 4),
		})
	}
	return out
}

// timeGroups reads the schedule rule sets referenced by time conditions. The
// rules stay opaque; only the grouping matters to the call-flow map.
func (c *collector) timeGroups() []snapshot.TimeGroup {
	const code = "time-groups"
	groupsTable, haveGroups := c.caps.FirstTable("timegroups_groups")
	detailsTable, haveDetails := c.caps.FirstTable("timegroups_details")
	if !haveGroups && !haveDetails {
		c.warnf(code, "no time group tables present, collection empty")
		return nil
	}

	byID := map[string]int{}
	var out []snapshot.TimeGroup

	if haveGroups {
		if idCol, ok := c.caps.FirstColumn(groupsTable, "id"); ok {
			sqlText := fmt.Sprintf("SELECT %s FROM %s", idCol, groupsTable)
			for _, row := range c.query(code, sqlText) {
				id := field(row, 0)
				if id == "" || seenIndex(byID, id) {
					continue
				}
				byID[id] = len(out)
				out = append(out, snapshot.TimeGroup{ID: id})
			}
		}
	}

	if haveDetails {
		if !c.caps.HasColumn(detailsTable, "timegroupid") || !c.caps.HasColumn(detailsTable, "time") {
			c.warnf(code, "table %s lacks required columns, rules skipped", detailsTable)
			return out
		}
		sqlText := fmt.Sprintf("SELECT timegroupid, time FROM %s", detailsTable)
		orphans := 0
		for _, row := range c.query(code, sqlText) {
			id := field(row, 0)
			if id == "" {
				continue
			}
			idx, ok := byID[id]
			if !ok {
				if haveGroups {
					// rule row pointing at a deleted group
					orphans++
					continue
				}
				byID[id] = len(out)
				out = append(out, snapshot.TimeGroup{ID: id})
				idx = byID[id]
			}
			if rule := field(row, 1); rule != "" {
				out[idx].Rules = append(out[idx].Rules, rule)
			}
		}
		if orphans > 0 {
			c.warnf(code, "dropped %d rule rows for unknown time groups", orphans)
		}
	}
	return out
}

// announcements reads the play-then-continue steps.
func (c *collector) announcements() []snapshot.Announcement {
	const code = "announcements"
	table, ok := c.caps.FirstTable("announcement", "announcements")
	if !ok {
		c.warnf(code, "no announcement table present, collection empty")
		return nil
	}
	idCol, ok := c.caps.FirstColumn(table, "announcement_id", "id")
	if !ok {
		c.warnf(code, "table %s lacks an id column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s",
		idCol,
		c.colExpr(table, "description"),
		c.colExpr(table, "recording_id"),
		c.colExpr(table, "post_dest", "postdest"),
		table)

	seen := map[string]bool{}
	var out []snapshot.Announcement
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if id == "" || seen[id] {
			c.warnf(code, "dropped an announcement row with empty or duplicate id %q", id)
			continue
		}
		seen[id] = true
		out = append(out, snapshot.Announcement{
			ID:              id,
			Label:           field(row, 1),
			RecordingID:     field(row, 2),
			PostDestination: field(row, 3),
		})
	}
	return out
}

// recordings reads the stored audio file registry.
func (c *collector) recordings() []snapshot.Recording {
	const code = "recordings"
	table, ok := c.caps.FirstTable("recordings")
	if !ok {
		c.warnf(code, "no recording table present, collection empty")
		return nil
	}
	idCol, ok := c.caps.FirstColumn(table, "id")
	if !ok {
		c.warnf(code, "table %s lacks an id column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		idCol,
		c.colExpr(table, "displayname", "description"),
		c.colExpr(table, "filename"),
		table)

	seen := map[string]bool{}
	var out []snapshot.Recording
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if id == "" || seen[id] {
			c.warnf(code, "dropped a recording row with empty or duplicate id %q", id)
			continue
		}
		seen[id] = true
		out = append(out, snapshot.Recording{
			ID:       id,
			Label:    field(row, 1),
			Filename: field(row, 2),
		})
	}
	return out
}
