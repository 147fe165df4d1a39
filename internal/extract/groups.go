package extract

import (
	"fmt"
	"strings"

	"callflowmap/internal/snapshot"
)

// ringGroups reads the ring group table. The member list is stored in-row as
// a dash-separated extension list.
func (c *collector) ringGroups() []snapshot.RingGroup {
	const code = "ring-groups"
	table, ok := c.caps.FirstTable("ringgroups")
	if !ok {
		c.warnf(code, "no ring group table present, collection empty")
		return nil
	}
	idCol, ok := c.caps.FirstColumn(table, "grpnum", "id")
	if !ok {
		c.warnf(code, "table %s lacks a group number column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s FROM %s",
		idCol,
		c.colExpr(table, "description", "descr"),
		c.colExpr(table, "grplist"),
		c.colExpr(table, "strategy"),
		c.colExpr(table, "grptime"),
		c.colExpr(table, "postdest"),
		table)

	seen := map[string]bool{}
	var out []snapshot.RingGroup
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if id == "" || seen[id] {
			c.warnf(code, "dropped a ring group row with empty or duplicate id %q", id)
			continue
		}
		seen[id] = true
		out = append(out, snapshot.RingGroup{
			GroupID:     id,
			Label:       field(row, 1),
			MemberList:  splitMemberList(field(row, 2)),
			Strategy:    field(row, 3),
			RingSeconds: atoi(field(row, 4)),
			Destination: field(row, 5),
		})
	}
	return out
}

// splitMemberList splits the dash-separated grplist form. A trailing # on an
// entry marks confirm-answer and is not part of the extension number.
func splitMemberList(list string) []string {
	if list == "" {
		return nil
	}
	var members []string
	for _, m := range strings.Split(list, "-") {
		m = strings.TrimSuffix(strings.TrimSpace(m), "#")
		if m != "" {
			members = append(members, m)
		}
	}
	return members
}

// queues reads the queue definitions. Newer revisions keep one row per queue
// with a fail-over destination column; per-queue settings and static agents
// live in a keyword/data detail table, dynamic agents in a separate member
// table joined by queue name.
func (c *collector) queues() []snapshot.Queue {
	const code = "queues"
	table, ok := c.caps.FirstTable("queues_config", "queues")
	if !ok {
		c.warnf(code, "no queue table present, collection empty")
		return nil
	}
	idCol, ok := c.caps.FirstColumn(table, "extension", "id")
	if !ok {
		c.warnf(code, "table %s lacks a queue id column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		idCol,
		c.colExpr(table, "descr", "description"),
		c.colExpr(table, "dest"),
		table)

	byID := map[string]int{}
	var out []snapshot.Queue
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if id == "" || seenIndex(byID, id) {
			c.warnf(code, "dropped a queue row with empty or duplicate id %q", id)
			continue
		}
		byID[id] = len(out)
		out = append(out, snapshot.Queue{
			QueueID:     id,
			Label:       field(row, 1),
			Destination: field(row, 2),
		})
	}

	c.mergeQueueDetails(byID, out)
	c.mergeQueueMembers(byID, out)
	return out
}

func seenIndex(m map[string]int, key string) bool {
	_, ok := m[key]
	return ok
}

// mergeQueueDetails folds the keyword/data rows into the queues: strategy,
// timeout and the static member entries.
func (c *collector) mergeQueueDetails(byID map[string]int, out []snapshot.Queue) {
	const code = "queue-details"
	table, ok := c.caps.FirstTable("queues_details")
	if !ok {
		return
	}
	if !c.caps.HasColumn(table, "id") || !c.caps.HasColumn(table, "keyword") || !c.caps.HasColumn(table, "data") {
		c.warnf(code, "table %s lacks required columns, queue settings skipped", table)
		return
	}

	sqlText := fmt.Sprintf("SELECT id, keyword, data FROM %s", table)
	orphans := 0
	for _, row := range c.query(code, sqlText) {
		idx, ok := byID[field(row, 0)]
		if !ok {
			orphans++
			continue
		}
		data := field(row, 2)
		switch field(row, 1) {
		case "strategy":
			out[idx].Strategy = data
		case "timeout":
			out[idx].TimeoutSeconds = atoi(data)
		case "member":
			if data != "" {
				out[idx].StaticMembers = append(out[idx].StaticMembers, data)
			}
		}
	}
	if orphans > 0 {
		c.warnf(code, "dropped %d detail rows for unknown queues", orphans)
	}
}

// mergeQueueMembers folds the dynamic agent rows in. The member table is
// joined by queue name with no enforced foreign key, so orphans are expected
// on long-lived installations.
func (c *collector) mergeQueueMembers(byID map[string]int, out []snapshot.Queue) {
	const code = "queue-members"
	table, ok := c.caps.FirstTable("queue_members")
	if !ok {
		return
	}
	if !c.caps.HasColumn(table, "queue_name") || !c.caps.HasColumn(table, "interface") {
		c.warnf(code, "table %s lacks required columns, dynamic members skipped", table)
		return
	}

	sqlText := fmt.Sprintf("SELECT queue_name, interface, %s FROM %s",
		c.colExpr(table, "membername"), table)

	orphans := 0
	for _, row := range c.query(code, sqlText) {
		idx, ok := byID[field(row, 0)]
		if !ok {
			orphans++
			continue
		}
		member := field(row, 2)
		if member == "" {
			member = field(row, 1)
		}
		if member != "" {
			out[idx].DynamicMembers = append(out[idx].DynamicMembers, member)
		}
	}
	if orphans > 0 {
		c.warnf(code, "dropped %d member rows for unknown queues", orphans)
	}
}

// extensions reads the dialable endpoint list.
func (c *collector) extensions() []snapshot.Extension {
	const code = "extensions"
	table, ok := c.caps.FirstTable("users", "extensions")
	if !ok {
		c.warnf(code, "no extension table present, collection empty")
		return nil
	}
	numberCol, ok := c.caps.FirstColumn(table, "extension", "number")
	if !ok {
		c.warnf(code, "table %s lacks an extension number column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s FROM %s",
		numberCol, c.colExpr(table, "name", "description"), table)

	seen := map[string]bool{}
	var out []snapshot.Extension
	for _, row := range c.query(code, sqlText) {
		number := field(row, 0)
		if number == "" || seen[number] {
			c.warnf(code, "dropped an extension row with empty or duplicate number %q", number)
			continue
		}
		seen[number] = true
		out = append(out, snapshot.Extension{Number: number, Label: field(row, 1)})
	}
	return out
}
