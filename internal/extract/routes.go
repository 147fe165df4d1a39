package extract

import (
	"fmt"

	"callflowmap/internal/snapshot"
)

// inboundRoutes reads the DID routing table. The table has kept its name
// across revisions but the DID and label columns have not.
func (c *collector) inboundRoutes() []snapshot.InboundRoute {
	const code = "inbound-routes"
	table, ok := c.caps.FirstTable("incoming", "inbound_routes")
	if !ok {
		c.warnf(code, "no inbound route table present, collection empty")
		return nil
	}
	didCol, ok := c.caps.FirstColumn(table, "extension", "did")
	if !ok {
		c.warnf(code, "table %s lacks a DID column, collection empty", table)
		return nil
	}
	destCol, ok := c.caps.FirstColumn(table, "destination", "goto")
	if !ok {
		c.warnf(code, "table %s lacks a destination column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s",
		didCol,
		c.colExpr(table, "cidnum", "cid"),
		destCol,
		c.colExpr(table, "description"),
		table)

	seen := map[string]bool{}
	var out []snapshot.InboundRoute
	for _, row := range c.query(code, sqlText) {
		did := field(row, 0)
		if did == "" {
			c.warnf(code, "dropped a route row with an empty DID")
			continue
		}
		if seen[did] {
			c.warnf(code, "dropped duplicate route for DID %s", did)
			continue
		}
		seen[did] = true
		out = append(out, snapshot.InboundRoute{
			DID:            did,
			CallerIDFilter: field(row, 1),
			Destination:    field(row, 2),
			Label:          field(row, 3),
		})
	}
	return out
}

// outboundRoutes reads the pattern/trunk-selection rules. Patterns and the
// trunk ordering live in secondary tables keyed by route id.
func (c *collector) outboundRoutes() []snapshot.OutboundRoute {
	const code = "outbound-routes"
	table, ok := c.caps.FirstTable("outbound_routes")
	if !ok {
		c.warnf(code, "no outbound route table present, collection empty")
		return nil
	}
	idCol, ok := c.caps.FirstColumn(table, "route_id", "id")
	if !ok {
		c.warnf(code, "table %s lacks a route id column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s FROM %s",
		idCol, c.colExpr(table, "name", "description"), table)

	byID := map[string]int{}
	var out []snapshot.OutboundRoute
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if id == "" {
			c.warnf(code, "dropped a route row with an empty id")
			continue
		}
		if _, dup := byID[id]; dup {
			c.warnf(code, "dropped duplicate outbound route %s", id)
			continue
		}
		byID[id] = len(out)
		out = append(out, snapshot.OutboundRoute{ID: id, Label: field(row, 1)})
	}

	c.mergeOutboundPatterns(byID, out)
	c.mergeOutboundTrunks(byID, out)
	return out
}

func (c *collector) mergeOutboundPatterns(byID map[string]int, out []snapshot.OutboundRoute) {
	const code = "outbound-route-patterns"
	table, ok := c.caps.FirstTable("outbound_route_patterns")
	if !ok {
		return
	}
	if !c.caps.HasColumn(table, "route_id") || !c.caps.HasColumn(table, "match_pattern_pass") {
		c.warnf(code, "table %s lacks required columns, patterns skipped", table)
		return
	}

	sqlText := fmt.Sprintf("SELECT route_id, match_pattern_pass, %s FROM %s",
		c.colExpr(table, "match_pattern_prefix"), table)

	orphans := 0
	for _, row := range c.query(code, sqlText) {
		idx, ok := byID[field(row, 0)]
		if !ok {
			orphans++
			continue
		}
		pattern := field(row, 1)
		if prefix := field(row, 2); prefix != "" {
			pattern = prefix + "|" + pattern
		}
		if pattern == "" {
			continue
		}
		out[idx].Patterns = append(out[idx].Patterns, pattern)
	}
	if orphans > 0 {
		c.warnf(code, "dropped %d pattern rows for unknown routes", orphans)
	}
}

func (c *collector) mergeOutboundTrunks(byID map[string]int, out []snapshot.OutboundRoute) {
	const code = "outbound-route-trunks"
	table, ok := c.caps.FirstTable("outbound_route_trunks")
	if !ok {
		return
	}
	if !c.caps.HasColumn(table, "route_id") || !c.caps.HasColumn(table, "trunk_id") {
		c.warnf(code, "table %s lacks required columns, trunk sequence skipped", table)
		return
	}

	sqlText := fmt.Sprintf("SELECT route_id, trunk_id FROM %s", table)
	if c.caps.HasColumn(table, "seq") {
		sqlText += " ORDER BY route_id, seq"
	}

	orphans := 0
	for _, row := range c.query(code, sqlText) {
		idx, ok := byID[field(row, 0)]
		if !ok {
			orphans++
			continue
		}
		if trunkID := field(row, 1); trunkID != "" {
			out[idx].TrunkSequence = append(out[idx].TrunkSequence, trunkID)
		}
	}
	if orphans > 0 {
		c.warnf(code, "dropped %d trunk rows for unknown routes", orphans)
	}
}

// trunks reads the carrier channel definitions.
func (c *collector) trunks() []snapshot.Trunk {
	const code = "trunks"
	table, ok := c.caps.FirstTable("trunks")
	if !ok {
		c.warnf(code, "no trunk table present, collection empty")
		return nil
	}
	idCol, ok := c.caps.FirstColumn(table, "trunkid", "id")
	if !ok {
		c.warnf(code, "table %s lacks a trunk id column, collection empty", table)
		return nil
	}

	sqlText := fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s FROM %s",
		idCol,
		c.colExpr(table, "name", "trunkname"),
		c.colExpr(table, "tech", "technology"),
		c.colExpr(table, "channelid"),
		c.colExpr(table, "maxchans", "maxchannels"),
		c.colExpr(table, "disabled"),
		table)

	seen := map[string]bool{}
	var out []snapshot.Trunk
	for _, row := range c.query(code, sqlText) {
		id := field(row, 0)
		if id == "" || seen[id] {
			c.warnf(code, "dropped a trunk row with empty or duplicate id %q", id)
			continue
		}
		seen[id] = true
		out = append(out, snapshot.Trunk{
			ID:          id,
			Label:       field(row, 1),
			Technology:  field(row, 2),
			ChannelID:   field(row, 3),
			MaxChannels: atoi(field(row, 4)),
			Disabled:    parseFlag(field(row, 5)),
		})
	}
	return out
}
