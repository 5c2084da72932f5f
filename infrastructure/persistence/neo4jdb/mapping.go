package neo4jdb

import (
	"fmt"
	"strings"
	"time"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
)

// Graph model:
//
//	(:ArgumentNode)-[:DEFINED_BY]->(:ArgumentBody)
//	(:ArgumentNode)-[:LINKS_TO]->(:ArgumentNode)      parent to child
//	(:ArgumentNode)-[:PRECEDED_BY]->(:ArgumentNode)   version to the one it supersedes
//
// The ordered child list is also kept on the node as the children property;
// LINKS_TO relationships mirror it for reverse lookups.

// recordProjection expects n bound to one ArgumentNode per row.
const recordProjection = `
MATCH (n)-[:DEFINED_BY]->(b:ArgumentBody)
OPTIONAL MATCH (p:ArgumentNode)-[:LINKS_TO]->(n)
WITH n, b, collect(DISTINCT p.id) AS dependents
OPTIONAL MATCH (s:ArgumentNode)-[:PRECEDED_BY]->(n)
RETURN n {.*} AS node, b {.*} AS body, dependents, collect(DISTINCT s.id) AS subsequent
ORDER BY node.createdAt`

func nodeProps(node *entities.Node, children []valueobjects.NodeID) map[string]any {
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.String()
	}
	props := map[string]any{
		"id":           node.ID().String(),
		"stableId":     node.StableID().String(),
		"buildVersion": int64(node.BuildVersion()),
		"children":     ids,
		"authorId":     node.Body().AuthorID(),
		"majorVersion": node.Body().MajorVersion().StableID.String(),
		"createdAt":    formatTime(node.CreatedAt()),
		"updatedAt":    formatTime(node.UpdatedAt()),
	}
	if prev, ok := node.PreviousVersion(); ok {
		props["previousVersion"] = prev.String()
	}
	return props
}

func bodyProps(b *entities.Body) map[string]any {
	c := b.Content()
	return map[string]any{
		"id":         b.ID().String(),
		"kind":       b.Kind().String(),
		"title":      c.Title,
		"titleLower": strings.ToLower(c.Title),
		"qualifier":  c.Qualifier,
		"text":       c.Text,
		"url":        c.URL,
		"authorId":   b.AuthorID(),
		"mvBodyId":   b.MajorVersion().BodyID.String(),
		"mvStableId": b.MajorVersion().StableID.String(),
		"public":     b.IsPublic(),
		"createdAt":  formatTime(b.CreatedAt()),
	}
}

func toBody(props map[string]any) (*entities.Body, error) {
	id, err := valueobjects.NewBodyIDFromString(str(props, "id"))
	if err != nil {
		return nil, fmt.Errorf("invalid body id: %w", err)
	}
	kind, err := entities.ParseKind(str(props, "kind"))
	if err != nil {
		return nil, err
	}
	mvBody, err := valueobjects.NewBodyIDFromString(str(props, "mvBodyId"))
	if err != nil {
		return nil, fmt.Errorf("invalid major version body id: %w", err)
	}
	mvStable, err := valueobjects.NewStableIDFromString(str(props, "mvStableId"))
	if err != nil {
		return nil, fmt.Errorf("invalid major version stable id: %w", err)
	}
	public, _ := props["public"].(bool)
	return entities.ReconstructBody(
		id,
		kind,
		entities.Content{
			Title:     str(props, "title"),
			Qualifier: str(props, "qualifier"),
			Text:      str(props, "text"),
			URL:       str(props, "url"),
		},
		str(props, "authorId"),
		entities.MajorVersion{BodyID: mvBody, StableID: mvStable},
		public,
		parseTime(str(props, "createdAt")),
	), nil
}

// toRecord maps one row of recordProjection.
func toRecord(row map[string]any) (*aggregates.NodeRecord, error) {
	nodeMap, ok := row["node"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("row has no node")
	}
	bodyMap, ok := row["body"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("row has no body")
	}
	body, err := toBody(bodyMap)
	if err != nil {
		return nil, err
	}

	id, err := valueobjects.NewNodeIDFromString(str(nodeMap, "id"))
	if err != nil {
		return nil, fmt.Errorf("invalid node id: %w", err)
	}
	stable, err := valueobjects.NewStableIDFromString(str(nodeMap, "stableId"))
	if err != nil {
		return nil, fmt.Errorf("invalid stable id: %w", err)
	}
	var prev valueobjects.NodeID
	if p := str(nodeMap, "previousVersion"); p != "" {
		if prev, err = valueobjects.NewNodeIDFromString(p); err != nil {
			return nil, fmt.Errorf("invalid previous version: %w", err)
		}
	}
	buildVersion, _ := nodeMap["buildVersion"].(int64)

	node, err := entities.ReconstructNode(id, stable, int(buildVersion), body, prev,
		parseTime(str(nodeMap, "createdAt")), parseTime(str(nodeMap, "updatedAt")))
	if err != nil {
		return nil, err
	}

	rec := &aggregates.NodeRecord{Node: node}
	if rec.Children, err = idList(nodeMap["children"]); err != nil {
		return nil, err
	}
	if rec.Dependents, err = idList(row["dependents"]); err != nil {
		return nil, err
	}
	if rec.SubsequentVersions, err = idList(row["subsequent"]); err != nil {
		return nil, err
	}
	return rec, nil
}

// nodeQuery builds the pattern query for a NodeFilter.
func nodeQuery(filter ports.NodeFilter) (string, map[string]any) {
	var where []string
	params := map[string]any{}

	if filter.StableIDPrefix != "" {
		where = append(where, "n.stableId STARTS WITH $prefix")
		params["prefix"] = filter.StableIDPrefix
	}
	if len(filter.AuthorIDs) > 0 {
		where = append(where, "n.authorId IN $authors")
		params["authors"] = filter.AuthorIDs
	}
	switch filter.Status {
	case ports.StatusDraft:
		where = append(where, "n.buildVersion < 0")
	case ports.StatusPublished:
		where = append(where, "n.buildVersion >= 0")
	}
	if filter.RootsOnly {
		where = append(where, "NOT ( (:ArgumentNode)-[:LINKS_TO]->(n) )")
	}
	if !filter.MajorVersion.IsZero() {
		where = append(where, "n.majorVersion = $majorVersion")
		params["majorVersion"] = filter.MajorVersion.String()
	}

	var q strings.Builder
	q.WriteString("MATCH (n:ArgumentNode)")
	if len(where) > 0 {
		q.WriteString("\nWHERE ")
		q.WriteString(strings.Join(where, " AND "))
	}
	q.WriteString("\nWITH n ORDER BY n.createdAt")
	if filter.Limit > 0 {
		q.WriteString(" LIMIT $limit")
		params["limit"] = int64(filter.Limit)
	}
	q.WriteString(recordProjection)
	return q.String(), params
}

// bodyQuery builds the title search for a BodyFilter.
func bodyQuery(filter ports.BodyFilter) (string, map[string]any) {
	where := []string{
		"b.titleLower CONTAINS $needle",
		"(b.public OR b.authorId IN $viewer)",
	}
	params := map[string]any{
		"needle": strings.ToLower(filter.TitleContains),
		"viewer": append([]string{}, filter.ViewerAuthorIDs...),
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = k.String()
		}
		where = append(where, "b.kind IN $kinds")
		params["kinds"] = kinds
	}

	q := "MATCH (b:ArgumentBody)\nWHERE " + strings.Join(where, " AND ") +
		"\nRETURN b {.*} AS body ORDER BY b.createdAt"
	if filter.Limit > 0 {
		q += " LIMIT $limit"
		params["limit"] = int64(filter.Limit)
	}
	return q, params
}

func idList(v any) ([]valueobjects.NodeID, error) {
	var raw []string
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		raw = list
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	default:
		return nil, fmt.Errorf("unexpected id list type %T", v)
	}

	ids := make([]valueobjects.NodeID, 0, len(raw))
	for _, s := range raw {
		id, err := valueobjects.NewNodeIDFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
