package dynamodb

import (
	"fmt"
	"strings"
	"time"

	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
)

// Single-table key layout:
//
//	NODE#<id>          META                  node row, children inline
//	NODE#<child>       DEPENDENT#<parent>    reverse link
//	NODE#<previous>    SUBSEQUENT#<id>       lineage successor
//	BODY#<id>          META                  body row
//	COUNTER#BUILD_VERSION META               build version sequence
//
// GSI1 indexes node rows by LINEAGE#<stableId>; published versions sort as
// V#<buildVersion> and drafts as A#DRAFT#<createdAt>, so a descending query
// returns the newest published version first.
const (
	metaSK           = "META"
	dependentPrefix  = "DEPENDENT#"
	subsequentPrefix = "SUBSEQUENT#"
	counterPK        = "COUNTER#BUILD_VERSION"

	entityNode = "NODE"
	entityBody = "BODY"
)

func nodePK(id valueobjects.NodeID) string      { return "NODE#" + id.String() }
func bodyPK(id valueobjects.BodyID) string      { return "BODY#" + id.String() }
func lineagePK(id valueobjects.StableID) string { return "LINEAGE#" + id.String() }

func lineageSK(buildVersion int, createdAt time.Time) string {
	if buildVersion < 0 {
		return "A#DRAFT#" + createdAt.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("V#%010d", buildVersion)
}

type nodeItem struct {
	PK              string   `dynamodbav:"PK"`
	SK              string   `dynamodbav:"SK"`
	GSI1PK          string   `dynamodbav:"GSI1PK"`
	GSI1SK          string   `dynamodbav:"GSI1SK"`
	EntityType      string   `dynamodbav:"EntityType"`
	NodeID          string   `dynamodbav:"NodeID"`
	StableID        string   `dynamodbav:"StableID"`
	BuildVersion    int      `dynamodbav:"BuildVersion"`
	BodyID          string   `dynamodbav:"BodyID"`
	PreviousVersion string   `dynamodbav:"PreviousVersion,omitempty"`
	Children        []string `dynamodbav:"Children"`
	// AuthorID and MajorVersion are copied from the body for scan filters.
	AuthorID     string `dynamodbav:"AuthorID"`
	MajorVersion string `dynamodbav:"MajorVersion"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
}

type bodyItem struct {
	PK                   string `dynamodbav:"PK"`
	SK                   string `dynamodbav:"SK"`
	EntityType           string `dynamodbav:"EntityType"`
	BodyID               string `dynamodbav:"BodyID"`
	Kind                 string `dynamodbav:"Kind"`
	Title                string `dynamodbav:"Title"`
	TitleLower           string `dynamodbav:"TitleLower"`
	Qualifier            string `dynamodbav:"Qualifier,omitempty"`
	Text                 string `dynamodbav:"Text,omitempty"`
	URL                  string `dynamodbav:"URL,omitempty"`
	AuthorID             string `dynamodbav:"AuthorID"`
	MajorVersionBodyID   string `dynamodbav:"MajorVersionBodyID"`
	MajorVersionStableID string `dynamodbav:"MajorVersionStableID"`
	Public               bool   `dynamodbav:"Public"`
	CreatedAt            string `dynamodbav:"CreatedAt"`
}

// linkItem is a DEPENDENT# or SUBSEQUENT# row.
type linkItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	Target string `dynamodbav:"Target"`
}

func toNodeItem(node *entities.Node, children []valueobjects.NodeID) nodeItem {
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.String()
	}
	item := nodeItem{
		PK:           nodePK(node.ID()),
		SK:           metaSK,
		GSI1PK:       lineagePK(node.StableID()),
		GSI1SK:       lineageSK(node.BuildVersion(), node.CreatedAt()),
		EntityType:   entityNode,
		NodeID:       node.ID().String(),
		StableID:     node.StableID().String(),
		BuildVersion: node.BuildVersion(),
		BodyID:       node.Body().ID().String(),
		Children:     ids,
		AuthorID:     node.Body().AuthorID(),
		MajorVersion: node.Body().MajorVersion().StableID.String(),
		CreatedAt:    node.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:    node.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}
	if prev, ok := node.PreviousVersion(); ok {
		item.PreviousVersion = prev.String()
	}
	return item
}

func toBodyItem(b *entities.Body) bodyItem {
	c := b.Content()
	return bodyItem{
		PK:                   bodyPK(b.ID()),
		SK:                   metaSK,
		EntityType:           entityBody,
		BodyID:               b.ID().String(),
		Kind:                 b.Kind().String(),
		Title:                c.Title,
		TitleLower:           strings.ToLower(c.Title),
		Qualifier:            c.Qualifier,
		Text:                 c.Text,
		URL:                  c.URL,
		AuthorID:             b.AuthorID(),
		MajorVersionBodyID:   b.MajorVersion().BodyID.String(),
		MajorVersionStableID: b.MajorVersion().StableID.String(),
		Public:               b.IsPublic(),
		CreatedAt:            b.CreatedAt().UTC().Format(time.RFC3339Nano),
	}
}

func (i bodyItem) toBody() (*entities.Body, error) {
	id, err := valueobjects.NewBodyIDFromString(i.BodyID)
	if err != nil {
		return nil, fmt.Errorf("invalid body id %q: %w", i.BodyID, err)
	}
	kind, err := entities.ParseKind(i.Kind)
	if err != nil {
		return nil, err
	}
	mvBody, err := valueobjects.NewBodyIDFromString(i.MajorVersionBodyID)
	if err != nil {
		return nil, fmt.Errorf("invalid major version body id %q: %w", i.MajorVersionBodyID, err)
	}
	mvStable, err := valueobjects.NewStableIDFromString(i.MajorVersionStableID)
	if err != nil {
		return nil, fmt.Errorf("invalid major version stable id %q: %w", i.MajorVersionStableID, err)
	}
	return entities.ReconstructBody(
		id,
		kind,
		entities.Content{Title: i.Title, Qualifier: i.Qualifier, Text: i.Text, URL: i.URL},
		i.AuthorID,
		entities.MajorVersion{BodyID: mvBody, StableID: mvStable},
		i.Public,
		parseTime(i.CreatedAt),
	), nil
}

// toRecord assembles a NodeRecord from the node row, its body row and the
// DEPENDENT#/SUBSEQUENT# rows under the node's partition.
func (i nodeItem) toRecord(body *entities.Body, links []linkItem) (*aggregates.NodeRecord, error) {
	id, err := valueobjects.NewNodeIDFromString(i.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node id %q: %w", i.NodeID, err)
	}
	stable, err := valueobjects.NewStableIDFromString(i.StableID)
	if err != nil {
		return nil, fmt.Errorf("invalid stable id %q: %w", i.StableID, err)
	}
	var prev valueobjects.NodeID
	if i.PreviousVersion != "" {
		if prev, err = valueobjects.NewNodeIDFromString(i.PreviousVersion); err != nil {
			return nil, fmt.Errorf("invalid previous version %q: %w", i.PreviousVersion, err)
		}
	}

	node, err := entities.ReconstructNode(id, stable, i.BuildVersion, body, prev,
		parseTime(i.CreatedAt), parseTime(i.UpdatedAt))
	if err != nil {
		return nil, err
	}

	rec := &aggregates.NodeRecord{Node: node}
	if rec.Children, err = parseIDs(i.Children); err != nil {
		return nil, err
	}
	for _, l := range links {
		target, err := valueobjects.NewNodeIDFromString(l.Target)
		if err != nil {
			return nil, fmt.Errorf("invalid link target %q: %w", l.Target, err)
		}
		switch {
		case strings.HasPrefix(l.SK, dependentPrefix):
			rec.Dependents = append(rec.Dependents, target)
		case strings.HasPrefix(l.SK, subsequentPrefix):
			rec.SubsequentVersions = append(rec.SubsequentVersions, target)
		}
	}
	return rec, nil
}

func parseIDs(raw []string) ([]valueobjects.NodeID, error) {
	ids := make([]valueobjects.NodeID, 0, len(raw))
	for _, s := range raw {
		id, err := valueobjects.NewNodeIDFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid child id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
