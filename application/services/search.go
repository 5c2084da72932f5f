package services

import (
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
)

// DedupByMajorVersion keeps the first body of every major version and drops
// later ones, preserving the input order.
func DedupByMajorVersion(bodies []*entities.Body) []*entities.Body {
	seen := make(map[valueobjects.StableID]bool, len(bodies))
	out := make([]*entities.Body, 0, len(bodies))
	for _, b := range bodies {
		key := b.MajorVersion().StableID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

// FilterKinds keeps bodies of the given kinds. An empty kind list keeps none.
func FilterKinds(bodies []*entities.Body, kinds []entities.Kind) []*entities.Body {
	if len(kinds) == 0 {
		return []*entities.Body{}
	}
	allowed := make(map[entities.Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	out := make([]*entities.Body, 0, len(bodies))
	for _, b := range bodies {
		if allowed[b.Kind()] {
			out = append(out, b)
		}
	}
	return out
}
