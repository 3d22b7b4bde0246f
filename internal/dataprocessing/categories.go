package dataprocessing

import "geodash/pkg/contracts/domain"

// EnumerateCategories lists the fields a chart may group or color by: every
// retained field except the derived location key and radius fields, in
// their original order.
func EnumerateCategories(retained []string) []domain.CategoryDescriptor {
	out := make([]domain.CategoryDescriptor, 0, len(retained))
	for _, f := range retained {
		if domain.IsDerivedField(f) {
			continue
		}
		out = append(out, domain.CategoryDescriptor{Label: f, Value: f})
	}
	return out
}
