package domain

// CategoryDescriptor names a field the user may group or color charts by.
type CategoryDescriptor struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
