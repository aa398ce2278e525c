package workflow

import (
	"fmt"
	"sort"
)

// Category identifies which approval chain a request follows
type Category string

const (
	CategoryLocalMission         Category = "local_mission"
	CategoryInternationalMission Category = "international_mission"
	CategoryLeave                Category = "leave"
)

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// StepDefinition is one position in an approval chain
type StepDefinition struct {
	Role              Role `json:"role"`
	RequiresSignature bool `json:"requires_signature"`
}

// Definition is the ordered approval chain for a category
type Definition struct {
	Category Category         `json:"category"`
	Steps    []StepDefinition `json:"steps"`
}

// Len returns the number of steps in the chain
func (d Definition) Len() int {
	return len(d.Steps)
}

var catalog = map[Category][]StepDefinition{
	CategoryLocalMission: {
		{Role: RoleHOD},
		{Role: RoleDean},
		{Role: RoleCampusAdmin, RequiresSignature: true},
		{Role: RoleFinancialManager},
	},
	CategoryInternationalMission: {
		{Role: RoleHOD},
		{Role: RoleDean},
		{Role: RoleCampusAdmin},
		{Role: RoleFinancialManager},
		{Role: RolePrincipal},
		{Role: RoleViceChancellor, RequiresSignature: true},
	},
	CategoryLeave: {
		{Role: RoleHOD},
		{Role: RoleDean},
		{Role: RoleHRManager, RequiresSignature: true},
	},
}

// DefinitionFor returns the approval chain for a category.
// The returned steps are a copy; callers may not alter the catalog.
func DefinitionFor(category Category) (Definition, error) {
	steps, ok := catalog[category]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return Definition{
		Category: category,
		Steps:    append([]StepDefinition(nil), steps...),
	}, nil
}

// Categories returns every category that has a definition, sorted
func Categories() []Category {
	out := make([]Category, 0, len(catalog))
	for c := range catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
