package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Priority ranks how important it is to cover a sub-category
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is high, medium or low
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ParsePriority normalises a priority string (case-insensitive)
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown priority %q (want high, medium or low)", ErrInvalidInput, s)
	}
	return p, nil
}

// SubCategory is an atomic testable unit of policy behavior and the unit of coverage measurement
type SubCategory struct {
	ID             string   `json:"id" yaml:"id" description:"Stable identifier such as SC001"`
	Name           string   `json:"name" yaml:"name" description:"Short human-readable name"`
	Description    string   `json:"description" yaml:"description" description:"What behavior this sub-category tests"`
	ParentCategory string   `json:"parent_category" yaml:"parent_category" description:"Top-level category this belongs to"`
	RelatedRuleIDs []string `json:"related_rule_ids" yaml:"related_rule_ids" description:"Rule ids this sub-category exercises"`
	Priority       Priority `json:"priority" yaml:"priority" description:"high, medium or low"`
}

// SubCategoryTaxonomy is the ordered set of sub-categories for a policy.
// It is treated as immutable: edits return a new taxonomy.
type SubCategoryTaxonomy struct {
	SubCategories []SubCategory `json:"sub_categories" yaml:"sub_categories"`
	Reasoning     string        `json:"reasoning" yaml:"reasoning"`
	RetiredIDs    []string      `json:"retired_ids,omitempty" yaml:"retired_ids,omitempty"`
}

// NewTaxonomy builds a taxonomy, keeping the first occurrence of every id.
// Dropped duplicates are returned as anomalies for the caller to log.
func NewTaxonomy(subs []SubCategory, reasoning string) (SubCategoryTaxonomy, []Anomaly) {
	var anomalies []Anomaly
	seen := make(map[string]bool, len(subs))
	kept := make([]SubCategory, 0, len(subs))

	for _, sc := range subs {
		if seen[sc.ID] {
			anomalies = append(anomalies, Anomaly{
				Kind:    AnomalyDuplicateSubCategory,
				Subject: sc.ID,
				Detail:  fmt.Sprintf("dropped %q, kept first occurrence", sc.Name),
			})
			continue
		}
		seen[sc.ID] = true
		kept = append(kept, cloneSubCategory(sc))
	}

	return SubCategoryTaxonomy{SubCategories: kept, Reasoning: reasoning}, anomalies
}

// Len returns the number of sub-categories
func (t SubCategoryTaxonomy) Len() int {
	return len(t.SubCategories)
}

// Lookup returns the sub-category with the given id
func (t SubCategoryTaxonomy) Lookup(id string) (SubCategory, bool) {
	for _, sc := range t.SubCategories {
		if sc.ID == id {
			return sc, true
		}
	}
	return SubCategory{}, false
}

// IDs returns sub-category ids in taxonomy order
func (t SubCategoryTaxonomy) IDs() []string {
	ids := make([]string, len(t.SubCategories))
	for i, sc := range t.SubCategories {
		ids[i] = sc.ID
	}
	return ids
}

// Order maps every sub-category id to its taxonomy position
func (t SubCategoryTaxonomy) Order() map[string]int {
	order := make(map[string]int, len(t.SubCategories))
	for i, sc := range t.SubCategories {
		order[sc.ID] = i
	}
	return order
}

// NextID returns the next free "SCnnn" id. Ids of removed sub-categories are
// never handed out again.
func (t SubCategoryTaxonomy) NextID() string {
	highest := 0
	consider := func(id string) {
		if !strings.HasPrefix(id, "SC") {
			return
		}
		if n, err := strconv.Atoi(id[2:]); err == nil && n > highest {
			highest = n
		}
	}
	for _, sc := range t.SubCategories {
		consider(sc.ID)
	}
	for _, id := range t.RetiredIDs {
		consider(id)
	}
	return fmt.Sprintf("SC%03d", highest+1)
}

// WithSubCategory returns a copy with sc appended. An empty id is assigned via NextID.
func (t SubCategoryTaxonomy) WithSubCategory(sc SubCategory) (SubCategoryTaxonomy, error) {
	if sc.ID == "" {
		sc.ID = t.NextID()
	}
	if _, exists := t.Lookup(sc.ID); exists {
		return t, fmt.Errorf("%w: sub-category %s already exists", ErrInvalidInput, sc.ID)
	}
	for _, retired := range t.RetiredIDs {
		if retired == sc.ID {
			return t, fmt.Errorf("%w: sub-category id %s was retired", ErrInvalidInput, sc.ID)
		}
	}
	if sc.Priority == "" {
		sc.Priority = PriorityMedium
	}
	if !sc.Priority.Valid() {
		return t, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, sc.Priority)
	}

	out := t.Clone()
	out.SubCategories = append(out.SubCategories, cloneSubCategory(sc))
	return out, nil
}

// WithoutSubCategory returns a copy with the sub-category removed and its id retired
func (t SubCategoryTaxonomy) WithoutSubCategory(id string) (SubCategoryTaxonomy, error) {
	if _, ok := t.Lookup(id); !ok {
		return t, fmt.Errorf("%w: unknown sub-category %s", ErrInvalidInput, id)
	}

	out := t.Clone()
	kept := out.SubCategories[:0]
	for _, sc := range out.SubCategories {
		if sc.ID != id {
			kept = append(kept, sc)
		}
	}
	out.SubCategories = kept
	out.RetiredIDs = append(out.RetiredIDs, id)
	return out, nil
}

// WithRenamed returns a copy with the sub-category's name replaced
func (t SubCategoryTaxonomy) WithRenamed(id, name string) (SubCategoryTaxonomy, error) {
	if strings.TrimSpace(name) == "" {
		return t, fmt.Errorf("%w: empty name for %s", ErrInvalidInput, id)
	}
	return t.update(id, func(sc *SubCategory) { sc.Name = name })
}

// WithPriority returns a copy with the sub-category's priority replaced
func (t SubCategoryTaxonomy) WithPriority(id string, p Priority) (SubCategoryTaxonomy, error) {
	if !p.Valid() {
		return t, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, p)
	}
	return t.update(id, func(sc *SubCategory) { sc.Priority = p })
}

// Clone returns a deep copy of the taxonomy
func (t SubCategoryTaxonomy) Clone() SubCategoryTaxonomy {
	out := SubCategoryTaxonomy{
		SubCategories: make([]SubCategory, len(t.SubCategories)),
		Reasoning:     t.Reasoning,
		RetiredIDs:    cloneStrings(t.RetiredIDs),
	}
	for i, sc := range t.SubCategories {
		out.SubCategories[i] = cloneSubCategory(sc)
	}
	return out
}

func (t SubCategoryTaxonomy) update(id string, fn func(*SubCategory)) (SubCategoryTaxonomy, error) {
	out := t.Clone()
	for i := range out.SubCategories {
		if out.SubCategories[i].ID == id {
			fn(&out.SubCategories[i])
			return out, nil
		}
	}
	return t, fmt.Errorf("%w: unknown sub-category %s", ErrInvalidInput, id)
}

func cloneSubCategory(sc SubCategory) SubCategory {
	sc.RelatedRuleIDs = cloneStrings(sc.RelatedRuleIDs)
	return sc
}
