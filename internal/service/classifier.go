package service

import (
	"strings"

	"cvrbackend/internal/model"
)

// Categorizer maps a free-text cost description to an expense category.
// Two independent strategies implement this capability: the keyword
// classifier below (used when normalizing P&L lines) and the ledger
// aggregation matcher in the CVR update rules. They use different keyword
// sets and may disagree; both behaviors are intentional.
type Categorizer interface {
	Categorize(description string) string
}

type categoryRule struct {
	category string
	keywords []string
}

type keywordClassifier struct {
	rules    []categoryRule
	fallback string
}

// NewKeywordClassifier returns the default description classifier.
// Rule order matters: keyword sets overlap (e.g. "equipment" vs "hire") and
// the first matching category wins.
func NewKeywordClassifier() Categorizer {
	return &keywordClassifier{
		rules: []categoryRule{
			{model.CategoryMaterial, []string{"material", "cable", "pipe", "joint", "concrete", "aggregate", "sand", "cement"}},
			{model.CategoryLabour, []string{"wage", "salary", "labor", "labour", "staff", "payroll", "overtime"}},
			{model.CategoryPlantMachinery, []string{"plant", "machinery", "equipment", "hire", "rental", "excavator", "truck"}},
			{model.CategorySubcontractor, []string{"subcontractor", "sub-contractor", "contractor", "outsource"}},
			{model.CategoryOverheads, []string{"transport", "delivery", "fuel", "vehicle", "mileage"}},
		},
		fallback: model.CategoryOverheads,
	}
}

func (c *keywordClassifier) Categorize(description string) string {
	description = strings.ToLower(strings.TrimSpace(description))
	if description == "" {
		return c.fallback
	}

	for _, rule := range c.rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(description, keyword) {
				return rule.category
			}
		}
	}
	return c.fallback
}
