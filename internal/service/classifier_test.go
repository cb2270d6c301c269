package service

import (
	"testing"

	"cvrbackend/internal/model"
)

func TestKeywordClassifier(t *testing.T) {
	classifier := NewKeywordClassifier()

	tests := []struct {
		description string
		want        string
	}{
		{"Cable and Joint Supplies", model.CategoryMaterial},
		{"Concrete pour - section 4", model.CategoryMaterial},
		{"Site wages week 32", model.CategoryLabour},
		{"Overtime payroll adjustment", model.CategoryLabour},
		{"Excavator hire 2 weeks", model.CategoryPlantMachinery},
		{"Equipment rental", model.CategoryPlantMachinery},
		{"Groundworks sub-contractor", model.CategorySubcontractor},
		{"Fuel and mileage claims", model.CategoryOverheads},
		{"Office rent", model.CategoryOverheads},
		{"", model.CategoryOverheads},
		{"  MATERIALS DELIVERY  ", model.CategoryMaterial},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := classifier.Categorize(tt.description); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.description, got, tt.want)
			}
		})
	}
}

func TestKeywordClassifierRuleOrder(t *testing.T) {
	classifier := NewKeywordClassifier()

	// "material" outranks "hire" when both keywords appear.
	if got := classifier.Categorize("material hire charge"); got != model.CategoryMaterial {
		t.Errorf("Categorize overlapping keywords = %q, want %q", got, model.CategoryMaterial)
	}
}

func TestAggregationMatcher(t *testing.T) {
	matcher := DefaultUpdateRules().Matcher()

	tests := []struct {
		description string
		want        string
	}{
		{"Materials - Drainage", "material"},
		{"LAB costs March", "labour"},
		{"Equipment servicing", "plant"},
		{"Subcontract - earthworks", "subcontract"},
		{"Insurance premium", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := matcher.Categorize(tt.description); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}
