package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

func TestCategoryID_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      types.CategoryID
		wantErr bool
	}{
		{"valid lowercase", "pothole", false},
		{"valid underscore", "broken_streetlight", false},
		{"valid hyphen", "illegal-graffiti", false},
		{"valid with numbers", "zone-12", false},
		{"empty", "", true},
		{"uppercase", "Pothole", true},
		{"spaces", "broken light", true},
		{"starting with hyphen", "-pothole", true},
		{"ending with underscore", "pothole_", true},
		{"double hyphen", "icy--street", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("CategoryID.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDepartmentID_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      types.DepartmentID
		wantErr bool
	}{
		{"valid hyphen", "public-works", false},
		{"valid single word", "parks", false},
		{"empty", "", true},
		{"uppercase", "Public-Works", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("DepartmentID.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIssueID_Validate(t *testing.T) {
	gt.NoError(t, types.NewIssueID().Validate())
	gt.Error(t, types.IssueID("").Validate())
	gt.Error(t, types.IssueID("not-a-uuid").Validate())
}

func TestNewIssueID_Unique(t *testing.T) {
	gt.Value(t, types.NewIssueID()).NotEqual(types.NewIssueID())
}

func TestQuestionType(t *testing.T) {
	qt, err := types.ParseQuestionType("choice")
	gt.NoError(t, err).Required()
	gt.V(t, qt).Equal(types.QuestionTypeChoice)

	_, err = types.ParseQuestionType("Choice")
	gt.Error(t, err)
	_, err = types.ParseQuestionType("")
	gt.Error(t, err)
}
