package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

func TestIssueStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status types.IssueStatus
		want   bool
	}{
		{name: "open", status: types.IssueStatusOpen, want: true},
		{name: "in progress", status: types.IssueStatusInProgress, want: true},
		{name: "resolved", status: types.IssueStatusResolved, want: true},
		{name: "display name is not a status", status: types.IssueStatus("In Progress"), want: false},
		{name: "empty", status: types.IssueStatus(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.status.IsValid()).True()
			} else {
				gt.B(t, tt.status.IsValid()).False()
			}
		})
	}
}

func TestIssueStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from types.IssueStatus
		to   types.IssueStatus
		want bool
	}{
		{types.IssueStatusOpen, types.IssueStatusOpen, true},
		{types.IssueStatusOpen, types.IssueStatusInProgress, true},
		{types.IssueStatusOpen, types.IssueStatusResolved, true},
		{types.IssueStatusInProgress, types.IssueStatusInProgress, true},
		{types.IssueStatusInProgress, types.IssueStatusResolved, true},
		{types.IssueStatusResolved, types.IssueStatusResolved, true},
		{types.IssueStatusInProgress, types.IssueStatusOpen, false},
		{types.IssueStatusResolved, types.IssueStatusOpen, false},
		{types.IssueStatusResolved, types.IssueStatusInProgress, false},
		{types.IssueStatusOpen, types.IssueStatus("closed"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			gt.V(t, tt.from.CanTransitionTo(tt.to)).Equal(tt.want)
		})
	}
}

func TestParseIssueStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.IssueStatus
		wantErr bool
	}{
		{name: "open", input: "open", want: types.IssueStatusOpen},
		{name: "in_progress", input: "in_progress", want: types.IssueStatusInProgress},
		{name: "resolved", input: "resolved", want: types.IssueStatusResolved},
		{name: "uppercase", input: "OPEN", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseIssueStatus(tt.input)
			if tt.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
				gt.V(t, got).Equal(tt.want)
			}
		})
	}
}
