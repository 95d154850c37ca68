package interfaces

import "github.com/secmon-lab/citypulse/pkg/domain/types"

// ListIssueOption is a functional option for filtering issues in List
type ListIssueOption func(*listIssueConfig)

type listIssueConfig struct {
	status   *types.IssueStatus
	category *types.CategoryID
}

// WithStatus filters issues by status
func WithStatus(status types.IssueStatus) ListIssueOption {
	return func(c *listIssueConfig) {
		c.status = &status
	}
}

// WithCategory filters issues by classification category
func WithCategory(category types.CategoryID) ListIssueOption {
	return func(c *listIssueConfig) {
		c.category = &category
	}
}

// BuildListIssueConfig builds a listIssueConfig from options
func BuildListIssueConfig(opts ...ListIssueOption) *listIssueConfig {
	cfg := &listIssueConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Status returns the status filter value, or nil if not set
func (c *listIssueConfig) Status() *types.IssueStatus {
	return c.status
}

// Category returns the category filter value, or nil if not set
func (c *listIssueConfig) Category() *types.CategoryID {
	return c.category
}
