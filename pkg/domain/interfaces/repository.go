package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Issue() IssueRepository

	// Close releases backend resources
	Close() error
}
