package apis

const (
	// HTTP Response Fields
	LastModified = "Last-Modified"

	// Self-defined Fields
	Filter = "filter"
)
