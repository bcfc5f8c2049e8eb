package models

// CategoryUncategorized is the canonical sentinel marking a transaction that
// still needs classification. NULL categories are not treated as eligible.
const CategoryUncategorized = "Uncategorized"

// File permissions
const (
	PermissionArtifactFile = 0644
	PermissionDirectory    = 0750
)
