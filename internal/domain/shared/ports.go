package shared

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	// GenerateID generates a new unique ID.
	GenerateID() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

// GenerateID calls f.
func (f IDFunc) GenerateID() string { return f() }

// FeatureGate answers per-user feature toggles.
type FeatureGate interface {
	IsEnabledFor(name, userID string) bool
}

// AllFeatures enables everything. Used when no gate is configured.
type AllFeatures struct{}

// IsEnabledFor implements FeatureGate.
func (AllFeatures) IsEnabledFor(string, string) bool { return true }
