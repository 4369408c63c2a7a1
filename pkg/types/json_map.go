package types

// JSONMap stores loosely-structured metadata as a jsonb column via the
// gorm json serializer.
type JSONMap map[string]any
