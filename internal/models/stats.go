package models

// UsageStats summarizes an owner's footprint in the catalog.
type UsageStats struct {
	OwnerID      int64
	Artifacts    int64
	BytesUsed    int64
	Downloads7d  int64
	Downloads30d int64
}
