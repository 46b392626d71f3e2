package model

import (
	"strings"
	"time"
)

// Asset is a removable/trackable workpiece record keyed by assetId, tagged
// with deviceUuid, type, timestamp, and a removed flag (spec.md §3).
type Asset struct {
	AssetID    string
	DeviceUUID string
	Type       string
	Timestamp  time.Time
	Removed    bool
	Body       *Entity // the asset's own typed payload (tool, part, etc.)
}

// RewriteAssetID applies spec.md §3's rule that asset ids beginning with
// "@" are rewritten by prepending the device uuid, mirroring the teacher's
// ingest-boundary string rewriting discipline (internal/ingest/pipeline.go
// archiveRaw).
func RewriteAssetID(assetID, deviceUUID string) string {
	if strings.HasPrefix(assetID, "@") {
		return deviceUUID + strings.TrimPrefix(assetID, "@")
	}
	return assetID
}
