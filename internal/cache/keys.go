package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func AnalysisKey(tenantID uuid.UUID, fingerprint string) string {
	return fmt.Sprintf("analysis:%s:%s", tenantID, fingerprint)
}

func SchemaKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("schema:%s", tenantID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
