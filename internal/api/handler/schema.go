package handler

import (
	"net/http"

	"github.com/arjunms/sqlscope/internal/analysis"
	"github.com/arjunms/sqlscope/internal/api/response"
)

// NewSchemaTablesHandler returns an http.HandlerFunc for GET /api/v1/schema/tables.
// source is nil when no target database is configured.
func NewSchemaTablesHandler(source analysis.SchemaSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			response.Error(w, http.StatusServiceUnavailable, "NO_TARGET_DATABASE",
				"No target database configured for schema introspection", nil)
			return
		}

		catalog, err := source.Catalog(r.Context())
		if err != nil {
			response.Error(w, http.StatusBadGateway, "TARGET_DATABASE_ERROR",
				"Failed to introspect the target database schema", nil)
			return
		}

		response.JSON(w, map[string]any{
			"table_count": len(catalog),
			"tables":      catalog,
		})
	}
}
