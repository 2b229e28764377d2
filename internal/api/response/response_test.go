package response_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunms/sqlscope/internal/api/response"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestJSON_WrapsInDataEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	response.JSON(w, map[string]string{"status": "ok"})

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode(t, w)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
}

func TestCreated_Returns201(t *testing.T) {
	w := httptest.NewRecorder()
	response.Created(w, map[string]string{"id": "abc"})

	assert.Equal(t, 201, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"abc"`)
}

func TestCollection_IncludesMeta(t *testing.T) {
	w := httptest.NewRecorder()
	response.Collection(w, []string{"a", "b"}, response.PaginationMeta{
		Page:    1,
		Limit:   20,
		Total:   2,
		HasNext: false,
	})

	body := decode(t, w)
	assert.Len(t, body["data"], 2)

	meta := body["meta"].(map[string]any)
	assert.Equal(t, 1.0, meta["page"])
	assert.Equal(t, 2.0, meta["total"])
	assert.Equal(t, false, meta["has_next"])
}

func TestError_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, 404, "NOT_FOUND", "Analysis not found", map[string]string{"id": "x"})

	assert.Equal(t, 404, w.Code)

	body := decode(t, w)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
	assert.Equal(t, "Analysis not found", errObj["message"])
	assert.Equal(t, "x", errObj["details"].(map[string]any)["id"])
}

func TestError_OmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, 500, "INTERNAL_ERROR", "boom", nil)

	assert.NotContains(t, w.Body.String(), "details")
}
