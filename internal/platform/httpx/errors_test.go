package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"validation", shared.Validation("create journal", "unbalanced"), http.StatusBadRequest, "Validation Failed"},
		{"state", shared.State("void journal", "posted"), http.StatusConflict, "Invalid State"},
		{"conflict", shared.Conflict("initialize chart", "exists"), http.StatusConflict, "Conflict"},
		{"not found", shared.NotFound("get account", "account 7"), http.StatusNotFound, "Not Found"},
		{"bad request", fmt.Errorf("decode: %w", ErrBadRequest), http.StatusBadRequest, "Validation Failed"},
		{"storage", shared.Storage("post journal", errors.New("conn reset")), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)
			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.title, body.Title)
			if tc.status == http.StatusInternalServerError {
				assert.Empty(t, body.Detail)
			}
		})
	}
}
