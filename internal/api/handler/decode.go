package handler

import (
	"encoding/json"
	"net/http"

	"code_dojo/internal/common"
)

// Bodies carry at most one source file plus a little metadata.
const maxBodyBytes = common.MaxSourceBytes + 16*1024

// decodeJSON reads r's body into dst, writing a 400 and returning false when
// the body is too large or not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}
