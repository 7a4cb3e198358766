package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

// HandleSuccess writes an operator API success envelope.
func HandleSuccess(w http.ResponseWriter, cmd string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.SuccessResponse(cmd, data))
}

// HandleError checks the error type and sends an appropriate response
func HandleError(w http.ResponseWriter, cmd string, err error) {
	var statusCode int
	var errorMsg string

	var apiErr responses.APIError
	if errors.As(err, &apiErr) {
		statusCode = apiErr.StatusCode()
		errorMsg = apiErr.Error()
	} else {
		// Default to internal server error if not a custom API error
		statusCode = http.StatusInternalServerError
		errorMsg = "Internal Server Error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse(cmd, errorMsg))
}
