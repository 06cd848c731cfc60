package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"truckplanner/internal/planapi"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "TP-API-4000"

	switch {
	case status == http.StatusBadGateway:
		// Backend failures carry the same text the status line shows.
		return apiError{Code: "TP-API-5020", Message: "Error: " + planapi.Message(err)}
	case status == http.StatusGatewayTimeout:
		return apiError{Code: "TP-API-5040", Message: "Planning backend timed out. Retry shortly."}
	case status == http.StatusServiceUnavailable:
		return apiError{Code: "TP-API-5030", Message: "Headless runs are unavailable: Temporal is not configured."}
	case status >= 500:
		return apiError{Code: "TP-API-5000", Message: "Internal server error. Please retry or check service logs."}
	case status == http.StatusBadRequest:
		code = "TP-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "TP-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "TP-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "TP-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "invalid weight config"):
			msg = err.Error()
		case strings.Contains(low, "no file selected"):
			msg = "Select a file first."
		case strings.Contains(low, "has not been uploaded"):
			msg = "Upload the file first."
		case strings.Contains(low, "preview has not been generated"):
			msg = "Generate a preview first."
		case strings.Contains(low, "required columns are missing"):
			msg = "The file is missing required columns."
		case strings.Contains(low, "superseded"):
			msg = "A newer file was selected."
		case strings.Contains(low, "unknown configuration field"), strings.Contains(low, "is not a number"), strings.Contains(low, "field is disabled"):
			msg = err.Error()
		case strings.Contains(low, "no file provided"):
			msg = "No spreadsheet file was provided."
		case strings.Contains(low, "file_path is required"):
			msg = "file_path is required."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
