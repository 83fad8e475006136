package handlers

import (
	"net/http"

	"prepstock-system/internal/serviceerr"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func statusFromErr(err error) int {
	switch serviceerr.KindOf(err) {
	case serviceerr.Unauthenticated:
		return http.StatusUnauthorized
	case serviceerr.Forbidden:
		return http.StatusForbidden
	case serviceerr.Invalid:
		return http.StatusBadRequest
	case serviceerr.NotFound:
		return http.StatusNotFound
	case serviceerr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
