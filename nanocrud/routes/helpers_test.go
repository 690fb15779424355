package routes

import (
	"net/http/httptest"

	"github.com/google/uuid"
)

func uuidFrom(w *httptest.ResponseRecorder) (uuid.UUID, error) {
	return uuid.Parse(w.Header().Get(RequestIDHeader))
}
