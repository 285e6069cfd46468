package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/dataset-forge/internal/task"
)

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", task.ErrInvalidInput, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", task.ErrInvalidInput, paramName)
	}
	return id, nil
}

// getProjectID extracts the project ID path parameter.
func getProjectID(r *http.Request) (string, error) {
	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		return "", fmt.Errorf("%w: projectID is required", task.ErrInvalidInput)
	}
	return projectID, nil
}

// parseListQuery reads task_type, status, page and limit from the query
// string. Pagination is normalized by the store.
func parseListQuery(r *http.Request, projectID string) (task.ListQuery, error) {
	values := r.URL.Query()
	q := task.ListQuery{
		ProjectID: projectID,
		TaskType:  task.Type(values.Get("task_type")),
	}

	if s := values.Get("status"); s != "" {
		status, err := task.ParseStatus(s)
		if err != nil {
			return q, err
		}
		q.Status = &status
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &q.Page},
		{"limit", &q.Limit},
	} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, fmt.Errorf("%w: %s must be a positive integer", task.ErrInvalidInput, p.name)
		}
		*p.dst = n
	}
	return q, nil
}
