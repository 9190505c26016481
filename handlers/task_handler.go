package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/taskboard/app"
	"github.com/upb/taskboard/middleware"
	"github.com/upb/taskboard/services"
	"github.com/upb/taskboard/utils"
)

// principalID pulls the authenticated account id out of the request context.
// The auth middleware guarantees it on these routes; a nil principal here
// means a wiring bug, answered as unauthenticated rather than a panic.
func principalID(r *http.Request) (uuid.UUID, bool) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil {
		return uuid.Nil, false
	}
	return p.UserID, true
}

// taskID parses the {id} URL parameter
func taskID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// decodeTaskInput decodes and validates a task request body
func decodeTaskInput(r *http.Request) (services.TaskInput, error) {
	var input services.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		return input, err
	}
	return input, utils.ValidateStruct(input)
}

// writeTaskInputError writes a 400 with per-field details when available
func writeTaskInputError(w http.ResponseWriter, err error) {
	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		_ = utils.WriteBadRequest(w, validationErr.Message, validationErr.Details())
		return
	}
	_ = utils.WriteBadRequest(w, "Invalid request body", nil)
}

// ListTasksHandler lists the principal's tasks
func ListTasksHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalID(r)
		if !ok {
			_ = utils.WriteUnauthorized(w, "Not authorized")
			return
		}

		tasks, err := deps.Tasks.List(r.Context(), principal)
		if err != nil {
			writeDomainError(w, deps.Logger, err)
			return
		}

		_ = utils.WriteOKCount(w, len(tasks), tasks)
	}
}

// CreateTaskHandler creates a task owned by the principal
func CreateTaskHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalID(r)
		if !ok {
			_ = utils.WriteUnauthorized(w, "Not authorized")
			return
		}

		input, err := decodeTaskInput(r)
		if err != nil {
			writeTaskInputError(w, err)
			return
		}

		task, err := deps.Tasks.Create(r.Context(), principal, input)
		if err != nil {
			writeDomainError(w, deps.Logger, err)
			return
		}

		_ = utils.WriteCreated(w, task)
	}
}

// GetTaskHandler returns a single task after the ownership check
func GetTaskHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalID(r)
		if !ok {
			_ = utils.WriteUnauthorized(w, "Not authorized")
			return
		}

		id, err := taskID(r)
		if err != nil {
			_ = utils.WriteNotFound(w, "Task not found")
			return
		}

		task, err := deps.Tasks.Get(r.Context(), principal, id)
		if err != nil {
			writeDomainError(w, deps.Logger, err)
			return
		}

		_ = utils.WriteOK(w, task)
	}
}

// UpdateTaskHandler updates a task after the ownership check
func UpdateTaskHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalID(r)
		if !ok {
			_ = utils.WriteUnauthorized(w, "Not authorized")
			return
		}

		id, err := taskID(r)
		if err != nil {
			_ = utils.WriteNotFound(w, "Task not found")
			return
		}

		input, err := decodeTaskInput(r)
		if err != nil {
			writeTaskInputError(w, err)
			return
		}

		task, err := deps.Tasks.Update(r.Context(), principal, id, input)
		if err != nil {
			writeDomainError(w, deps.Logger, err)
			return
		}

		_ = utils.WriteOK(w, task)
	}
}

// DeleteTaskHandler deletes a task after the ownership check
func DeleteTaskHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalID(r)
		if !ok {
			_ = utils.WriteUnauthorized(w, "Not authorized")
			return
		}

		id, err := taskID(r)
		if err != nil {
			_ = utils.WriteNotFound(w, "Task not found")
			return
		}

		if err := deps.Tasks.Delete(r.Context(), principal, id); err != nil {
			writeDomainError(w, deps.Logger, err)
			return
		}

		_ = utils.WriteOK(w, struct{}{})
	}
}
