package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Update is a partial update of a task: only non-nil fields change.
type Update struct {
	Status         *Status         `json:"status,omitempty"`
	CompletedCount *int            `json:"completed_count,omitempty"`
	TotalCount     *int            `json:"total_count,omitempty"`
	Detail         json.RawMessage `json:"detail,omitempty"`
	Note           *string         `json:"note,omitempty"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Status == nil && u.CompletedCount == nil && u.TotalCount == nil &&
		u.Detail == nil && u.Note == nil && u.EndTime == nil
}

// Validate checks the update in isolation, without the current task state.
func (u Update) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: invalid status %d", ErrInvalidInput, *u.Status)
	}
	if u.CompletedCount != nil && *u.CompletedCount < 0 {
		return fmt.Errorf("%w: completed count cannot be negative", ErrInvalidInput)
	}
	if u.TotalCount != nil && *u.TotalCount < 0 {
		return fmt.Errorf("%w: total count cannot be negative", ErrInvalidInput)
	}
	if u.EndTime != nil && (u.Status == nil || !u.Status.IsTerminal()) {
		return fmt.Errorf("%w: end time can only be set with a terminal status", ErrInvalidInput)
	}
	return validRaw("detail", u.Detail)
}

// Apply applies u to t in place, enforcing the state machine:
//   - a terminal task accepts no update at all (ErrTaskTerminal);
//   - moving to a terminal status stamps EndTime with now unless the update
//     provides one, so EndTime is written exactly once;
//   - CompletedCount never decreases and never exceeds a known TotalCount.
//
// t is left untouched when an error is returned.
func Apply(t *Task, u Update, now time.Time) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: task %s is %s", ErrTaskTerminal, t.ID, t.Status)
	}
	if err := u.Validate(); err != nil {
		return err
	}

	next := *t
	if u.TotalCount != nil {
		next.TotalCount = *u.TotalCount
	}
	if u.CompletedCount != nil {
		if *u.CompletedCount < t.CompletedCount {
			return fmt.Errorf("%w: completed count cannot decrease from %d to %d",
				ErrInvalidInput, t.CompletedCount, *u.CompletedCount)
		}
		next.CompletedCount = *u.CompletedCount
	}
	if next.TotalCount > 0 && next.CompletedCount > next.TotalCount {
		return fmt.Errorf("%w: completed count %d exceeds total count %d",
			ErrInvalidInput, next.CompletedCount, next.TotalCount)
	}
	if u.Detail != nil {
		next.Detail = cloneRaw(u.Detail)
	}
	if u.Note != nil {
		next.Note = *u.Note
	}
	if u.Status != nil {
		next.Status = *u.Status
		if next.Status.IsTerminal() {
			end := now
			if u.EndTime != nil {
				end = *u.EndTime
			}
			end = end.UTC()
			next.EndTime = &end
		}
	}
	next.UpdatedAt = now.UTC()

	*t = next
	return nil
}

// CompleteUpdate transitions a task to Completed with total items processed.
// CompletedCount and TotalCount are both set to total, which backfills a
// TotalCount that was unknown at creation.
func CompleteUpdate(total int, detail json.RawMessage, note string) Update {
	status := StatusCompleted
	return Update{
		Status:         &status,
		CompletedCount: &total,
		TotalCount:     &total,
		Detail:         detail,
		Note:           &note,
	}
}

// FailUpdate transitions a task to Failed, preserving the reason in Note and
// Detail. Counters are left as the handler last reported them.
func FailUpdate(reason string) Update {
	status := StatusFailed
	detail, _ := json.Marshal(map[string]string{"error": reason})
	return Update{
		Status: &status,
		Detail: detail,
		Note:   &reason,
	}
}

// AbortUpdate transitions a task to Aborted. Its handler notices on its next
// progress write and stops scheduling new items.
func AbortUpdate(reason string) Update {
	status := StatusAborted
	if reason == "" {
		reason = "aborted"
	}
	return Update{
		Status: &status,
		Note:   &reason,
	}
}

// ProgressUpdate records item progress and a matching note.
func ProgressUpdate(completed, total int) Update {
	note := fmt.Sprintf("processed %d/%d", completed, total)
	return Update{
		CompletedCount: &completed,
		TotalCount:     &total,
		Note:           &note,
	}
}
