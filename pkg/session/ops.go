package session

import (
	"time"

	"github.com/td0m/tasklists/pkg/task"
)

// TaskEdit is a single field change of a task
type TaskEdit func(task.ID) task.Command

func Title(title string) TaskEdit {
	return func(id task.ID) task.Command { return task.SetTitle{ID: id, Title: title} }
}

func Completed(done bool) TaskEdit {
	return func(id task.ID) task.Command { return task.SetCompleted{ID: id, Completed: done} }
}

// Due sets the due date, nil clears it
func Due(at *time.Time) TaskEdit {
	return func(id task.ID) task.Command { return task.SetDueAt{ID: id, DueAt: at} }
}

// ListEdit is a single field change of a list
type ListEdit func(task.ID) task.Command

func ListTitle(title string) ListEdit {
	return func(id task.ID) task.Command { return task.SetListTitle{ID: id, Title: title} }
}

func ListColor(c task.Color) ListEdit {
	return func(id task.ID) task.Command { return task.SetListColor{ID: id, Color: c} }
}

func NewTaskTitle(title string) ListEdit {
	return func(id task.ID) task.Command { return task.SetNewTaskTitle{ID: id, Title: title} }
}

func (s *Session) CreateTask(list task.ID, title string) (task.ID, error) {
	r, err := s.Dispatch(task.CreateTask{ListID: list, Title: title})
	return r.ID, err
}

// UpdateTask applies every edit or none of them
func (s *Session) UpdateTask(id task.ID, edits ...TaskEdit) error {
	cmds := make([]task.Command, len(edits))
	for i, e := range edits {
		cmds[i] = e(id)
	}
	_, err := s.Dispatch(cmds...)
	return err
}

func (s *Session) ToggleTask(id task.ID) error {
	_, err := s.Dispatch(task.ToggleCompleted{ID: id})
	return err
}

// DeleteTask soft deletes the task, it is gone for good after the grace
// period
func (s *Session) DeleteTask(id task.ID) error {
	_, err := s.Dispatch(task.SoftDeleteTask{ID: id})
	return err
}

func (s *Session) MoveTask(id task.ID, index int) error {
	_, err := s.Dispatch(task.MoveTask{ID: id, Index: index})
	return err
}

func (s *Session) TransferTask(id, list task.ID, index int) error {
	_, err := s.Dispatch(task.TransferTask{ID: id, ListID: list, Index: index})
	return err
}

// CreateTaskList appends a list and selects it. An empty color picks one
// that no other list uses.
func (s *Session) CreateTaskList(title string, color task.Color) (task.ID, error) {
	r, err := s.Dispatch(task.CreateList{Title: title, ThemeColor: color})
	if err != nil {
		return "", err
	}
	return r.ID, s.Select(r.ID)
}

func (s *Session) UpdateTaskList(id task.ID, edits ...ListEdit) error {
	cmds := make([]task.Command, len(edits))
	for i, e := range edits {
		cmds[i] = e(id)
	}
	_, err := s.Dispatch(cmds...)
	return err
}

func (s *Session) DeleteTaskList(id task.ID) error {
	_, err := s.Dispatch(task.SoftDeleteList{ID: id})
	return err
}

func (s *Session) MoveTaskList(id task.ID, index int) error {
	_, err := s.Dispatch(task.MoveList{ID: id, Index: index})
	return err
}

// PlaceTaskList moves a list to position among the visible lists
func (s *Session) PlaceTaskList(id task.ID, position int) error {
	_, err := s.Dispatch(task.PlaceList{ID: id, Position: position})
	return err
}
