package task

// Welcome is the store a first run starts with: a single list walking
// through what the app can do
func Welcome(env Env) Store {
	s := NewStore()
	l := s.appendList("Task lists feature tour", "", env)

	tour := []struct {
		title string
		done  bool
	}{
		{"Welcome 👋, thanks for giving task lists a try", true},
		{"Support multiple task lists", true},
		{"Reorder tasks with m, then j/k and enter", true},
		{"Move tasks between lists with t", true},
		{"Keep several terminals in sync", true},
		{"Soft delete with a short fade out", true},
		{"Set due dates with d", false},
		{"Create your own list with n", false},
	}
	for i, item := range tour {
		t := Task{
			ID:         env.NewID(),
			TaskListID: l.ID,
			Title:      item.title,
			Completed:  item.done,
			CreatedAt:  env.Now,
			UpdatedAt:  env.Now,
			SortKey:    sortKeyAt(env.Now) + float64(i),
		}
		s.Tasks[t.ID] = t
		l.TasksSortIndex = append(l.TasksSortIndex, t.ID)
	}
	s.TaskLists[l.ID] = l
	return s
}
