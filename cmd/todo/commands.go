package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/td0m/tasklists/pkg/dateinput"
	"github.com/td0m/tasklists/pkg/session"
	"github.com/td0m/tasklists/pkg/task"
)

func (c *cli) listsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Show the task lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(s *session.Session) error {
				store := s.Snapshot()
				for i, l := range store.Lists() {
					open := 0
					for _, t := range store.TasksOf(l.ID) {
						if !t.Completed && !t.Deleted() {
							open++
						}
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (%s) %d open\n", i+1, l.Title, l.ThemeColor, open)
				}
				return nil
			})
		},
	}
}

func (c *cli) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [list]",
		Short: "Show the tasks of a list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := c.list
			if len(args) == 1 {
				ref = args[0]
			}
			return c.run(cmd, func(s *session.Session) error {
				store := s.Snapshot()
				l, err := resolveList(store, s.Selected(), ref)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, l.Title)
				now := time.Now()
				for i, t := range store.TasksOf(l.ID) {
					mark := " "
					if t.Completed {
						mark = "x"
					}
					line := fmt.Sprintf("%d. [%s] %s", i+1, mark, t.Title)
					if t.DueAt != nil {
						line += " (" + dateinput.Describe(*t.DueAt, now) + ")"
					}
					if t.Deleted() {
						line += " (deleted)"
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a task at the end of a list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(s *session.Session) error {
				l, err := resolveList(s.Snapshot(), s.Selected(), c.list)
				if err != nil {
					return err
				}
				if _, err := s.CreateTask(l.ID, strings.Join(args, " ")); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added to %s\n", l.Title)
				return nil
			})
		},
	}
}

// onTask runs fn with the task at the position given by the first argument
func (c *cli) onTask(cmd *cobra.Command, ref string, fn func(s *session.Session, l task.List, id task.ID, index int) error) error {
	return c.run(cmd, func(s *session.Session) error {
		l, err := resolveList(s.Snapshot(), s.Selected(), c.list)
		if err != nil {
			return err
		}
		id, index, err := resolveTask(l, ref)
		if err != nil {
			return err
		}
		return fn(s, l, id, index)
	})
}

func (c *cli) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <n>",
		Short: "Toggle whether a task is completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.onTask(cmd, args[0], func(s *session.Session, _ task.List, id task.ID, _ int) error {
				return s.ToggleTask(id)
			})
		},
	}
}

func (c *cli) dueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due <n> <when...>",
		Short: "Set the due date of a task, \"none\" clears it",
		Example: `  todo due 2 tomorrow
  todo due 3 in 2 weeks
  todo due 1 none`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := strings.Join(args[1:], " ")
			var due *time.Time
			if when != "none" {
				t, ok := dateinput.Parse(when, time.Now())
				if !ok {
					return fmt.Errorf("cannot read %q as a date", when)
				}
				due = &t
			}
			return c.onTask(cmd, args[0], func(s *session.Session, _ task.List, id task.ID, _ int) error {
				return s.UpdateTask(id, session.Due(due))
			})
		},
	}
}

func (c *cli) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <n> <title...>",
		Short: "Rename a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.onTask(cmd, args[0], func(s *session.Session, _ task.List, id task.ID, _ int) error {
				return s.UpdateTask(id, session.Title(strings.Join(args[1:], " ")))
			})
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "rm <n>",
		Short: "Delete a task",
		Long: `Delete a task. It stays visible in open terminals for a moment and is
removed for good once the grace period is over, by this command with --wait
or by the next process that loads the tasks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.onTask(cmd, args[0], func(s *session.Session, _ task.List, id task.ID, _ int) error {
				gone := make(chan struct{})
				var once sync.Once
				unsubscribe := s.Subscribe(func() {
					if _, ok := s.Snapshot().Task(id); !ok {
						once.Do(func() { close(gone) })
					}
				})
				defer unsubscribe()
				if err := s.DeleteTask(id); err != nil {
					return err
				}
				if !wait {
					return nil
				}
				select {
				case <-gone:
				case <-time.After(removalTimeout(c.grace)):
					return fmt.Errorf("task %s was not removed in time", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until the task is gone for good")
	return cmd
}

func (c *cli) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <n> <position>",
		Short: "Move a task to another position in its list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			return c.onTask(cmd, args[0], func(s *session.Session, l task.List, id task.ID, index int) error {
				if position < 1 || position > len(l.TasksSortIndex) {
					return fmt.Errorf("position %d is out of range", position)
				}
				return s.MoveTask(id, moveIndex(index, position))
			})
		},
	}
}

func (c *cli) mklistCmd() *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "mklist [title...]",
		Short: "Create a task list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(s *session.Session) error {
				id, err := s.CreateTaskList(strings.Join(args, " "), task.Color(color))
				if err != nil {
					return err
				}
				l, _ := s.Snapshot().List(id)
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", l.Title, l.ThemeColor)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "theme color, unused colors are picked at random")
	return cmd
}

func (c *cli) rmlistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmlist <list>",
		Short: "Delete a task list together with its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(s *session.Session) error {
				l, err := resolveList(s.Snapshot(), s.Selected(), args[0])
				if err != nil {
					return err
				}
				return s.DeleteTaskList(l.ID)
			})
		},
	}
}

func (c *cli) mvlistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mvlist <list> <position>",
		Short: "Move a task list to another position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			return c.run(cmd, func(s *session.Session) error {
				l, err := resolveList(s.Snapshot(), s.Selected(), args[0])
				if err != nil {
					return err
				}
				if err := s.PlaceTaskList(l.ID, position-1); err != nil {
					return fmt.Errorf("position %d: %w", position, err)
				}
				return nil
			})
		},
	}
}

func (c *cli) editlistCmd() *cobra.Command {
	var (
		title string
		color string
	)
	cmd := &cobra.Command{
		Use:   "editlist <list>",
		Short: "Change the title or color of a task list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits := []session.ListEdit{}
			if cmd.Flags().Changed("title") {
				edits = append(edits, session.ListTitle(title))
			}
			if cmd.Flags().Changed("color") {
				edits = append(edits, session.ListColor(task.Color(color)))
			}
			if len(edits) == 0 {
				return fmt.Errorf("nothing to change, use --title or --color")
			}
			return c.run(cmd, func(s *session.Session) error {
				l, err := resolveList(s.Snapshot(), s.Selected(), args[0])
				if err != nil {
					return err
				}
				return s.UpdateTaskList(l.ID, edits...)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&color, "color", "", "new theme color")
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			bs, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(bs)
			return err
		},
	}
}
