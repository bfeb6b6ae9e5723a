package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/td0m/tasklists/internal/config"
	"github.com/td0m/tasklists/internal/logging"
	"github.com/td0m/tasklists/pkg/session"
	"github.com/td0m/tasklists/pkg/task"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds what every command shares
type cli struct {
	configPath string
	list       string
	// grace of the last opened session
	grace time.Duration
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "todo",
		Short: "Manage task lists from the command line",
		Long: `Manage the task lists of the terminal app without opening it.

Lists are addressed by title or 1-based position, tasks by their 1-based
position in the list selected with --list.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config file")
	flags.String("dir", "", "directory tasks are stored in")
	flags.String("medium", config.MediumFile, "storage medium, file or sqlite")
	flags.String("key", config.DefaultKey, "storage key")
	flags.Duration("grace", task.GracePeriod, "delay before deleted records are removed for good")
	flags.Bool("debug", false, "log debug messages")
	flags.StringVarP(&c.list, "list", "l", "", "list title or position, the first list by default")

	root.AddCommand(
		c.listsCmd(),
		c.lsCmd(),
		c.addCmd(),
		c.doneCmd(),
		c.dueCmd(),
		c.renameCmd(),
		c.rmCmd(),
		c.mvCmd(),
		c.mklistCmd(),
		c.rmlistCmd(),
		c.mvlistCmd(),
		c.editlistCmd(),
		c.configCmd(),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(c.configPath, cmd.Flags())
	if err != nil {
		return cfg, err
	}
	// short lived, the next long running process compacts
	cfg.Compact = ""
	return cfg, nil
}

// run opens a session for the duration of fn
func (c *cli) run(cmd *cobra.Command, fn func(s *session.Session) error) error {
	cfg, err := c.load(cmd)
	if err != nil {
		return err
	}
	c.grace = cfg.Grace
	if c.grace <= 0 {
		c.grace = task.GracePeriod
	}
	log := logging.New(cmd.ErrOrStderr(), cfg.Debug)
	s, medium, err := cfg.Open(log)
	if err != nil {
		return err
	}
	defer medium.Close()
	defer s.Close()
	return fn(s)
}

// resolveList finds a live list by 1-based position or title. An empty ref
// is the selected list.
func resolveList(store task.Store, selected task.ID, ref string) (task.List, error) {
	lists := store.Lists()
	if ref == "" {
		l, ok := store.Current(selected)
		if !ok {
			return l, task.ErrListNotFound
		}
		return l, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(lists) {
			return task.List{}, fmt.Errorf("list %d: %w", n, task.ErrListNotFound)
		}
		return lists[n-1], nil
	}
	for _, l := range lists {
		if strings.EqualFold(l.Title, ref) {
			return l, nil
		}
	}
	return task.List{}, fmt.Errorf("list %q: %w", ref, task.ErrListNotFound)
}

// resolveTask returns the task at 1-based position ref of list l
func resolveTask(l task.List, ref string) (task.ID, int, error) {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return "", 0, fmt.Errorf("task position %q: %w", ref, err)
	}
	if n < 1 || n > len(l.TasksSortIndex) {
		return "", 0, fmt.Errorf("task %d: %w", n, task.ErrNotFound)
	}
	return l.TasksSortIndex[n-1], n - 1, nil
}

// removalTimeout is how long rm --wait waits for a hard delete
func removalTimeout(grace time.Duration) time.Duration {
	return 2 * grace
}

// moveIndex converts a 1-based final position into the index Move expects
func moveIndex(current, position int) int {
	target := position - 1
	if target > current {
		target++
	}
	return target
}
