package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/td0m/tasklists/internal/config"
	"github.com/td0m/tasklists/pkg/persist"
	"github.com/td0m/tasklists/pkg/task"
)

var (
	years  = flag.Int("years", 10, "Years of tasks to generate")
	perDay = flag.Int("per-day", 30, "Tasks created per day")
	lists  = flag.Int("lists", 12, "Number of task lists")
)

func main() {
	flag.Parse()
	total := 365 * *perDay * *years
	store := generate(total, *lists)

	dir, err := os.MkdirTemp("", "tasklists-size-")
	check(err)
	defer os.RemoveAll(dir)

	fmt.Printf("Tasks: %d years, %d per day (%d total) in %d lists\n", *years, *perDay, total, *lists)
	for _, medium := range []string{config.MediumFile, config.MediumSQLite} {
		cfg := config.Config{Dir: filepath.Join(dir, medium), Medium: medium, Key: config.DefaultKey, Poll: time.Second}
		m, err := cfg.OpenMedium()
		check(err)
		d := persist.Open[task.Store](m, cfg.Key, task.SchemaVersion)
		_, err = d.Initialize(task.NewStore)
		check(err)
		check(d.Write(store)) // mount, skipped

		writeTime := measureTime(func() {
			check(d.Write(store))
		})
		readTime := measureTime(func() {
			_, err := d.Read()
			check(err)
		})
		check(m.Close())

		fmt.Printf("%s: %dKB, write %dms, read %dms\n",
			medium, dirSize(cfg.Dir)/1024, writeTime.Milliseconds(), readTime.Milliseconds())
	}
}

// generate builds a store the way a user would, one command at a time
func generate(total, lists int) task.Store {
	now := time.Now().AddDate(-*years, 0, 0)
	env := task.NewEnv(now)
	s := task.NewStore()
	ids := make([]task.ID, lists)
	for i := range ids {
		r, err := s.Apply(env, task.CreateList{Title: randomString(12)})
		check(err)
		ids[i] = r.ID
	}
	for i := 0; i < total; i++ {
		env.Now = now.Add(time.Duration(i) * time.Minute)
		list := ids[rand.Intn(len(ids))]
		r, err := s.Apply(env, task.CreateTask{ListID: list, Title: randomString(30)})
		check(err)
		if rand.Intn(3) > 0 {
			_, err = s.Apply(env, task.SetCompleted{ID: r.ID, Completed: true})
			check(err)
		}
	}
	return s
}

func dirSize(dir string) int64 {
	var size int64
	entries, err := os.ReadDir(dir)
	check(err)
	for _, e := range entries {
		info, err := e.Info()
		check(err)
		size += info.Size()
	}
	return size
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func measureTime(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "

func randomString(l int) string {
	b := make([]byte, l)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
