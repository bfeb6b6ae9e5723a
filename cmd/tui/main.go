package main

import (
	"flag"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/td0m/tasklists/internal/config"
	"github.com/td0m/tasklists/internal/logging"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

var (
	configPath = flag.String("config", "", "Path to config file")
	_          = flag.String("dir", "", "Directory tasks are stored in")
	_          = flag.String("medium", config.MediumFile, "Storage medium, file or sqlite")
	_          = flag.String("key", config.DefaultKey, "Storage key shared by every terminal")
	_          = flag.Duration("grace", 0, "How long deleted tasks stay visible")
	_          = flag.String("log", "", "Path to log file, defaults to tasklists.log in the storage directory")
	_          = flag.Bool("debug", false, "Log debug messages")
)

func main() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(*configPath, pflag.CommandLine)
	check(err)
	if cfg.Log == "" {
		cfg.Log = filepath.Join(cfg.Dir, config.AppName+".log")
	}
	log, closer, err := logging.Open(cfg.Log, cfg.Debug)
	check(err)
	defer closer.Close()

	s, medium, err := cfg.Open(log)
	check(err)
	defer medium.Close()
	defer s.Close()
	log.Info("session started", "dir", cfg.Dir, "medium", cfg.Medium, "key", cfg.Key)

	p := tea.NewProgram(newApp(s, time.Now), tea.WithAltScreen())
	// Send blocks until the program reads the message, and changes made
	// from Update notify synchronously
	unsubscribe := s.Subscribe(func() { go p.Send(changedMsg{}) })
	defer unsubscribe()

	_, err = p.Run()
	check(err)
}
