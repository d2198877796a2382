package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
)

// logManager rotates the server's log file by size, tees output to stderr
// in debug mode, and prunes backups past the configured count or age.
type logManager struct {
	mu   sync.Mutex
	path string
	file *os.File
	cfg  config.LoggingConfig
	done chan struct{}
}

func setupLogging(cfg *config.Config) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetPrefix("[cangjie-mcp] ")

	if !cfg.Logging.Enabled || cfg.Logging.Directory == "" {
		return nil, nil
	}

	if err := os.MkdirAll(cfg.Logging.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lm := &logManager{
		path: filepath.Join(cfg.Logging.Directory, "cangjie-mcp.log"),
		cfg:  cfg.Logging,
		done: make(chan struct{}),
	}
	if err := lm.openFile(); err != nil {
		return nil, err
	}

	go lm.watch()
	return lm, nil
}

func (lm *logManager) openFile() error {
	f, err := os.OpenFile(lm.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	lm.file = f

	if lm.cfg.Debug {
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	} else {
		log.SetOutput(f)
	}
	return nil
}

func (lm *logManager) rotate() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.file != nil {
		lm.file.Close()
	}

	backup := fmt.Sprintf("%s.%s", lm.path, time.Now().Format("2006-01-02-15-04-05"))
	if err := os.Rename(lm.path, backup); err != nil {
		lm.openFile()
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	if err := lm.openFile(); err != nil {
		return err
	}
	log.Printf("log file rotated: %s", backup)

	lm.pruneBackups()
	return nil
}

func (lm *logManager) pruneBackups() {
	dir := filepath.Dir(lm.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var backups []os.DirEntry
	base := filepath.Base(lm.path)
	for _, e := range entries {
		if !e.IsDir() && e.Name() != base && filepath.Ext(e.Name()) != "" && len(e.Name()) > len(base) && e.Name()[:len(base)] == base {
			backups = append(backups, e)
		}
	}

	maxAge := time.Duration(lm.cfg.MaxAgeDays) * 24 * time.Hour
	now := time.Now()
	for _, e := range backups {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && now.Sub(info.ModTime()) > maxAge {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}

	if lm.cfg.MaxBackups > 0 && len(backups) > lm.cfg.MaxBackups {
		// os.ReadDir sorts by name and the timestamp suffix sorts
		// chronologically, so the oldest backups come first.
		for _, e := range backups[:len(backups)-lm.cfg.MaxBackups] {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

func (lm *logManager) watch() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	maxBytes := int64(lm.cfg.MaxSizeMB) * 1024 * 1024
	for {
		select {
		case <-lm.done:
			return
		case <-ticker.C:
			info, err := os.Stat(lm.path)
			if err != nil {
				continue
			}
			if maxBytes > 0 && info.Size() > maxBytes {
				if err := lm.rotate(); err != nil {
					log.Printf("failed to rotate log file: %v", err)
				}
			}
		}
	}
}

func (lm *logManager) Close() error {
	close(lm.done)
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.file != nil {
		return lm.file.Close()
	}
	return nil
}
