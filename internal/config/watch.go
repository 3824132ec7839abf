package config

import (
	"context"
	"os"
	"time"
)

// WatchSeed reloads seed.yaml on change and calls onUpdate with the latest records.
// It performs an initial load before entering the watch loop.
func WatchSeed(ctx context.Context, path string, interval time.Duration, onUpdate func(*Seed)) error {
	if path == "" {
		path = "configs/seed.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	seed, err := LoadSeed(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(seed)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				seed, err := LoadSeed(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(seed)
				}
			}
		}
	}()

	return nil
}
