package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// loadSession reads the cookies saved by a previous invocation.  A missing
// file is an empty session.
func loadSession(path string) ([]*http.Cookie, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var saved []savedCookie
	if err := json.Unmarshal(b, &saved); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	out := make([]*http.Cookie, 0, len(saved))
	for _, s := range saved {
		out = append(out, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	return out, nil
}

// saveSession writes cookies with owner-only permissions.  An empty jar
// removes the file.
func saveSession(path string, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	saved := make([]savedCookie, len(cookies))
	for i, c := range cookies {
		saved[i] = savedCookie{Name: c.Name, Value: c.Value}
	}
	b, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
