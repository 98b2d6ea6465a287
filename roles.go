package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
)

// RoleSnapshot is an immutable view of the admin and super-admin sets.
type RoleSnapshot struct {
	admins      map[string]struct{}
	superAdmins map[string]struct{}
}

// IsAdmin reports whether the user may manage events. Super-admins are admins.
func (s *RoleSnapshot) IsAdmin(username string) bool {
	if username == "" {
		return false
	}
	if _, ok := s.admins[username]; ok {
		return true
	}
	return s.IsSuperAdmin(username)
}

// IsSuperAdmin reports whether the user may manage admins.
func (s *RoleSnapshot) IsSuperAdmin(username string) bool {
	if username == "" {
		return false
	}
	_, ok := s.superAdmins[username]
	return ok
}

// Admins returns the admin usernames in lexical order (super-admins excluded).
func (s *RoleSnapshot) Admins() []string {
	out := make([]string, 0, len(s.admins))
	for u := range s.admins {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

// RoleRegistry owns the admin files and publishes snapshots of them.
type RoleRegistry struct {
	adminsFile      string
	superAdminsFile string
	bootstrap       []string // super-admins from configuration

	mu      sync.Mutex
	current *RoleSnapshot
}

// NewRoleRegistry creates a registry and loads the files.
func NewRoleRegistry(adminsFile, superAdminsFile string, bootstrap []string) (*RoleRegistry, error) {
	r := &RoleRegistry{
		adminsFile:      adminsFile,
		superAdminsFile: superAdminsFile,
		bootstrap:       bootstrap,
	}
	if _, err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Snapshot returns the current role sets.
func (r *RoleRegistry) Snapshot() *RoleSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Reload re-reads both files and returns the new snapshot.
func (r *RoleRegistry) Reload() (*RoleSnapshot, error) {
	admins, err := loadList(r.adminsFile)
	if err != nil {
		return nil, err
	}
	superAdmins, err := loadList(r.superAdminsFile)
	if err != nil {
		return nil, err
	}
	for _, u := range r.bootstrap {
		superAdmins[u] = struct{}{}
	}

	snap := &RoleSnapshot{admins: admins, superAdmins: superAdmins}
	r.mu.Lock()
	r.current = snap
	r.mu.Unlock()
	return snap, nil
}

// AddAdmin normalizes identifier, appends it to the admins file and returns the stored handle.
func (r *RoleRegistry) AddAdmin(identifier string) (string, error) {
	username := normalizeUsername(identifier)
	if !isTelegramHandle(username) {
		return "", ErrInvalidUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.current.admins[username]; ok {
		return username, ErrAlreadyAdmin
	}

	f, err := os.OpenFile(r.adminsFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open admins file: %w", err)
	}
	if _, err := f.WriteString(username + "\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("append admin: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	admins := cloneSet(r.current.admins)
	admins[username] = struct{}{}
	r.current = &RoleSnapshot{admins: admins, superAdmins: r.current.superAdmins}
	return username, nil
}

// RemoveAdmin drops identifier from the admins file.
func (r *RoleRegistry) RemoveAdmin(identifier string) error {
	username := normalizeUsername(identifier)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.current.admins[username]; !ok {
		return ErrAdminNotFound
	}

	admins := cloneSet(r.current.admins)
	delete(admins, username)
	next := &RoleSnapshot{admins: admins, superAdmins: r.current.superAdmins}

	var b strings.Builder
	for _, u := range next.Admins() {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(r.adminsFile, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("rewrite admins file: %w", err)
	}
	r.current = next
	return nil
}

// loadList reads one identifier per line; a missing file is an empty set.
func loadList(filename string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	file, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			set[line] = struct{}{}
		}
	}
	return set, scanner.Err()
}

// normalizeUsername turns "@name" or "https://t.me/name" into "name".
func normalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "@") {
		return name[1:]
	}
	if i := strings.LastIndex(name, "t.me/"); i >= 0 {
		return strings.Trim(name[i+len("t.me/"):], "/")
	}
	return name
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in)+1)
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
