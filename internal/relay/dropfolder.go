// Package relay implements the inter-agent drop folder: a shared directory
// with one subdirectory per channel and one markdown file per message.
//
// File names start with a fixed-width UTC timestamp, so lexical order is
// chronological order:
//
//	<root>/<channel>/20260301T120000.000000000Z-ops-1a2b3c4d.md
//
// Every file carries YAML frontmatter (from, channel, posted_at) followed by
// the message body.
package relay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/ocalt/internal/logger"
)

const fileTimeLayout = "20060102T150405.000000000Z"

// Record is one message in a channel.
type Record struct {
	From     string    `yaml:"from"`
	Channel  string    `yaml:"channel"`
	PostedAt time.Time `yaml:"posted_at"`
	Body     string    `yaml:"-"`
	Path     string    `yaml:"-"`
}

// DropFolder is the shared mailbox rooted at a directory.
type DropFolder struct {
	root   string
	logger *logger.Logger
	now    func() time.Time
}

// New creates a DropFolder rooted at root.
func New(root string, log *logger.Logger) *DropFolder {
	return &DropFolder{root: root, logger: log, now: time.Now}
}

// Root returns the drop folder directory.
func (d *DropFolder) Root() string {
	return d.root
}

// Post writes one attributed record into channel and returns its path.
func (d *DropFolder) Post(from, channel, message string) (string, error) {
	if err := validateName("channel", channel); err != nil {
		return "", err
	}
	if err := validateName("from", from); err != nil {
		return "", err
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is empty")
	}

	dir := filepath.Join(d.root, channel)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create channel directory %s: %w", dir, err)
	}

	rec := Record{From: from, Channel: channel, PostedAt: d.now().UTC()}
	front, err := yaml.Marshal(&rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s.md", rec.PostedAt.Format(fileTimeLayout), from, uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	content := "---\n" + string(front) + "---\n\n" + strings.TrimSpace(message) + "\n"
	// O_EXCL: суффикс uuid делает коллизию практически невозможной, но не перезаписываем
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}

	d.logger.Debug("relay record posted",
		logger.Field{Key: "channel", Value: channel},
		logger.Field{Key: "from", Value: from},
		logger.Field{Key: "path", Value: path})
	return path, nil
}

// Read returns records of channel newer than maxAgeHours, newest first.
// The scan stops at the first record older than the cutoff; a missing
// channel has no records.
func (d *DropFolder) Read(channel string, maxAgeHours int) ([]Record, error) {
	if err := validateName("channel", channel); err != nil {
		return nil, err
	}

	dir := filepath.Join(d.root, channel)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read channel %s: %w", channel, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	cutoff := d.now().Add(-time.Duration(maxAgeHours) * time.Hour)
	var records []Record
	for _, name := range names {
		path := filepath.Join(dir, name)
		rec, err := readRecord(path)
		if err != nil {
			d.logger.Warn("skipping unreadable relay record",
				logger.Field{Key: "path", Value: path},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		if rec.PostedAt.Before(cutoff) {
			break
		}
		records = append(records, rec)
	}
	return records, nil
}

// BuildSharedContext formats recent records of every channel into one block
// for prompt injection. Empty when no channel has a recent record.
func (d *DropFolder) BuildSharedContext(channels []string, maxAgeHours int) (string, error) {
	var sections []string
	for _, channel := range channels {
		records, err := d.Read(channel, maxAgeHours)
		if err != nil {
			return "", err
		}
		if len(records) == 0 {
			continue
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "### #%s\n", channel)
		for _, r := range records {
			fmt.Fprintf(&sb, "\n[%s] %s:\n%s\n", r.PostedAt.UTC().Format("2006-01-02 15:04 MST"), r.From, r.Body)
		}
		sections = append(sections, sb.String())
	}

	if len(sections) == 0 {
		return "", nil
	}
	return "## Shared context from other agents\n\n" + strings.Join(sections, "\n"), nil
}

// Prune deletes records posted before cutoff in every channel and returns
// how many were removed.
func (d *DropFolder) Prune(cutoff time.Time) (int, error) {
	channels, err := os.ReadDir(d.root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read drop folder: %w", err)
	}

	removed := 0
	for _, ch := range channels {
		if !ch.IsDir() || validateName("channel", ch.Name()) != nil {
			continue
		}
		dir := filepath.Join(d.root, ch.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("failed to read channel %s: %w", ch.Name(), err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			posted, ok := postedAt(e)
			if !ok || !posted.Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
				return removed, fmt.Errorf("failed to remove record: %w", err)
			}
			removed++
		}
	}
	return removed, nil
}

// postedAt берёт время из префикса имени, для чужих файлов - mtime
func postedAt(e os.DirEntry) (time.Time, bool) {
	name := e.Name()
	if len(name) >= len(fileTimeLayout) {
		if t, err := time.Parse(fileTimeLayout, name[:len(fileTimeLayout)]); err == nil {
			return t, true
		}
	}
	info, err := e.Info()
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}

	front, body, err := splitFrontmatter(string(data))
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := yaml.Unmarshal([]byte(front), &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if rec.PostedAt.IsZero() {
		return Record{}, fmt.Errorf("frontmatter has no posted_at")
	}
	rec.Body = strings.TrimSpace(body)
	rec.Path = path
	return rec, nil
}

// splitFrontmatter делит содержимое на YAML между "---" и тело
func splitFrontmatter(content string) (string, string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return "", "", fmt.Errorf("record must start with frontmatter")
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end == -1 {
		return "", "", fmt.Errorf("frontmatter is not closed")
	}
	return rest[:end], rest[end+len("\n---\n"):], nil
}

func validateName(field, name string) error {
	if name == "" {
		return fmt.Errorf("%s is empty", field)
	}
	for _, r := range name {
		ok := r == '-' || r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("invalid %s %q: only letters, digits, '-', '_' and '.' are allowed", field, name)
		}
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid %s %q", field, name)
	}
	return nil
}
