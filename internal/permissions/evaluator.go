// Package permissions implements the permission evaluator (C1): a
// static, config-driven answer to "is this tool call pre-authorized?"
//
// Grounded on two sources: the glob-pattern vocabulary and Decision/
// Resolver shape of the teacher's internal/tools/policy/resolver.go,
// adapted to match the program this spec was distilled from exactly
// (original_source/agent/src/agent/permissions.py), which defines the
// canonical "Bash(<prog>:<pat>)" pattern grammar this evaluator must
// implement byte-for-byte.
package permissions

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// AlwaysAllowed is the fixed set of tools that never require a
// permission check.
var AlwaysAllowed = map[string]bool{
	"file_read":  true,
	"file_write": true,
	"file_edit":  true,
}

// Config is the on-disk permission document shape from spec.md §6:
// {"permissions": {"allow": ["Bash(pat)", ...]}}.
type Config struct {
	Permissions struct {
		Allow []string `json:"allow"`
	} `json:"permissions"`
}

// Evaluator answers IsAllowed(tool, arguments) from a static allow
// list of bash patterns. Load additionally records the source path so
// the opt-in fsnotify reload path (Watch) has something to re-read;
// evaluators built via New directly have no reload source.
type Evaluator struct {
	mu    sync.RWMutex
	allow []string

	path string

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup
}

// New builds an Evaluator directly from a set of allow patterns.
func New(allowPatterns []string) *Evaluator {
	e := &Evaluator{allow: make([]string, len(allowPatterns))}
	copy(e.allow, allowPatterns)
	return e
}

// Load reads a permission document from path. A missing file yields
// an Evaluator with an empty allow list rather than an error, matching
// the reference implementation's "file not present -> no permissions"
// behavior.
func Load(path string) (*Evaluator, error) {
	allow, err := readAllowList(path)
	if err != nil {
		return nil, err
	}
	e := New(allow)
	e.path = path
	return e, nil
}

// readAllowList loads just the allow-pattern slice from path, shared by
// Load and reload. A missing or malformed document yields an empty
// list rather than an error.
func readAllowList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		// A malformed document is treated the same as "no permissions
		// configured" rather than a fatal startup error.
		return nil, nil
	}
	return cfg.Permissions.Allow, nil
}

// reload re-reads e.path and atomically swaps the allow list. The
// previous allow list is kept on error.
func (e *Evaluator) reload() error {
	allow, err := readAllowList(e.path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.allow = allow
	e.mu.Unlock()
	return nil
}

// Watch starts the opt-in fsnotify reload path named by
// PermissionsConfig.Watch: changes to the evaluator's source document
// are re-read and swapped in without a process restart. It is a no-op
// if the Evaluator has no source path (built via New) or is already
// watching. Grounded on the teacher's templates.Registry.StartWatching
// (fsnotify.NewWatcher plus a debounced refresh on Write/Create/Rename).
func (e *Evaluator) Watch(ctx context.Context, logger *slog.Logger) error {
	if e.path == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	e.watchMu.Lock()
	if e.watcher != nil {
		e.watchMu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		e.watchMu.Unlock()
		return err
	}
	if err := watcher.Add(e.path); err != nil {
		_ = watcher.Close()
		e.watchMu.Unlock()
		return err
	}
	e.watcher = watcher
	watchCtx, cancel := context.WithCancel(ctx)
	e.watchCancel = cancel
	e.watchWg.Add(1)
	e.watchMu.Unlock()

	go e.watchLoop(watchCtx, watcher, logger)
	return nil
}

// Close stops any active Watch goroutine. Safe to call on an Evaluator
// that was never watching.
func (e *Evaluator) Close() error {
	e.watchMu.Lock()
	if e.watchCancel != nil {
		e.watchCancel()
		e.watchCancel = nil
	}
	watcher := e.watcher
	e.watcher = nil
	e.watchMu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	e.watchWg.Wait()
	return nil
}

func (e *Evaluator) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, logger *slog.Logger) {
	defer e.watchWg.Done()

	const debounce = 250 * time.Millisecond
	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if err := e.reload(); err != nil {
				logger.Warn("permissions reload failed", "path", e.path, "error", err)
			} else {
				logger.Info("permissions reloaded", "path", e.path)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("permissions watch error", "error", err)
		}
	}
}

// IsAllowed reports whether tool call (name, arguments) is
// pre-authorized. It depends only on static config and its arguments:
// callers must not pass chat-scoped state (auto_approve) through this
// path (see P6).
func (e *Evaluator) IsAllowed(name string, arguments map[string]any) bool {
	if AlwaysAllowed[name] {
		return true
	}
	if name != "bash" {
		return false
	}
	command, _ := arguments["command"].(string)
	return e.bashAllowed(command)
}

// bashAllowed evaluates arguments.command against the allow list of
// "Bash(<prog>:<pat>)" patterns per spec.md §4.1.
func (e *Evaluator) bashAllowed(command string) bool {
	command = strings.TrimSpace(command)
	if command == "" {
		return false
	}

	fields := strings.SplitN(command, " ", 2)
	program := fields[0]
	var args string
	if len(fields) > 1 {
		args = fields[1]
	}

	e.mu.RLock()
	allow := e.allow
	e.mu.RUnlock()

	for _, pattern := range allow {
		if !strings.HasPrefix(pattern, "Bash(") || !strings.HasSuffix(pattern, ")") {
			continue
		}
		inner := pattern[len("Bash(") : len(pattern)-1]

		if inner == "*" {
			return true
		}

		progPattern, argsPattern, hasArgs := strings.Cut(inner, ":")
		if !globMatch(progPattern, program) {
			continue
		}
		if !hasArgs {
			// "Bash(prog)" - program match only, any args.
			return true
		}
		if argsPattern == "*" || globMatch(argsPattern, args) {
			return true
		}
	}
	return false
}

// globMatch applies a Unix shell file-name glob (*, ?, character
// classes) to the whole string, per spec.md §4.1 ("not path
// segments"). path/filepath.Match gives '/' separator-aware semantics
// (a bare "*" will not match a path like "/tmp/x"), which is wrong
// here: bash argument strings routinely contain '/', and the spec is
// explicit that the glob applies to the whole string rather than path
// segments. So patterns are translated to an anchored regexp instead,
// matching the fnmatch semantics the reference permissions.py relies
// on (Python's fnmatch does not treat '/' specially either).
func globMatch(pattern, s string) bool {
	re, err := compileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

var globCache = struct {
	sync.Mutex
	m map[string]*regexp.Regexp
}{m: make(map[string]*regexp.Regexp)}

func compileGlob(pattern string) (*regexp.Regexp, error) {
	globCache.Lock()
	if re, ok := globCache.m[pattern]; ok {
		globCache.Unlock()
		return re, nil
	}
	globCache.Unlock()

	re, err := regexp.Compile("^" + translateGlob(pattern) + "$")
	if err != nil {
		return nil, err
	}

	globCache.Lock()
	globCache.m[pattern] = re
	globCache.Unlock()
	return re, nil
}

// translateGlob converts a shell glob into a regexp body, supporting
// '*' (any run of characters, including none), '?' (exactly one
// character), and '[...]' character classes (including a leading '!'
// or '^' negation), all applied to the whole string.
func translateGlob(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
				j++
			}
			if j < len(runes) && runes[j] == ']' {
				j++
			}
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				// Unterminated class: treat '[' literally.
				b.WriteString(regexp.QuoteMeta("["))
				continue
			}
			class := runes[i+1 : j]
			b.WriteString("[")
			if len(class) > 0 && (class[0] == '!' || class[0] == '^') {
				b.WriteString("^")
				class = class[1:]
			}
			b.WriteString(regexp.QuoteMeta(string(class)))
			b.WriteString("]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
