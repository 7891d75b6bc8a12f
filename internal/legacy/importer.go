package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"github.com/panjf2000/ants/v2"
	"gopkg.in/yaml.v3"
)

// Counts tallies one record kind.
type Counts struct {
	Imported int `yaml:"imported"`
	Skipped  int `yaml:"skipped"`
	Failed   int `yaml:"failed"`
	Upgraded int `yaml:"upgraded"`
}

// Report summarizes an import run.
type Report struct {
	Source        string    `yaml:"source"`
	StartedAt     time.Time `yaml:"started_at"`
	Duration      string    `yaml:"duration"`
	Users         Counts    `yaml:"users"`
	Posts         Counts    `yaml:"posts"`
	Follows       Counts    `yaml:"follows"`
	Notifications Counts    `yaml:"notifications"`
	Errors        []string  `yaml:"errors,omitempty"`

	mu sync.Mutex
}

func (r *Report) fail(kind string, c *Counts, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Failed++
	r.Errors = append(r.Errors, err.Error())
	observability.ImportRecords.WithLabelValues(kind, "failed").Inc()
}

func (r *Report) record(kind string, c *Counts, imported, upgraded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := "skipped"
	if imported {
		c.Imported++
		result = "imported"
	} else {
		c.Skipped++
	}
	if upgraded {
		c.Upgraded++
	}
	observability.ImportRecords.WithLabelValues(kind, result).Inc()
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// Importer loads a legacy data directory through the repositories.
type Importer struct {
	users         repository.UserRepository
	posts         repository.PostRepository
	follows       repository.FollowRepository
	notifications repository.NotificationRepository
	workers       int
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithWorkers sets the blog decoding pool size.
func WithWorkers(n int) Option {
	return func(i *Importer) {
		if n < 1 {
			n = 1
		}
		i.workers = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func NewImporter(
	users repository.UserRepository,
	posts repository.PostRepository,
	follows repository.FollowRepository,
	notifications repository.NotificationRepository,
	opts ...Option,
) *Importer {
	i := &Importer{
		users:         users,
		posts:         posts,
		follows:       follows,
		notifications: notifications,
		workers:       4,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run imports users, blogs, follows and notifications from dir. Records
// that already exist are skipped, so a run can be repeated. A bad record
// is counted and reported without stopping the run; storage failures and
// cancellation stop it.
func (i *Importer) Run(ctx context.Context, dir string) (*Report, error) {
	report := &Report{Source: dir, StartedAt: i.now().UTC()}
	job, ctx := observability.StartJob(ctx, "legacy_import", slog.String("source", dir))

	steps := []func(context.Context, string, *Report) error{
		i.importUsers,
		i.importBlogs,
		i.importFollows,
		i.importNotifications,
	}
	for _, step := range steps {
		if err := step(ctx, dir, report); err != nil {
			report.Duration = time.Since(report.StartedAt).Round(time.Millisecond).String()
			job.Fail(err, slog.Int("failed_records", len(report.Errors)))
			return report, err
		}
	}

	report.Duration = time.Since(report.StartedAt).Round(time.Millisecond).String()
	job.Done(
		slog.Int("users", report.Users.Imported),
		slog.Int("posts", report.Posts.Imported),
		slog.Int("follows", report.Follows.Imported),
		slog.Int("notifications", report.Notifications.Imported),
		slog.Int("failed_records", len(report.Errors)),
	)
	return report, nil
}

// readJSONFile decodes path into v. A missing file is not an error.
func readJSONFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// fatal reports whether err must stop the run.
func fatal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		models.HasCode(err, models.CodeStorageUnavailable)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (i *Importer) importUsers(ctx context.Context, dir string, report *Report) error {
	var raw map[string]json.RawMessage
	found, err := readJSONFile(filepath.Join(dir, "users.json"), &raw)
	if err != nil || !found {
		return err
	}

	for _, name := range sortedKeys(raw) {
		if err := ctx.Err(); err != nil {
			return err
		}
		user, version, err := UpgradeUser(name, raw[name])
		if err != nil {
			report.fail("user", &report.Users, err)
			continue
		}
		err = i.users.Create(ctx, user)
		switch {
		case models.HasCode(err, models.CodeDuplicateUsername):
			report.record("user", &report.Users, false, false)
		case err != nil:
			if fatal(err) {
				return err
			}
			report.fail("user", &report.Users, fmt.Errorf("user %q: %w", name, err))
		default:
			report.record("user", &report.Users, true, version != UserVersionStructured)
		}
	}
	return nil
}

// importBlogs decodes and stores blog files on a worker pool.
func (i *Importer) importBlogs(ctx context.Context, dir string, report *Report) error {
	files, err := listBlogFiles(filepath.Join(dir, "blogs"))
	if err != nil || len(files) == 0 {
		return err
	}

	pool, err := ants.NewPool(i.workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		stopOnce sync.Once
		stopErr  error
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		f := f
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := i.importBlog(ctx, f, report); err != nil {
				stopOnce.Do(func() {
					stopErr = err
					cancel()
				})
			}
		}); err != nil {
			wg.Done()
			stopOnce.Do(func() { stopErr = err })
			break
		}
	}
	wg.Wait()
	return stopErr
}

func (i *Importer) importBlog(ctx context.Context, f blogFile, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := DecodeBlogFile(f.Path)
	if err != nil {
		report.fail("post", &report.Posts, fmt.Errorf("blog %q: %w", f.ID, err))
		return nil
	}
	fallback := i.now()
	if info, statErr := os.Stat(f.Path); statErr == nil {
		fallback = info.ModTime()
	}
	post, version, err := UpgradePost(doc, f.ID, fallback)
	if err != nil {
		report.fail("post", &report.Posts, err)
		return nil
	}

	inserted, err := i.posts.CreateIfAbsent(ctx, post)
	if err != nil {
		if fatal(err) {
			return err
		}
		report.fail("post", &report.Posts, fmt.Errorf("blog %q: %w", f.ID, err))
		return nil
	}
	report.record("post", &report.Posts, inserted, version != PostVersionLikedBy)
	if inserted {
		i.logger.DebugContext(ctx, "imported legacy blog", slog.String("id", post.ID), slog.String("file", f.Path))
	}
	return nil
}

func (i *Importer) importFollows(ctx context.Context, dir string, report *Report) error {
	var raw map[string][]string
	found, err := readJSONFile(filepath.Join(dir, "follows.json"), &raw)
	if err != nil || !found {
		return err
	}

	for _, follower := range sortedKeys(raw) {
		for _, following := range raw[follower] {
			if err := ctx.Err(); err != nil {
				return err
			}
			if following == "" || following == follower {
				report.fail("follow", &report.Follows, fmt.Errorf("follow %q -> %q: invalid edge", follower, following))
				continue
			}
			created, err := i.follows.CreateIfAbsent(ctx, follower, following)
			if err != nil {
				if fatal(err) {
					return err
				}
				report.fail("follow", &report.Follows, fmt.Errorf("follow %q -> %q: %w", follower, following, err))
				continue
			}
			report.record("follow", &report.Follows, created, false)
		}
	}
	return nil
}

// importNotifications appends each recipient's log oldest first so the
// retention cap keeps the newest entries. Recipients that already have
// notifications are skipped.
func (i *Importer) importNotifications(ctx context.Context, dir string, report *Report) error {
	var raw map[string][]json.RawMessage
	found, err := readJSONFile(filepath.Join(dir, "notifications.json"), &raw)
	if err != nil || !found {
		return err
	}

	for _, recipient := range sortedKeys(raw) {
		existing, err := i.notifications.ListByUser(ctx, recipient)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			for range raw[recipient] {
				report.record("notification", &report.Notifications, false, false)
			}
			continue
		}

		fallback := i.now()
		var batch []*models.Notification
		for _, entry := range raw[recipient] {
			n, err := UpgradeNotification(recipient, entry, fallback)
			if err != nil {
				report.fail("notification", &report.Notifications, err)
				continue
			}
			batch = append(batch, n)
		}
		sort.SliceStable(batch, func(a, b int) bool {
			return batch[a].CreatedAt.Before(batch[b].CreatedAt)
		})

		for _, n := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := i.notifications.Append(ctx, n); err != nil {
				if fatal(err) {
					return err
				}
				report.fail("notification", &report.Notifications, err)
				continue
			}
			report.record("notification", &report.Notifications, true, false)
		}
	}
	return nil
}
