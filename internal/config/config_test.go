package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const yamlConfig = `
logging:
  level: debug
  console: true
scheduler:
  enabled: true
  timezone: Europe/Berlin
  horizon_years: 6
  default_timeout: 30s
storage:
  driver: file
  path: ./store
triggers:
  - name: payroll
    schedule: "0 0 9 LW * *"
    message: run payroll
  - name: standup
    schedule: "30 9 * * MON-FRI"
    timeout: 5s
    disabled: true
`

func TestParseYAMLAndJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yml := filepath.Join(dir, "recurd.yaml")
	writeFile(t, yml, yamlConfig)

	cfg, err := NewConfigManager(yml).Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Timezone != "Europe/Berlin" || cfg.Scheduler.HorizonYears != 6 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Triggers) != 2 || cfg.Triggers[0].Schedule != "0 0 9 LW * *" || !cfg.Triggers[1].Disabled {
		t.Fatalf("triggers = %+v", cfg.Triggers)
	}

	js := filepath.Join(dir, "recurd.conf")
	writeFile(t, js, `{"scheduler":{"enabled":true},"triggers":[{"name":"a","schedule":"@daily"}]}`)
	cfg, err = NewConfigManager(js).Load()
	if err != nil {
		t.Fatalf("load sniffed json: %v", err)
	}
	if len(cfg.Triggers) != 1 || cfg.Triggers[0].Schedule != "@daily" {
		t.Fatalf("triggers = %+v", cfg.Triggers)
	}
}

func TestParseStrict(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := []struct {
		name string
		file string
		body string
		want string
	}{
		{"unknown json field", "a.json", `{"scheduler":{"enabeld":true}}`, "unknown field"},
		{"unknown yaml field", "a.yaml", "triggers:\n  - name: x\n    schedul: '@daily'\n", "unknown field"},
		{"trailing json", "b.json", `{} {}`, "trailing data"},
		{"bad yaml", "b.yml", "scheduler: [", "yaml unmarshal"},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.file)
		writeFile(t, path, tc.body)
		_, err := NewConfigManager(path).Parse()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err = %v, want %q", tc.name, err, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"empty ok", Config{}, nil},
		{
			"bad fields",
			Config{
				Scheduler: SchedulerConfig{HorizonYears: -1, DefaultTimeout: "soon"},
				Storage:   &StorageConfig{Driver: "postgres"},
				Triggers: []TriggerConfig{
					{Name: "a", Schedule: "@daily"},
					{Name: "a", Schedule: "@hourly"},
					{Name: " ", Timeout: "-1s"},
				},
			},
			[]string{
				"scheduler.default_timeout",
				"scheduler.horizon_years",
				`unknown driver "postgres"`,
				"duplicates triggers[0]",
				"triggers[2].name: required",
				"triggers[2].schedule: required",
				"triggers[2].timeout",
			},
		},
		{"storage path", Config{Storage: &StorageConfig{Driver: "sqlite"}}, []string{"storage.path"}},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if len(tc.want) == 0 {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		for _, w := range tc.want {
			if !strings.Contains(err.Error(), w) {
				t.Fatalf("%s: error %q lacks %q", tc.name, err, w)
			}
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	d, err := SchedulerConfig{}.DefaultTimeoutDuration(time.Minute)
	if err != nil || d != time.Minute {
		t.Fatalf("unset default = %v, %v", d, err)
	}
	d, err = SchedulerConfig{DefaultTimeout: "0s"}.DefaultTimeoutDuration(time.Minute)
	if err != nil || d != 0 {
		t.Fatalf("explicit zero = %v, %v", d, err)
	}
	d, err = TriggerConfig{Name: "x", Timeout: "90s"}.TimeoutDuration()
	if err != nil || d != 90*time.Second {
		t.Fatalf("trigger timeout = %v, %v", d, err)
	}
	var s *StorageConfig
	if d, _ := s.BusyTimeoutDuration(time.Second); d != time.Second {
		t.Fatalf("nil storage busy timeout = %v", d)
	}
	if _, err := (TriggerConfig{Name: "x", Timeout: "abc"}).TimeoutDuration(); err == nil ||
		!strings.Contains(err.Error(), "triggers.x.timeout") {
		t.Fatalf("err = %v", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	old := &Config{
		Scheduler: SchedulerConfig{Enabled: true},
		Triggers: []TriggerConfig{
			{Name: "keep", Schedule: "@daily"},
			{Name: "edit", Schedule: "@hourly"},
			{Name: "drop", Schedule: "@weekly"},
		},
	}
	next := &Config{
		Scheduler: SchedulerConfig{Enabled: true, HorizonYears: 8},
		Storage:   &StorageConfig{Driver: "file", Path: "x"},
		Triggers: []TriggerConfig{
			{Name: "keep", Schedule: "@daily"},
			{Name: "edit", Schedule: "0 0 * * * *"},
			{Name: "add", Schedule: "0 0 0 L * *"},
		},
	}
	sections, attrs, names := SummarizeConfigChange(old, next)
	if want := []string{"scheduler", "storage", "triggers"}; !slices.Equal(sections, want) {
		t.Fatalf("sections = %v, want %v", sections, want)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected log attrs")
	}
	if want := []string{"add", "drop", "edit"}; !slices.Equal(names, want) {
		t.Fatalf("trigger names = %v, want %v", names, want)
	}

	if sections, _, names := SummarizeConfigChange(old, old); len(sections) != 0 || len(names) != 0 {
		t.Fatalf("identical configs reported %v %v", sections, names)
	}
}

func TestLoadRunsValidator(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "recurd.json")
	writeFile(t, path, `{"triggers":[{"name":"a","schedule":"nonsense"}]}`)

	errBad := errors.New("bad schedule")
	m := NewConfigManager(path)
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Triggers[0].Schedule == "nonsense" {
			return errBad
		}
		return nil
	})
	if _, err := m.Load(); !errors.Is(err, errBad) {
		t.Fatalf("err = %v, want %v", err, errBad)
	}
	if m.Get() != nil {
		t.Fatalf("rejected config was committed")
	}
}

func TestWatchPublishesValidReloads(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "recurd.yaml")
	writeFile(t, path, "triggers:\n  - name: a\n    schedule: '@daily'\n")

	m := NewConfigManager(path)
	m.SetDebounce(20 * time.Millisecond)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	// Invalid config is rejected and never published.
	writeFile(t, path, "triggers:\n  - name: ''\n    schedule: '@daily'\n")
	time.Sleep(150 * time.Millisecond)
	select {
	case cfg := <-ch:
		t.Fatalf("invalid config published: %+v", cfg)
	default:
	}

	writeFile(t, path, "triggers:\n  - name: b\n    schedule: '@hourly'\n")
	select {
	case cfg := <-ch:
		if len(cfg.Triggers) != 1 || cfg.Triggers[0].Name != "b" {
			t.Fatalf("published %+v", cfg.Triggers)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for reload")
	}
	if got := m.Get(); got == nil || got.Triggers[0].Name != "b" {
		t.Fatalf("Get() = %+v", got)
	}

	cancel()
	<-done
}
