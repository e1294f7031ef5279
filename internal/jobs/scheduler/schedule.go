package scheduler

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Entry is one scheduled job from the schedule file.
type Entry struct {
	Name          string         `yaml:"name"`
	Cron          string         `yaml:"cron"`
	JobType       string         `yaml:"job_type"`
	Payload       map[string]any `yaml:"payload"`
	SkipIfRunning *bool          `yaml:"skip_if_running"`
	Disabled      bool           `yaml:"disabled"`
}

// skipIfRunning defaults to true: a slow run is not stacked on.
func (e Entry) skipIfRunning() bool {
	return e.SkipIfRunning == nil || *e.SkipIfRunning
}

type File struct {
	Timezone string  `yaml:"timezone"`
	Jobs     []Entry `yaml:"jobs"`
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse decodes and validates a schedule document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	seen := map[string]bool{}
	for i := range f.Jobs {
		e := &f.Jobs[i]
		e.Name = strings.TrimSpace(e.Name)
		e.JobType = strings.TrimSpace(e.JobType)
		if e.Name == "" {
			e.Name = fmt.Sprintf("%s#%d", e.JobType, i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("schedule entry %q defined twice", e.Name)
		}
		seen[e.Name] = true
		if e.JobType == "" {
			return nil, fmt.Errorf("schedule entry %q: missing job_type", e.Name)
		}
		if _, err := parser.Parse(e.Cron); err != nil {
			return nil, fmt.Errorf("schedule entry %q: bad cron %q: %w", e.Name, e.Cron, err)
		}
	}
	return &f, nil
}

// Load reads a schedule file. A missing file yields an empty schedule.
func Load(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schedule %s: %w", path, err)
	}
	return Parse(data)
}
