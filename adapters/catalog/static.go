package catalog

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// Static is a read-only quest catalog
type Static struct {
	quests []*core.Quest
	byID   map[string]*core.Quest
}

// NewStatic builds a catalog from quests. Ids are matched case-insensitively.
func NewStatic(quests []core.Quest) (ports.QuestCatalog, error) {
	c := &Static{byID: make(map[string]*core.Quest, len(quests))}
	for i := range quests {
		q := quests[i]
		if err := validateQuest(&q); err != nil {
			return nil, err
		}
		key := strings.ToLower(q.ID)
		if _, dup := c.byID[key]; dup {
			return nil, errors.Errorf("duplicate quest id %s", q.ID)
		}
		c.byID[key] = &q
		c.quests = append(c.quests, &q)
	}
	return c, nil
}

// LoadFile reads quests from a YAML file of the form `quests: [...]`
func LoadFile(path string) (ports.QuestCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read quest file %s", path)
	}

	var file struct {
		Quests []core.Quest `yaml:"quests"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse quest file %s", path)
	}
	return NewStatic(file.Quests)
}

// Default returns the built-in demo catalog
func Default() ports.QuestCatalog {
	c, err := NewStatic(DefaultQuests)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns a copy of the quest with id
func (c *Static) Get(id string) (*core.Quest, bool) {
	q, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, false
	}
	copied := *q
	return &copied, true
}

// List returns the quests in catalog order
func (c *Static) List() []*core.Quest {
	out := make([]*core.Quest, 0, len(c.quests))
	for _, q := range c.quests {
		copied := *q
		out = append(out, &copied)
	}
	return out
}

func validateQuest(q *core.Quest) error {
	q.ID = strings.TrimSpace(q.ID)
	if q.ID == "" {
		return errors.New("quest id is required")
	}
	if q.MinAnswerLength < 0 || q.MaxAnswerLength < 0 {
		return errors.Errorf("quest %s has negative length bounds", q.ID)
	}
	if q.MaxAnswerLength > 0 && q.MinAnswerLength > q.MaxAnswerLength {
		return errors.Errorf("quest %s has minAnswerLength above maxAnswerLength", q.ID)
	}
	if q.PreviewLimit <= 0 {
		q.PreviewLimit = 140
	}
	return nil
}
