package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/mediatask/internal/task"
)

// ErrInvalidParams is returned when params cannot be decoded or fail validation
var ErrInvalidParams = errors.New("invalid task params")

// defaulter is implemented by params that fill in omitted fields before
// validation
type defaulter interface {
	applyDefaults()
}

type definition struct {
	newParams func() any
	build     func(params any) task.Job
}

// Catalog maps task types to job builders. Register every type before the
// catalog is shared; lookups are not synchronized with registration.
type Catalog struct {
	validate *validator.Validate
	defs     map[string]definition
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		validate: validator.New(),
		defs:     make(map[string]definition),
	}
}

// Register adds taskType to c. Params are decoded into a P, which is
// checked with its validate tags before build is called.
func Register[P any](c *Catalog, taskType string, build func(params *P) task.Job) {
	c.defs[taskType] = definition{
		newParams: func() any { return new(P) },
		build: func(params any) task.Job {
			return build(params.(*P))
		},
	}
}

// Types returns the registered task types in sorted order
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.defs))
	for t := range c.defs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ValidateParams reports whether raw is acceptable for taskType
func (c *Catalog) ValidateParams(taskType string, raw json.RawMessage) error {
	_, _, err := c.decode(taskType, raw)
	return err
}

// NewJob builds the job for a dispatch
func (c *Catalog) NewJob(taskType string, raw json.RawMessage) (task.Job, error) {
	def, params, err := c.decode(taskType, raw)
	if err != nil {
		return nil, err
	}
	return def.build(params), nil
}

func (c *Catalog) decode(taskType string, raw json.RawMessage) (definition, any, error) {
	def, ok := c.defs[taskType]
	if !ok {
		return definition{}, nil, fmt.Errorf("%w: %q", task.ErrUnknownTaskType, taskType)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = json.RawMessage("{}")
	}

	params := def.newParams()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(params); err != nil {
		return definition{}, nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	if d, ok := params.(defaulter); ok {
		d.applyDefaults()
	}
	if err := c.validate.Struct(params); err != nil {
		return definition{}, nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return def, params, nil
}

var (
	_ task.JobFactory = (*Catalog)(nil)
)
