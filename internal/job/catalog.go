package job

import (
	"fmt"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
)

// Catalog holds the process-step templates Jobs are built from.
type Catalog struct {
	steps map[string]*ProcessStep
}

// NewCatalog indexes steps by id.
func NewCatalog(steps ...*ProcessStep) *Catalog {
	c := &Catalog{steps: make(map[string]*ProcessStep, len(steps))}
	for _, ps := range steps {
		c.steps[ps.header.ID] = ps
	}
	return c
}

// Clone returns deep copies of the named templates in the given order.
func (c *Catalog) Clone(ids ...string) ([]*ProcessStep, error) {
	templates, err := c.lookup(ids)
	if err != nil {
		return nil, err
	}
	for i, ps := range templates {
		templates[i] = ps.Clone()
	}
	return templates, nil
}

func (c *Catalog) lookup(ids []string) ([]*ProcessStep, error) {
	out := make([]*ProcessStep, 0, len(ids))
	for _, id := range ids {
		ps, ok := c.steps[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStep, id)
		}
		out = append(out, ps)
	}
	return out, nil
}

// Build creates Job number n named "Job NNN <name>" from copies of the
// named templates.
func (c *Catalog) Build(n int, name string, ids ...string) (*Job, error) {
	steps, err := c.Clone(ids...)
	if err != nil {
		return nil, err
	}
	id := FormatJobID(n)
	suffix := id[len("Job-"):]
	h := entity.Header{
		ID:          id,
		Name:        "Job " + suffix + " " + name,
		Namespace:   NamespaceJobs,
		Description: "I'm Job " + suffix + "!",
	}
	return adopt(h, steps), nil
}
