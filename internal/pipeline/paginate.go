package pipeline

import (
	"sync"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// PageSize is the number of deals revealed per "show more".
const PageSize = 30

// Page is the visible prefix of a ranked collection.
type Page struct {
	Deals     []models.Deal
	Total     int
	Visible   int
	HasMore   bool
	Remaining int
}

// Paginate exposes deals[:visible]. A negative visible count is treated as 0.
func Paginate(deals []models.Deal, visible int) Page {
	if visible < 0 {
		visible = 0
	}
	n := min(visible, len(deals))
	return Page{
		Deals:     deals[:n:n],
		Total:     len(deals),
		Visible:   visible,
		HasMore:   visible < len(deals),
		Remaining: len(deals) - n,
	}
}

// Pager tracks how many deals a viewer has revealed. It resets to a single page
// whenever the observed criteria's page key changes.
type Pager struct {
	mu       sync.Mutex
	size     int
	visible  int
	key      Criteria
	observed bool
}

func NewPager(size int) *Pager {
	if size <= 0 {
		size = PageSize
	}
	return &Pager{size: size, visible: size}
}

// Observe records the criteria for the next render and reports whether the pager was reset.
func (p *Pager) Observe(c Criteria) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := c.PageKey()
	if p.observed && key == p.key {
		return false
	}
	p.key = key
	p.observed = true
	p.visible = p.size
	return true
}

// ShowMore reveals one more page and returns the new visible count.
func (p *Pager) ShowMore() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible += p.size
	return p.visible
}

func (p *Pager) Visible() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}
