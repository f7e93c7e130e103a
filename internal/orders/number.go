package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultNumberTag = "ORD"

// NumberGenerator formats order numbers as TAG-YYMMDD-NNNNN. Uniqueness comes
// from the order id; the date part is cosmetic.
type NumberGenerator struct {
	Tag string
	Now func() time.Time
}

func (g NumberGenerator) Generate(orderID int64) string {
	tag := g.Tag
	if tag == "" {
		tag = DefaultNumberTag
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	// %05d pads but never truncates wider ids
	return fmt.Sprintf("%s-%s-%05d", tag, now().UTC().Format("060102"), orderID)
}

// ParseOrderNumber extracts the order id from the numeric suffix.
func ParseOrderNumber(number string) (int64, error) {
	parts := strings.Split(number, "-")
	if len(parts) < 3 {
		return 0, fmt.Errorf("%w: malformed order number %q", ErrInvalidRequest, number)
	}
	date := parts[len(parts)-2]
	if _, err := time.Parse("060102", date); err != nil {
		return 0, fmt.Errorf("%w: bad date in order number %q", ErrInvalidRequest, number)
	}
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id in order number %q", ErrInvalidRequest, number)
	}
	return id, nil
}
