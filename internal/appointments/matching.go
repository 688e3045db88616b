package appointments

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/wolfman30/homevisit-scheduler/internal/identity"
)

// Matcher picks a professional for a booking that did not name one.
type Matcher struct {
	identities   identity.Store
	availability *Availability
}

// NewMatcher builds a Matcher.
func NewMatcher(identities identity.Store, availability *Availability) *Matcher {
	return &Matcher{identities: identities, availability: availability}
}

// FindAvailableProfessional returns the lowest-id professional that is
// available at ts. A non-nil specialty restricts candidates to an exact
// specialty match. ErrNoProfessionalAvailable is returned when nobody fits.
func (m *Matcher) FindAvailableProfessional(ctx context.Context, ts time.Time, specialty *string) (*identity.Professional, error) {
	var (
		candidates []identity.Professional
		err        error
	)
	if specialty != nil {
		candidates, err = m.identities.ProfessionalsBySpecialty(ctx, *specialty)
	} else {
		candidates, err = m.identities.Professionals(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load candidates: %w", ErrDependency, err)
	}

	slices.SortStableFunc(candidates, func(a, b identity.Professional) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for i := range candidates {
		ok, err := m.availability.IsAvailable(ctx, candidates[i].ID, ts)
		if err != nil {
			return nil, err
		}
		if ok {
			return &candidates[i], nil
		}
	}
	return nil, ErrNoProfessionalAvailable
}
