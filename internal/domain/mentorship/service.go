package mentorship

import (
	"context"
)

// DayPlan is the resolved state of one mentor day.
type DayPlan struct {
	Availability *Availability

	// Open are the slots still bookable.
	Open []TimeSlot

	// Active are the scheduled and confirmed sessions on that date.
	Active []*Session
}

// PlanDay resolves a mentor's date: template or exception, then bookings.
// exclude drops one session id from the active set so a session can be
// moved within its own day.
func PlanDay(ctx context.Context, repo Repository, mentorID, date, exclude string) (*DayPlan, error) {
	av, err := repo.GetAvailability(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	slots, err := av.SlotsFor(date)
	if err != nil {
		return nil, err
	}
	sessions, err := repo.ListActiveSessions(ctx, mentorID, date)
	if err != nil {
		return nil, err
	}
	active := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID != exclude {
			active = append(active, s)
		}
	}
	return &DayPlan{
		Availability: av,
		Open:         WithoutBooked(slots, active),
		Active:       active,
	}, nil
}

// CheckBookable verifies that startTime is open and the daily limit is not
// reached. It distinguishes a taken slot from one that was never offered.
func (p *DayPlan) CheckBookable(startTime string) error {
	if _, ok := FindSlot(p.Open, startTime); !ok {
		for _, s := range p.Active {
			if s.StartTime == startTime {
				return ErrSlotAlreadyBooked
			}
		}
		return ErrSlotUnavailable
	}
	if max := p.Availability.MaxSessionsPerDay; max > 0 && len(p.Active) >= max {
		return ErrDailyLimitReached
	}
	return nil
}
