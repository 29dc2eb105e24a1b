package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medibook/medibook/internal/domain/availability"
	"github.com/medibook/medibook/internal/platform/metrics"
)

var tracer = otel.Tracer("medibook/scheduling")

// WindowSource supplies the recurring availability and blackout dates of a
// doctor at one hospital. *availability.Service implements it.
type WindowSource interface {
	ActiveWindows(ctx context.Context, doctorID, hospitalID uuid.UUID) ([]availability.Window, error)
	BlackedOutDates(ctx context.Context, doctorID, hospitalID uuid.UUID, from, to time.Time) (map[string]bool, error)
	IsBlackedOut(ctx context.Context, doctorID, hospitalID uuid.UUID, date time.Time) (bool, error)
}

// Resolver combines generated slots with booked appointments into the
// occupancy view shown at time selection.
type Resolver struct {
	windows WindowSource
	booked  BookedSlotIndex
	metrics *metrics.SchedulingMetrics
	logger  zerolog.Logger
	loc     *time.Location
	now     func() time.Time
}

func NewResolver(windows WindowSource, booked BookedSlotIndex, m *metrics.SchedulingMetrics, loc *time.Location, logger zerolog.Logger) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{windows: windows, booked: booked, metrics: m, logger: logger, loc: loc, now: time.Now}
}

// Today returns the current facility-local date.
func (r *Resolver) Today() time.Time {
	return availability.DateOnly(r.now().In(r.loc))
}

// Location returns the facility time zone dates are interpreted in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns every slot the doctor's active windows generate on date,
// with its current occupancy. A date without windows, or with a blackout,
// yields an empty list rather than an error.
func (r *Resolver) Resolve(ctx context.Context, doctorID, hospitalID uuid.UUID, date time.Time) ([]Slot, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "scheduling.resolve", trace.WithAttributes(
		attribute.String("doctor_id", doctorID.String()),
		attribute.String("hospital_id", hospitalID.String()),
		attribute.String("date", availability.FormatDate(date)),
	))
	defer span.End()

	slots, err := r.resolve(ctx, doctorID, hospitalID, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		r.metrics.ObserveResolve("error", time.Since(start).Seconds())
		r.logger.Error().Err(err).
			Str("doctor_id", doctorID.String()).
			Str("hospital_id", hospitalID.String()).
			Str("date", availability.FormatDate(date)).
			Msg("slot resolution failed")
		return nil, err
	}

	outcome := "ok"
	if len(slots) == 0 {
		outcome = "empty"
	}
	span.SetAttributes(attribute.Int("slots", len(slots)))
	r.metrics.ObserveResolve(outcome, time.Since(start).Seconds())
	return slots, nil
}

func (r *Resolver) resolve(ctx context.Context, doctorID, hospitalID uuid.UUID, date time.Time) ([]Slot, error) {
	windows, err := r.windows.ActiveWindows(ctx, doctorID, hospitalID)
	if err != nil {
		return nil, err
	}
	if !availability.HasSlotOn(windows, date) {
		return []Slot{}, nil
	}
	blackedOut, err := r.windows.IsBlackedOut(ctx, doctorID, hospitalID, date)
	if err != nil {
		return nil, err
	}
	if blackedOut {
		return []Slot{}, nil
	}
	return r.occupancy(ctx, windows, doctorID, date)
}

func (r *Resolver) occupancy(ctx context.Context, windows []availability.Window, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	candidates := availability.Generate(windows, date)
	if len(candidates) == 0 {
		return []Slot{}, nil
	}
	booked, err := r.booked.BookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(booked))
	for _, t := range booked {
		if n, err := availability.NormalizeTime(t); err == nil {
			counts[n]++
		}
	}

	// Duplicates from overlapping windows report the capacity the committer
	// enforces, the largest among the windows generating that time.
	day := availability.FormatDate(date)
	slots := make([]Slot, 0, len(candidates))
	for _, c := range candidates {
		capacity := c.Capacity
		if at, err := availability.ParseClock(c.Time); err == nil {
			if largest, ok := availability.CapacityAt(windows, date, at); ok {
				capacity = largest
			}
		}
		n := counts[c.Time]
		slots = append(slots, Slot{
			Date:        day,
			Time:        c.Time,
			Capacity:    capacity,
			BookedCount: n,
			Available:   n < capacity,
		})
	}
	return slots, nil
}

// ResolveWeek summarizes the seven days starting at weekStart for calendar
// navigation. Past days, blacked-out days and days whose windows generate no
// slot are not selectable.
func (r *Resolver) ResolveWeek(ctx context.Context, doctorID, hospitalID uuid.UUID, weekStart time.Time) (*Week, error) {
	ctx, span := tracer.Start(ctx, "scheduling.resolve_week", trace.WithAttributes(
		attribute.String("doctor_id", doctorID.String()),
		attribute.String("hospital_id", hospitalID.String()),
		attribute.String("week_start", availability.FormatDate(weekStart)),
	))
	defer span.End()

	weekStart = availability.DateOnly(weekStart)
	weekEnd := weekStart.AddDate(0, 0, 6)

	windows, err := r.windows.ActiveWindows(ctx, doctorID, hospitalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load windows failed")
		return nil, err
	}
	blackouts, err := r.windows.BlackedOutDates(ctx, doctorID, hospitalID, weekStart, weekEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load blackouts failed")
		return nil, err
	}

	today := r.Today()
	week := &Week{
		DoctorID:   doctorID,
		HospitalID: hospitalID,
		Start:      availability.FormatDate(weekStart),
		Days:       make([]Day, 0, 7),
	}
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i)
		key := availability.FormatDate(date)
		day := Day{Date: key, Weekday: date.Weekday().String()}

		past := key < availability.FormatDate(today)
		if !past && !blackouts[key] && availability.HasSlotOn(windows, date) {
			slots, err := r.occupancy(ctx, windows, doctorID, date)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "load booked times failed")
				return nil, err
			}
			day.Selectable = len(slots) > 0
			day.SlotCount = len(slots)
			for _, s := range slots {
				if s.Available {
					day.AvailableCount++
				}
			}
		}
		week.Days = append(week.Days, day)
	}
	return week, nil
}

// IsSelectable reports whether date can be picked at time selection: it is
// not in the past, not blacked out and its windows generate at least one slot.
func (r *Resolver) IsSelectable(ctx context.Context, doctorID, hospitalID uuid.UUID, date time.Time) (bool, error) {
	if availability.FormatDate(date) < availability.FormatDate(r.Today()) {
		return false, nil
	}
	windows, err := r.windows.ActiveWindows(ctx, doctorID, hospitalID)
	if err != nil {
		return false, err
	}
	if !availability.HasSlotOn(windows, date) {
		return false, nil
	}
	blackedOut, err := r.windows.IsBlackedOut(ctx, doctorID, hospitalID, date)
	if err != nil {
		return false, err
	}
	return !blackedOut, nil
}
