package engine

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/duration"
)

// newEvent is a CreateRequest that passed validation.
type newEvent struct {
	title   string
	length  time.Duration
	channel string
	winners int
	image   string
}

// validate checks a request without touching the store. Titles are
// NFC-normalized so the length bound counts what users see.
func (e *Engine) validate(req domain.CreateRequest) (newEvent, error) {
	title := norm.NFC.String(strings.TrimSpace(req.Title))
	if title == "" {
		return newEvent{}, validationError(CodeInvalidTitle, "title is required")
	}
	if n := utf8.RuneCountInString(title); n > domain.MaxTitleLength {
		return newEvent{}, validationError(CodeTitleTooLong,
			"title is %d characters, limit is %d", n, domain.MaxTitleLength)
	}

	if req.Winners < 1 {
		return newEvent{}, validationError(CodeInvalidWinnerCount,
			"winner count must be at least 1, got %d", req.Winners)
	}

	length, err := e.parseLength(req.Length)
	if err != nil {
		return newEvent{}, err
	}

	channel := strings.TrimSpace(req.Channel)
	if channel == "" {
		return newEvent{}, validationError(CodeInvalidLocation, "channel is required")
	}

	image := strings.TrimSpace(req.Image)
	if image != "" {
		u, err := url.Parse(image)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return newEvent{}, validationError(CodeInvalidImage, "image must be an http(s) URL")
		}
	}

	return newEvent{
		title:   title,
		length:  length,
		channel: channel,
		winners: req.Winners,
		image:   image,
	}, nil
}

// parseLength turns a duration spec into a positive duration. A spec with no
// recognizable tokens is rejected rather than creating a zero-length event.
func (e *Engine) parseLength(spec string) (time.Duration, error) {
	var d time.Duration
	if e.strictDurations {
		var err error
		if d, err = duration.ParseStrict(spec); err != nil {
			return 0, validationError(CodeInvalidDuration, "invalid duration %q, use e.g. 1d2h30m", spec)
		}
	} else {
		d = duration.Parse(spec)
	}
	if d <= 0 {
		return 0, validationError(CodeInvalidDuration, "duration %q is zero, use e.g. 1d2h30m", spec)
	}
	return d, nil
}

// CreateEvent validates req, presents the event, persists it and arms its
// expiration. Returns the stored event with its id and end time.
//
// The id and end time are fixed in one loop step. Presentation runs on the
// caller's goroutine so the loop keeps serving entries and deadlines while
// the adapter works; persistence and registration follow in a second step.
// If presentation fails nothing is stored. The id is consumed either way.
func (e *Engine) CreateEvent(ctx context.Context, req domain.CreateRequest) (domain.Event, error) {
	v, err := e.validate(req)
	if err != nil {
		return domain.Event{}, err
	}

	var (
		ev    domain.Event
		opErr error
	)
	if err := e.call(ctx, func() { ev, opErr = e.allocate(ctx, v) }); err != nil {
		return domain.Event{}, err
	}
	if opErr != nil {
		return domain.Event{}, opErr
	}

	handle, err := e.presenter.Present(ctx, ev.Location, e.snapshot(ev, domain.StatusScheduled))
	if err != nil {
		return domain.Event{}, presentationError(ev.ID, "present event", err)
	}
	ev.Location.Message = handle

	if err := e.call(ctx, func() { opErr = e.register(ctx, ev) }); err != nil {
		opErr = err
	}
	if opErr != nil {
		if ferr := e.presenter.Finish(ctx, ev.Location, e.snapshot(ev, domain.StatusCancelled)); ferr != nil {
			e.logger.Warn("withdraw presentation of unsaved event failed", "event", ev.ID, "error", ferr)
		}
		return domain.Event{}, opErr
	}

	e.logger.Info("event created",
		"event", ev.ID,
		"channel", ev.Location.Channel,
		"end_time", ev.EndTime,
		"winners", ev.WinnerCount,
	)
	return ev, nil
}

// allocate assigns the next id and the end time.
// Runs on the Run goroutine; id allocation is serialized.
func (e *Engine) allocate(ctx context.Context, v newEvent) (domain.Event, error) {
	now := e.clock.Now().UTC().Truncate(time.Second)

	id, err := e.ids.Next(ctx, now.Year())
	if err != nil {
		return domain.Event{}, storageError("", "allocate event id", err)
	}

	return domain.Event{
		ID:          id,
		Title:       v.title,
		Location:    domain.Location{Channel: v.channel},
		EndTime:     now.Add(v.length),
		WinnerCount: v.winners,
		Image:       v.image,
	}, nil
}

// register persists a presented event and arms its deadline.
// Runs on the Run goroutine.
func (e *Engine) register(ctx context.Context, ev domain.Event) error {
	if err := e.store.AddEvent(ctx, ev); err != nil {
		return storageError(ev.ID, "save event", err)
	}
	e.registry[ev.ID] = ev
	e.schedule.Push(ev.ID, ev.EndTime)
	return nil
}
