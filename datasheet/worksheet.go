package datasheet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

const (
	USER_ENTERED = "USER_ENTERED"

	defaultRateLimit  = 1 // requests/second, Sheets API allows 60 read/write requests per minute per user
	defaultRateBurst  = 5
	defaultRetries    = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 8 * time.Second
)

// Worksheet is the subset of a Google Sheets worksheet used by a DataSheet.
// Ranges passed to BatchUpdate are relative to the worksheet i.e. 'B2' rather
// than 'Sheet1!B2'.
type Worksheet interface {
	Get(ctx context.Context) (*sheets.ValueRange, error)
	BatchUpdate(ctx context.Context, data []*sheets.ValueRange) error
}

// GoogleWorksheet implements Worksheet over the Google Sheets v4 API.
type GoogleWorksheet struct {
	service     *sheets.Service
	spreadsheet string
	title       string
	limiter     *rate.Limiter
	retries     int
	backoff     time.Duration
	maxBackoff  time.Duration
	log         zerolog.Logger
}

type GoogleOption func(*GoogleWorksheet)

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(limit rate.Limit, burst int) GoogleOption {
	return func(w *GoogleWorksheet) {
		if limit > 0 && burst > 0 {
			w.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithRetries sets the number of times a request that failed with a quota or
// server error is retried.
func WithRetries(retries int, backoff time.Duration) GoogleOption {
	return func(w *GoogleWorksheet) {
		if retries >= 0 {
			w.retries = retries
		}

		if backoff > 0 {
			w.backoff = backoff
		}
	}
}

func WithWorksheetLogger(log zerolog.Logger) GoogleOption {
	return func(w *GoogleWorksheet) {
		w.log = log
	}
}

func NewGoogleWorksheet(service *sheets.Service, spreadsheet, title string, opts ...GoogleOption) *GoogleWorksheet {
	w := GoogleWorksheet{
		service:     service,
		spreadsheet: spreadsheet,
		title:       title,
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateBurst),
		retries:     defaultRetries,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
		log:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&w)
	}

	return &w
}

// OpenGoogleWorksheet looks up a worksheet by title (case insensitive) in a
// spreadsheet. An empty title selects the first worksheet.
func OpenGoogleWorksheet(ctx context.Context, service *sheets.Service, spreadsheet, title string, opts ...GoogleOption) (*GoogleWorksheet, error) {
	response, err := service.Spreadsheets.Get(spreadsheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spreadsheet (%w)", err)
	}

	for _, sheet := range response.Sheets {
		if sheet.Properties == nil {
			continue
		}

		if title == "" || normalise(sheet.Properties.Title) == normalise(title) {
			return NewGoogleWorksheet(service, spreadsheet, sheet.Properties.Title, opts...), nil
		}
	}

	return nil, fmt.Errorf("unable to identify worksheet '%s'", title)
}

func (w *GoogleWorksheet) Title() string {
	return w.title
}

func (w *GoogleWorksheet) Get(ctx context.Context) (*sheets.ValueRange, error) {
	var response *sheets.ValueRange

	err := w.do(ctx, "get", func() (err error) {
		response, err = w.service.Spreadsheets.Values.Get(w.spreadsheet, quote(w.title)).Context(ctx).Do()
		return
	})

	if err != nil {
		return nil, fmt.Errorf("unable to retrieve data from worksheet '%s' (%w)", w.title, err)
	}

	return response, nil
}

func (w *GoogleWorksheet) BatchUpdate(ctx context.Context, data []*sheets.ValueRange) error {
	if len(data) == 0 {
		return nil
	}

	qualified := make([]*sheets.ValueRange, 0, len(data))
	for _, v := range data {
		qualified = append(qualified, &sheets.ValueRange{
			Range:  qualify(w.title, v.Range),
			Values: v.Values,
		})
	}

	rq := sheets.BatchUpdateValuesRequest{
		ValueInputOption: USER_ENTERED,
		Data:             qualified,
	}

	return w.do(ctx, "batch-update", func() error {
		_, err := w.service.Spreadsheets.Values.BatchUpdate(w.spreadsheet, &rq).Context(ctx).Do()
		return err
	})
}

func (w *GoogleWorksheet) do(ctx context.Context, op string, f func() error) error {
	delay := w.backoff

	for attempt := 0; ; attempt++ {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := f()
		if err == nil || attempt >= w.retries || !retryable(err) {
			return err
		}

		w.log.Debug().
			Str("worksheet", w.title).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Err(err).
			Msg("retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if delay *= 2; delay > w.maxBackoff {
			delay = w.maxBackoff
		}
	}
}

func retryable(err error) bool {
	var apierr *googleapi.Error
	if errors.As(err, &apierr) {
		return apierr.Code == http.StatusTooManyRequests || apierr.Code >= http.StatusInternalServerError
	}

	return false
}
