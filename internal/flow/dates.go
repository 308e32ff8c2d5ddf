package flow

import (
	"fmt"
	"strings"
	"time"
)

// DateOptionCount is how many upcoming dates a dynamic-date screen offers.
const DateOptionCount = 7

// Display layouts for generated date options.
const (
	dateISOLayout     = "2006-01-02"
	dateDisplayLayout = "Mon, 2 Jan"
)

// DateOption is one selectable calendar date in canonical and display form.
type DateOption struct {
	ISO     string `json:"iso"`
	Display string `json:"display"`
}

// NextDates returns count future calendar dates at offsets 1..count days from
// today. Deterministic given today; no side effects. Dynamic-date screens
// regenerate this sequence per request rather than caching it, so a turn that
// crosses a day boundary never shows stale dates.
func NextDates(today time.Time, count int) []DateOption {
	opts := make([]DateOption, 0, count)
	for i := 1; i <= count; i++ {
		d := today.AddDate(0, 0, i)
		opts = append(opts, DateOption{
			ISO:     d.Format(dateISOLayout),
			Display: d.Format(dateDisplayLayout),
		})
	}
	return opts
}

// RenderDateOptions formats a generated date sequence as a numbered list.
func RenderDateOptions(opts []DateOption) string {
	var sb strings.Builder
	for i, opt := range opts {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, opt.Display))
	}
	return sb.String()
}
