package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/zhafranr/nova-core/core/llms"
)

var indonesianMonths = [...]string{
	"", "Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

var indonesianDays = map[time.Weekday]string{
	time.Monday:    "Senin",
	time.Tuesday:   "Selasa",
	time.Wednesday: "Rabu",
	time.Thursday:  "Kamis",
	time.Friday:    "Jumat",
	time.Saturday:  "Sabtu",
	time.Sunday:    "Minggu",
}

func formatTime(now time.Time) string {
	return now.Format("15:04")
}

func formatDate(now time.Time) string {
	return fmt.Sprintf("%s, %d %s %d",
		indonesianDays[now.Weekday()], now.Day(),
		indonesianMonths[now.Month()], now.Year())
}

// TimeDateTools answers time and date queries locally, without any cloud
// call. now is swappable for tests; pass nil for the wall clock.
func TimeDateTools(now func() time.Time) []llms.Tool {
	if now == nil {
		now = time.Now
	}
	return []llms.Tool{
		llms.NewTool("get_current_time", "Get the current local time",
			func(context.Context, struct{}) (string, error) {
				return formatTime(now()), nil
			}),
		llms.NewTool("get_current_date", "Get the current local date",
			func(context.Context, struct{}) (string, error) {
				return formatDate(now()), nil
			}),
		llms.NewTool("get_current_datetime", "Get the current local date and time",
			func(context.Context, struct{}) (string, error) {
				t := now()
				return fmt.Sprintf("%s, pukul %s", formatDate(t), formatTime(t)), nil
			}),
	}
}
