package klogging

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// SimpleFormatter implements logrus.Formatter: one line per event, fields sorted by key.
//
//	2025-04-01 10:00:00.000 INFO event=RunCompleted msg='best found' bestCost=0 runId=...
type SimpleFormatter struct{}

func NewSimpleFormatter() logrus.Formatter {
	return &SimpleFormatter{}
}

func (f *SimpleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(entry.Time.Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(strings.ToUpper(entry.Level.String()))
	if event, ok := entry.Data["event"]; ok {
		fmt.Fprintf(&sb, " event=%v", event)
	}
	sb.WriteString(" msg=")
	sb.WriteString(AddingAdditionalQuotes(entry.Message))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == "event" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(formatField(entry.Data[k]))
	}
	sb.WriteString("\n")
	return []byte(sb.String()), nil
}

func formatField(v interface{}) string {
	switch val := v.(type) {
	case string:
		return AddingAdditionalQuotes(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return AddingAdditionalQuotes(val.String())
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AddingAdditionalQuotes strips newlines and single-quotes strings that are empty or contain spaces.
func AddingAdditionalQuotes(v string) string {
	v = strings.ReplaceAll(v, "\n", "")
	if v == "" || strings.Contains(v, " ") {
		return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
	}
	return v
}
