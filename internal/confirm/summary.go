package confirm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/haasonsaas/steward/internal/agent"
)

// summaryFormatter renders a tool's pending arguments as a short
// user-readable block.
type summaryFormatter func(args map[string]any) string

var formatters = map[string]summaryFormatter{
	"schedule_task":         summarizeSchedule,
	"cancel_scheduled_task": summarizeCancel,
}

var titleCaser = cases.Title(language.English)

// Summarize produces the human text a confirmation prompt shows for a
// pending call. A description written by the tool's enricher wins over the
// declarative formatter; the formatter wins over the loop's mechanical
// name-plus-args default.
func Summarize(call *agent.PendingToolCall) string {
	if call == nil {
		return ""
	}

	enriched := call.Description != "" && call.Description != mechanicalDescription(call.Name, call.Args)

	if enriched {
		return call.Description
	}
	if formatter, ok := formatters[call.Name]; ok {
		if s := formatter(call.Args); s != "" {
			return s
		}
	}
	return fallbackSummary(call.Name, call.Args)
}

func summarizeSchedule(args map[string]any) string {
	name := stringArg(args, "name")
	if name == "" {
		return ""
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Schedule task %q", name))

	if cron := stringArg(args, "cron"); cron != "" {
		lines = append(lines, "When: "+HumanizeCron(cron))
	} else if runAt := stringArg(args, "run_at"); runAt != "" {
		lines = append(lines, "When: once at "+runAt)
	}
	if msg := stringArg(args, "message"); msg != "" {
		lines = append(lines, "Message: "+truncate(msg, 120))
	} else if prompt := stringArg(args, "prompt"); prompt != "" {
		lines = append(lines, "Prompt: "+truncate(prompt, 120))
	}
	if channel := stringArg(args, "channel"); channel != "" {
		lines = append(lines, "Channel: "+channel)
	}
	return strings.Join(lines, "\n")
}

func summarizeCancel(args map[string]any) string {
	id := stringArg(args, "task_id")
	if id == "" {
		return ""
	}
	return fmt.Sprintf("Cancel scheduled task %s", truncate(id, 12))
}

// HumanizeCron renders common 5-field cron expressions as plain English.
// Expressions it does not recognize come back quoted but unchanged.
func HumanizeCron(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Sprintf("on schedule %q", expr)
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	if strings.HasPrefix(minute, "*/") && hour == "*" && dom == "*" && month == "*" && dow == "*" {
		if n, err := strconv.Atoi(minute[2:]); err == nil {
			if n == 1 {
				return "every minute"
			}
			return fmt.Sprintf("every %d minutes", n)
		}
	}

	m, mErr := strconv.Atoi(minute)
	h, hErr := strconv.Atoi(hour)
	if mErr == nil && hErr == nil && dom == "*" && month == "*" {
		at := fmt.Sprintf("%02d:%02d", h, m)
		if dow == "*" {
			return "every day at " + at
		}
		if day, ok := weekdayName(dow); ok {
			return fmt.Sprintf("every %s at %s", day, at)
		}
	}
	if mErr == nil && hErr == nil && dow == "*" && month == "*" {
		if d, err := strconv.Atoi(dom); err == nil {
			return fmt.Sprintf("on day %d of every month at %02d:%02d", d, h, m)
		}
	}

	return fmt.Sprintf("on schedule %q", expr)
}

func weekdayName(dow string) (string, bool) {
	names := map[string]string{
		"0": "Sunday", "1": "Monday", "2": "Tuesday", "3": "Wednesday",
		"4": "Thursday", "5": "Friday", "6": "Saturday", "7": "Sunday",
	}
	name, ok := names[dow]
	return name, ok
}

// fallbackSummary is the generic rendering for tools without a formatter:
// title-cased tool name plus truncated arguments.
func fallbackSummary(name string, args map[string]any) string {
	title := titleCaser.String(strings.ReplaceAll(name, "_", " "))
	argsJSON, err := json.Marshal(args)
	if err != nil || string(argsJSON) == "{}" || string(argsJSON) == "null" {
		return title
	}
	return title + "\n" + truncate(string(argsJSON), 200)
}

// mechanicalDescription mirrors the turn loop's default description so
// Summarize can tell an enriched description from the default.
func mechanicalDescription(name string, args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil || string(b) == "{}" {
		return name
	}
	s := string(b)
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return name + " " + s
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
