package commands

import (
	"fmt"
	"strings"

	"github.com/sandeepkv93/trackd/internal/model"
)

type Type string

const (
	TypeAdd      Type = "add"
	TypeToggle   Type = "toggle"
	TypeDelete   Type = "delete"
	TypeDate     Type = "date"
	TypeFilter   Type = "filter"
	TypeSearch   Type = "search"
	TypeCategory Type = "category"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AddArgs comes from "add <title> cat:<category> days:<mon,wed|irregular>".
type AddArgs struct {
	Title    string
	Category string
	Schedule model.Schedule
	Type     model.TrackerType
}

// TargetArgs names a tracker by "selected" or by a title fragment.
type TargetArgs struct {
	Target string
}

// DateArgs holds "today", a signed day offset such as "+1", or YYYY-MM-DD.
type DateArgs struct {
	Value string
}

type FilterArgs struct {
	Filter model.Filter
}

type SearchArgs struct {
	Text string
}

type CategoryAction string

const (
	CategoryAdd    CategoryAction = "add"
	CategoryRemove CategoryAction = "rm"
	CategoryRename CategoryAction = "rename"
)

// CategoryArgs: "category add <title>", "category rm <title>",
// "category rename <old> -> <new>".
type CategoryArgs struct {
	Action   CategoryAction
	Title    string
	NewTitle string
}

type Command struct {
	Type     Type
	Raw      string
	Add      *AddArgs
	Target   *TargetArgs
	Date     *DateArgs
	Filter   *FilterArgs
	Search   *SearchArgs
	Category *CategoryArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeToggle, "done":
		return parseTarget(input, TypeToggle, args)
	case TypeDelete, "rm":
		return parseTarget(input, TypeDelete, args)
	case TypeDate:
		return parseDate(input, args)
	case TypeFilter:
		return parseFilter(input, args)
	case TypeSearch, "find":
		return Command{Type: TypeSearch, Raw: input, Search: &SearchArgs{Text: strings.Join(args, " ")}}, nil
	case TypeCategory, "cat":
		return parseCategory(input, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseAdd(raw string, args []string) (Command, error) {
	out := AddArgs{Type: model.TrackerTypeHabit}
	title := make([]string, 0, len(args))
	for _, arg := range args {
		lower := strings.ToLower(arg)
		switch {
		case strings.HasPrefix(lower, "cat:"):
			out.Category = strings.TrimSpace(arg[len("cat:"):])
		case strings.HasPrefix(lower, "days:"):
			value := strings.TrimSpace(arg[len("days:"):])
			if strings.EqualFold(value, "irregular") {
				out.Type = model.TrackerTypeIrregular
				continue
			}
			schedule, err := parseDays(value)
			if err != nil {
				return Command{}, err
			}
			out.Schedule = schedule
		default:
			title = append(title, arg)
		}
	}
	out.Title = strings.TrimSpace(strings.Join(title, " "))
	if out.Title == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires a title"}
	}
	if len([]rune(out.Title)) > model.MaxTitleLength {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("title is longer than %d characters", model.MaxTitleLength)}
	}
	if out.Category == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires cat:<category>"}
	}
	return Command{Type: TypeAdd, Raw: raw, Add: &out}, nil
}

func parseDays(value string) (model.Schedule, error) {
	days := make([]model.Weekday, 0, 7)
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := model.ParseWeekday(part)
		if err != nil {
			return nil, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown weekday %q", part)}
		}
		days = append(days, d)
	}
	return model.NewSchedule(days...), nil
}

func parseTarget(raw string, typ Type, args []string) (Command, error) {
	target := strings.TrimSpace(strings.Join(args, " "))
	if target == "" {
		target = "selected"
	}
	return Command{Type: typ, Raw: raw, Target: &TargetArgs{Target: target}}, nil
}

func parseDate(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "date requires today, +N, -N or YYYY-MM-DD"}
	}
	return Command{Type: TypeDate, Raw: raw, Date: &DateArgs{Value: strings.ToLower(args[0])}}, nil
}

func parseFilter(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "filter requires all, today, completed or incomplete"}
	}
	f, err := model.ParseFilter(args[0])
	if err != nil {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: err.Error()}
	}
	return Command{Type: TypeFilter, Raw: raw, Filter: &FilterArgs{Filter: f}}, nil
}

func parseCategory(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "category requires an action and a title"}
	}
	action := CategoryAction(strings.ToLower(args[0]))
	rest := strings.TrimSpace(strings.Join(args[1:], " "))
	switch action {
	case CategoryAdd, CategoryRemove:
		return Command{Type: TypeCategory, Raw: raw, Category: &CategoryArgs{Action: action, Title: rest}}, nil
	case CategoryRename:
		old, next, ok := strings.Cut(rest, "->")
		old, next = strings.TrimSpace(old), strings.TrimSpace(next)
		if !ok || old == "" || next == "" {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "rename expects <old> -> <new>"}
		}
		return Command{Type: TypeCategory, Raw: raw, Category: &CategoryArgs{Action: action, Title: old, NewTitle: next}}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown category action: %s", action)}
	}
}
