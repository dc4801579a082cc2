package assistant

import (
	"encoding/json"

	"github.com/Veraticus/bizpilot/internal/llm"
	"github.com/Veraticus/bizpilot/internal/model"
)

type schema = map[string]any

func object(required []string, properties schema) json.RawMessage {
	raw, err := json.Marshal(schema{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	})
	if err != nil {
		panic(err) // static schemas always encode
	}
	return raw
}

func stringProp(description string) schema {
	return schema{"type": "string", "description": description}
}

func enumProp(description string, values ...string) schema {
	return schema{"type": "string", "description": description, "enum": values}
}

func taskStatusValues() []string {
	values := make([]string, len(model.TaskStatuses))
	for i, status := range model.TaskStatuses {
		values[i] = string(status)
	}
	return values
}

// coreTools are always declared.
func coreTools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        string(model.ActionUpdateTaskStatus),
			Description: "Change the status of an existing task.",
			Parameters: object([]string{"taskId", "status"}, schema{
				"taskId": stringProp("The id of the task, shown in square brackets."),
				"status": enumProp("The new status.", taskStatusValues()...),
			}),
		},
		{
			Name:        string(model.ActionUpdateGoalProgress),
			Description: "Set the progress percentage of an existing goal.",
			Parameters: object([]string{"goalId", "progress"}, schema{
				"goalId": stringProp("The id of the goal, shown in square brackets."),
				"progress": schema{
					"type":        "number",
					"minimum":     model.MinProgress,
					"maximum":     model.MaxProgress,
					"description": "Progress from 0 to 100.",
				},
			}),
		},
	}
}

// extendedTools create new records.
func extendedTools() []llm.Tool {
	dateProp := stringProp("A date as YYYY-MM-DD or an RFC 3339 timestamp.")
	amountProp := schema{"type": "number", "description": "Amount in major currency units, e.g. 1234.56."}

	return []llm.Tool{
		{
			Name:        string(model.ActionCreateTask),
			Description: "Create a new task.",
			Parameters: object([]string{"title"}, schema{
				"title":       stringProp("Short task title."),
				"description": stringProp("Optional details."),
				"priority":    enumProp("Task priority.", string(model.PriorityLow), string(model.PriorityMedium), string(model.PriorityHigh)),
				"dueDate":     dateProp,
			}),
		},
		{
			Name:        string(model.ActionCreateGoal),
			Description: "Create a new business goal.",
			Parameters: object([]string{"title", "type"}, schema{
				"title":        stringProp("Short goal title."),
				"description":  stringProp("Optional details."),
				"type":         enumProp("What the goal measures.", string(model.GoalRevenue), string(model.GoalExpense), string(model.GoalOther)),
				"category":     stringProp("Optional category."),
				"targetAmount": amountProp,
				"targetDate":   dateProp,
			}),
		},
		{
			Name:        string(model.ActionCreateCalendarEvent),
			Description: "Schedule a calendar event.",
			Parameters: object([]string{"title", "startTime"}, schema{
				"title":       stringProp("Event title."),
				"startTime":   stringProp("Start as an RFC 3339 timestamp."),
				"endTime":     stringProp("Optional end as an RFC 3339 timestamp."),
				"description": stringProp("Optional details."),
				"location":    stringProp("Optional location."),
			}),
		},
		{
			Name:        string(model.ActionCreateFinancialRecord),
			Description: "Record revenue earned or an expense paid.",
			Parameters: object([]string{"type", "category", "amount"}, schema{
				"type":        enumProp("Record type.", string(model.RecordRevenue), string(model.RecordExpense), string(model.RecordOther)),
				"category":    stringProp("Category such as rent or consulting."),
				"amount":      amountProp,
				"description": stringProp("Optional details."),
				"date":        dateProp,
			}),
		},
	}
}

// Tools returns the declared tool set.
func Tools(extended bool) []llm.Tool {
	tools := coreTools()
	if extended {
		tools = append(tools, extendedTools()...)
	}
	return tools
}
