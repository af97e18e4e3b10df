package salesforce

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Task is a completed activity logged against a Lead.
type Task struct {
	WhoID       string
	Subject     string
	Description string
	Type        string // SMS, Call
	Date        time.Time
}

func (t Task) fields() map[string]any {
	return map[string]any{
		"WhoId":        t.WhoID,
		"Subject":      t.Subject,
		"Description":  t.Description,
		"Type":         t.Type,
		"Status":       "Completed",
		"Priority":     "Normal",
		"ActivityDate": t.Date.UTC().Format(time.DateOnly),
	}
}

// LogTask records a single activity and returns the new Task ID.
func LogTask(ctx context.Context, c Client, t Task) (string, error) {
	if t.WhoID == "" {
		return "", eris.New("sf: task needs a lead id")
	}
	id, err := c.InsertOne(ctx, "Task", t.fields())
	if err != nil {
		return "", eris.Wrapf(err, "sf: log task for %s", t.WhoID)
	}
	return id, nil
}

// LogTasks records activities in one collection call. Results are in input
// order.
func LogTasks(ctx context.Context, c Client, tasks []Task) ([]CollectionResult, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	recs := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		if t.WhoID == "" {
			return nil, eris.Errorf("sf: task %d needs a lead id", i)
		}
		recs[i] = t.fields()
	}
	res, err := c.InsertCollection(ctx, "Task", recs)
	return res, eris.Wrap(err, "sf: log tasks")
}
