package orchestrator

import (
	"fmt"
	"time"

	"github.com/okian/codeboard/internal/domain/model"
)

func suspended(id string, task model.SyncTask, at time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		StudentID: task.StudentID,
		Title:     fmt.Sprintf("%s sync paused", displayName(task.Platform)),
		Message: fmt.Sprintf("We could not reach your %s profile %q. This is usually temporary: "+
			"your previous stats are kept and we will retry automatically.", displayName(task.Platform), task.Username),
		StatusTag: model.TagSuspended,
		CreatedAt: at,
	}
}

func reactivated(id string, task model.SyncTask, at time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		StudentID: task.StudentID,
		Title:     fmt.Sprintf("%s sync restored", displayName(task.Platform)),
		Message: fmt.Sprintf("Your %s profile %q synced successfully and counts towards your score again.",
			displayName(task.Platform), task.Username),
		StatusTag: model.TagReactivated,
		CreatedAt: at,
	}
}

func displayName(p model.Platform) string {
	switch p {
	case model.LeetCode:
		return "LeetCode"
	case model.CodeChef:
		return "CodeChef"
	case model.Codeforces:
		return "Codeforces"
	case model.HackerRank:
		return "HackerRank"
	case model.GitHub:
		return "GitHub"
	}
	return string(p)
}
