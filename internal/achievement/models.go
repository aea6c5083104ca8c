package achievement

import "time"

type TriggerType string

const (
	TriggerRun      TriggerType = "run"
	TriggerArtifact TriggerType = "artifact"
	TriggerLocation TriggerType = "location"
)

const (
	FirstRun          = "first_run"
	Distance5K        = "distance_5k"
	Distance10K       = "distance_10k"
	ArtifactCollector = "artifact_collector"
	HistoryBuff       = "history_buff"
)

// Metrics carries whatever the trigger measured. Unused fields stay zero.
type Metrics struct {
	// Distance of the finished run in metres.
	Distance float64 `json:"distance,omitempty"`
	// CollectedCount is the number of artifacts the user owns after this collection.
	CollectedCount int `json:"collectedCount,omitempty"`
	// Count is the number of distinct historical locations visited.
	Count int `json:"count,omitempty"`
}

type Trigger struct {
	Type    TriggerType `json:"type"`
	Metrics Metrics     `json:"data"`
}

// Definition is a catalog entry.
type Definition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Points      int    `json:"points"`
}

// Achievement is a definition earned by a user.
type Achievement struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Points      int        `json:"points"`
	EarnedAt    *time.Time `json:"earnedAt,omitempty"`
}

type CheckRequest struct {
	UserID string      `json:"userId"`
	Type   TriggerType `json:"type"`
	Data   *Metrics    `json:"data"`
}

type CheckResult struct {
	NewAchievements []string `json:"newAchievements"`
	TotalPoints     int      `json:"totalPoints"`
}
