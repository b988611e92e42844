// models/models.go
package models

// LeaderboardRow is a leaderboard line as served to clients.
type LeaderboardRow struct {
	Rank                int    `json:"rank"`
	UserID              string `json:"user_id,omitempty"`
	Username            string `json:"username"`
	FullName            string `json:"full_name,omitempty"`
	TotalScore          int    `json:"total_score"`
	CompletionTime      *int   `json:"completion_time"`
	GamesCompleted      int    `json:"games_completed,omitempty"`
	Difficulty          string `json:"difficulty,omitempty"`
	QuantumMasteryLevel int    `json:"quantum_mastery_level,omitempty"`
}

// Leaderboard is a ranked list plus where it came from.
type Leaderboard struct {
	Entries []LeaderboardRow `json:"entries"`
	Type    string           `json:"type"`
	Source  string           `json:"source"`
}

// PlayerStats summarises a user for the rpc surface.
type PlayerStats struct {
	GamesCompleted     int  `json:"games_completed"`
	TotalScore         int  `json:"total_score"`
	TotalPlaytime      int  `json:"total_playtime"`
	BestCompletionTime *int `json:"best_completion_time"`
	Achievements       int  `json:"achievements"`
	LeaderboardEntries int  `json:"leaderboard_entries"`
}

// Room is a catalogue entry.
type Room struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"`
	Unlocked   bool   `json:"unlocked"`
}

// Rooms is the static room catalogue.
var Rooms = []Room{
	{ID: "superposition", Name: "Superposition Tower", Difficulty: "easy", Unlocked: true},
	{ID: "entanglement", Name: "Entanglement Bridge", Difficulty: "medium", Unlocked: false},
	{ID: "tunneling", Name: "Tunneling Vault", Difficulty: "hard", Unlocked: false},
}
