package stf

import "strconv"

// LevelAchievement unlocks once a cashed-out game's round exceeds MinLevel
type LevelAchievement struct {
	MinLevel int
	ID       string
}

// LevelAchievements is checked in order on every submitScore
var LevelAchievements = buildLevelAchievements()

func buildLevelAchievements() []LevelAchievement {
	levels := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 15, 20, 25, 30, 35, 40, 45, 50}
	out := make([]LevelAchievement, len(levels))
	for i, l := range levels {
		out[i] = LevelAchievement{MinLevel: l, ID: "reach_level_" + strconv.Itoa(l)}
	}
	return out
}

// EarnedAchievements lists the ids unlocked by cashing out at level.
// The comparison is strict: reaching exactly MinLevel is not enough.
func EarnedAchievements(level int) []string {
	var ids []string
	for _, a := range LevelAchievements {
		if level > a.MinLevel {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
