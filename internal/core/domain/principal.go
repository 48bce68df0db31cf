package domain

type PrivilegeLevel int

const (
	LevelReader    PrivilegeLevel = 1
	LevelAssistant PrivilegeLevel = 2
	LevelLibrarian PrivilegeLevel = 3

	// LevelTop is the admin rank.
	LevelTop = LevelLibrarian

	// LevelLendingManage is required to create or update lending records.
	LevelLendingManage = LevelAssistant + 1
)

// Principal is an authenticated caller.
type Principal struct {
	ID    int64
	Email string
	Level PrivilegeLevel
}
