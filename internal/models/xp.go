package models

import "time"

// XPRole names a category of XP earned by a user.
type XPRole string

const (
	XPRoleDeveloper     XPRole = "developer"
	XPRolePresenter     XPRole = "presenter"
	XPRoleDesigner      XPRole = "designer"
	XPRoleOrganizer     XPRole = "organizer"
	XPRoleProblemSolver XPRole = "problemSolver"
	XPRoleBestPerformer XPRole = "bestPerformer"
	XPRoleParticipation XPRole = "participation"
)

// XPRoles lists every role in storage order.
var XPRoles = []XPRole{
	XPRoleDeveloper,
	XPRolePresenter,
	XPRoleDesigner,
	XPRoleOrganizer,
	XPRoleProblemSolver,
	XPRoleBestPerformer,
	XPRoleParticipation,
}

// Valid reports whether the role is known.
func (r XPRole) Valid() bool {
	for _, role := range XPRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Field returns the persisted field name for the role, e.g. xp_developer.
func (r XPRole) Field() string {
	return "xp_" + string(r)
}

// XPData is a user's accumulated XP record.
type XPData struct {
	UID               string    `firestore:"uid" db:"uid" json:"uid"`
	TotalCalculatedXP int       `firestore:"totalCalculatedXp" db:"total_calculated_xp" json:"totalCalculatedXp"`
	XPDeveloper       int       `firestore:"xp_developer" db:"xp_developer" json:"xp_developer"`
	XPPresenter       int       `firestore:"xp_presenter" db:"xp_presenter" json:"xp_presenter"`
	XPDesigner        int       `firestore:"xp_designer" db:"xp_designer" json:"xp_designer"`
	XPOrganizer       int       `firestore:"xp_organizer" db:"xp_organizer" json:"xp_organizer"`
	XPProblemSolver   int       `firestore:"xp_problemSolver" db:"xp_problem_solver" json:"xp_problemSolver"`
	XPBestPerformer   int       `firestore:"xp_bestPerformer" db:"xp_best_performer" json:"xp_bestPerformer"`
	XPParticipation   int       `firestore:"xp_participation" db:"xp_participation" json:"xp_participation"`
	CountWins         int       `firestore:"count_wins" db:"count_wins" json:"count_wins"`
	LastUpdatedAt     time.Time `firestore:"lastUpdatedAt" db:"last_updated_at" json:"lastUpdatedAt"`
}

// RoleXP returns the XP stored for role.
func (d *XPData) RoleXP(role XPRole) int {
	switch role {
	case XPRoleDeveloper:
		return d.XPDeveloper
	case XPRolePresenter:
		return d.XPPresenter
	case XPRoleDesigner:
		return d.XPDesigner
	case XPRoleOrganizer:
		return d.XPOrganizer
	case XPRoleProblemSolver:
		return d.XPProblemSolver
	case XPRoleBestPerformer:
		return d.XPBestPerformer
	case XPRoleParticipation:
		return d.XPParticipation
	}
	return 0
}

// Apply adds delta to the record, incrementing the total together with each role.
func (d *XPData) Apply(delta XPDelta) {
	for role, points := range delta.Roles {
		switch role {
		case XPRoleDeveloper:
			d.XPDeveloper += points
		case XPRolePresenter:
			d.XPPresenter += points
		case XPRoleDesigner:
			d.XPDesigner += points
		case XPRoleOrganizer:
			d.XPOrganizer += points
		case XPRoleProblemSolver:
			d.XPProblemSolver += points
		case XPRoleBestPerformer:
			d.XPBestPerformer += points
		case XPRoleParticipation:
			d.XPParticipation += points
		default:
			continue
		}
		d.TotalCalculatedXP += points
	}
	d.CountWins += delta.Wins
}

// RoleSum returns the sum of all xp_* fields.
func (d *XPData) RoleSum() int {
	total := 0
	for _, role := range XPRoles {
		total += d.RoleXP(role)
	}
	return total
}

// XPDelta is the XP awarded to a single user by one event closure.
type XPDelta struct {
	Roles map[XPRole]int `json:"roles"`
	Wins  int            `json:"wins"`
}

// Add credits points under role.
func (d *XPDelta) Add(role XPRole, points int) {
	if d.Roles == nil {
		d.Roles = make(map[XPRole]int)
	}
	d.Roles[role] += points
}

// Total returns the sum of role deltas for known roles.
func (d XPDelta) Total() int {
	total := 0
	for role, points := range d.Roles {
		if role.Valid() {
			total += points
		}
	}
	return total
}
