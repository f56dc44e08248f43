package model

// RecordType discriminates configuration records stored alongside tasks.
type RecordType string

const (
	RecordTeamRole           RecordType = "Team Role"
	RecordAdmin              RecordType = "Admin"
	RecordTeamLead           RecordType = "Team Lead"
	RecordTeamChannel        RecordType = "Team Channel"
	RecordPersonChannel      RecordType = "Person Channel"
	RecordTeamLogChannel     RecordType = "Team Log Channel"
	RecordTeamBacklogChannel RecordType = "Team Backlog Channel"
	RecordPrivateChannel     RecordType = "Private Channel"
	RecordUserTeam           RecordType = "User Team"
	RecordStatusBoard        RecordType = "Status Board"
)

// ConfigRecord is one key/type/value tuple of bot configuration: channel
// mappings, role membership and team membership. Team qualifies records that
// are scoped to one team (team leads, user-team assignments).
type ConfigRecord struct {
	ID    string
	Type  RecordType
	Key   string
	Value string
	Team  string
}
