package model

import "encoding/json"

type Role struct {
	Name string
	Team Team
}

var (
	R_HUMAN = Role{Name: "HUMAN", Team: T_HUMAN}
	R_AGENT = Role{Name: "AGENT", Team: T_AGENT}
	R_NONE  = Role{Name: "NONE", Team: T_NONE}
)

type Team string

const (
	T_HUMAN Team = "HUMANS"
	T_AGENT Team = "AGENTS"
	T_NONE  Team = "NONE"
)

func (r Role) String() string {
	return r.Name
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func RoleFromString(s string) Role {
	switch s {
	case "HUMAN":
		return R_HUMAN
	case "AGENT":
		return R_AGENT
	}
	return R_NONE
}

func TeamFromString(s string) Team {
	switch s {
	case "HUMANS":
		return T_HUMAN
	case "AGENTS":
		return T_AGENT
	}
	return T_NONE
}
