package domain

import "fmt"

// ActorType identifies who is performing a command. It is carried explicitly
// into every state-machine call and audit record; there is no ambient
// "current user" anywhere in the core.
type ActorType string

const (
	ActorTraveler ActorType = "traveler"
	ActorAgent    ActorType = "agent"
	ActorAdmin    ActorType = "admin"
	ActorSystem   ActorType = "system"
)

type Actor struct {
	ID   string
	Type ActorType
}

// SystemActor is used by background sweeps and other platform-initiated
// transitions.
var SystemActor = Actor{ID: "system", Type: ActorSystem}

func ParseActorType(s string) (ActorType, error) {
	switch ActorType(s) {
	case ActorTraveler, ActorAgent, ActorAdmin, ActorSystem:
		return ActorType(s), nil
	}
	return "", &ValidationError{Field: "actorType", Message: fmt.Sprintf("unknown actor type %q", s)}
}

func (a Actor) Validate() error {
	if a.ID == "" {
		return &ValidationError{Field: "actorId", Message: "actor id is required"}
	}
	if _, err := ParseActorType(string(a.Type)); err != nil {
		return err
	}
	return nil
}
