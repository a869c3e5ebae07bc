package workflow

// Actor types.
const (
	ActorAdmin  = "admin"
	ActorSystem = "system"
	ActorShop   = "shop"
)

// Actor identifies who performs an action.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

// Admin returns a back-office administrator actor.
func Admin(id, email string) Actor { return Actor{ID: id, Email: email, Type: ActorAdmin} }

// System returns an actor for automated callers such as the gateway or the sweeper.
func System(id string) Actor { return Actor{ID: id, Type: ActorSystem} }

func (a Actor) kind() string {
	if a.Type == "" {
		return ActorAdmin
	}
	return a.Type
}
