package core

// -----------------------------------------------------------------------------
// Component Kind
// -----------------------------------------------------------------------------

// ComponentKind separates the three registry namespaces. The same name may be
// registered once per kind, which is how trigger/action pairs such as
// gmail_receive share a name without colliding.
type ComponentKind string

const (
	KindTrigger  ComponentKind = "trigger"
	KindAction   ComponentKind = "action"
	KindReaction ComponentKind = "reaction"
)

func (k ComponentKind) String() string {
	return string(k)
}

func (k ComponentKind) Valid() bool {
	switch k {
	case KindTrigger, KindAction, KindReaction:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Service ID
// -----------------------------------------------------------------------------

// ServiceID names the upstream provider a component authenticates against.
// It keys credential rows together with the user ID. Components that need no
// credential declare ServiceNone.
type ServiceID string

const (
	ServiceNone      ServiceID = ""
	ServiceGoogle    ServiceID = "google"
	ServiceMicrosoft ServiceID = "microsoft"
	ServiceGithub    ServiceID = "github"
	ServiceSpotify   ServiceID = "spotify"
	ServiceDiscord   ServiceID = "discord"
)

func (s ServiceID) String() string {
	return string(s)
}
