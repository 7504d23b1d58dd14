package rolekey

// Platform namespaces.
const (
	NamespaceGlobal    = "global"
	NamespaceChannel   = "channel"
	NamespaceReporting = "reporting"
	NamespaceBroadcast = "broadcast"
	NamespaceInvite    = "invite"
)

// Actions per namespace.
const (
	ActionAdmin  = "admin"
	ActionPost   = "post"
	ActionRead   = "read"
	ActionCreate = "create"
	ActionSend   = "send"
	ActionManage = "manage"
)

// catalogue lists every recognized action per namespace, ordered from the
// highest privilege down. The order is what the hierarchy table is built
// from, so it is part of the authorization contract, not cosmetics.
var catalogue = map[string][]string{
	NamespaceGlobal:    {ActionAdmin},
	NamespaceChannel:   {ActionAdmin, ActionPost, ActionRead},
	NamespaceReporting: {ActionAdmin, ActionCreate, ActionRead},
	NamespaceBroadcast: {ActionAdmin, ActionSend},
	NamespaceInvite:    {ActionManage},
}

// GlobalAdmin is the superuser role key honored unconditionally by the
// policy engine.
var GlobalAdmin = RoleKey{Namespace: NamespaceGlobal, Action: ActionAdmin}

// InviteManage gates all invite-code administration.
var InviteManage = RoleKey{Namespace: NamespaceInvite, Action: ActionManage}

// Namespaces returns every namespace in the catalogue.
func Namespaces() []string {
	out := make([]string, 0, len(catalogue))
	for ns := range catalogue {
		out = append(out, ns)
	}
	return out
}

// Actions returns the ordered action list for a namespace, highest
// privilege first. Nil for unknown namespaces.
func Actions(namespace string) []string {
	actions, ok := catalogue[namespace]
	if !ok {
		return nil
	}
	out := make([]string, len(actions))
	copy(out, actions)
	return out
}

func validAction(namespace, action string) bool {
	for _, a := range catalogue[namespace] {
		if a == action {
			return true
		}
	}
	return false
}

// ChannelRole builds a channel-scoped key for the given channel id.
func ChannelRole(channelID, action string) (RoleKey, error) {
	if !validAction(NamespaceChannel, action) {
		return RoleKey{}, &ActionError{Namespace: NamespaceChannel, Action: action}
	}
	return RoleKey{Namespace: NamespaceChannel, Subject: channelID, Action: action}, nil
}

// ReportingRole builds a reporting namespace key.
func ReportingRole(action string) (RoleKey, error) {
	if !validAction(NamespaceReporting, action) {
		return RoleKey{}, &ActionError{Namespace: NamespaceReporting, Action: action}
	}
	return RoleKey{Namespace: NamespaceReporting, Action: action}, nil
}

// BroadcastRole builds a broadcast namespace key.
func BroadcastRole(action string) (RoleKey, error) {
	if !validAction(NamespaceBroadcast, action) {
		return RoleKey{}, &ActionError{Namespace: NamespaceBroadcast, Action: action}
	}
	return RoleKey{Namespace: NamespaceBroadcast, Action: action}, nil
}
