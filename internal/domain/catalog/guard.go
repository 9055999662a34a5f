package catalog

//go:generate mockgen -source=guard.go -destination=mock/guard.go -package=mock

// Capability is a privileged market action.
type Capability uint8

const (
	CapabilityList Capability = iota + 1
	CapabilityCancel
	CapabilityConfigure
	CapabilityWithdraw
)

func (c Capability) String() string {
	switch c {
	case CapabilityList:
		return "list"
	case CapabilityCancel:
		return "cancel"
	case CapabilityConfigure:
		return "configure"
	case CapabilityWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// AccessGuard decides whether caller may perform a privileged action.
// Market never stores identities itself.
type AccessGuard interface {
	Authorize(caller string, capability Capability) bool
}

// GuardFunc adapts a function to AccessGuard.
type GuardFunc func(caller string, capability Capability) bool

func (f GuardFunc) Authorize(caller string, capability Capability) bool {
	return f(caller, capability)
}

// RoleGuard grants capabilities from static role lists. Admins hold every
// capability, listers may list and cancel, treasurers may withdraw.
type RoleGuard struct {
	grants map[string]map[Capability]struct{}
}

func NewRoleGuard(admins, listers, treasurers []string) *RoleGuard {
	g := &RoleGuard{grants: make(map[string]map[Capability]struct{})}
	g.grant(admins, CapabilityList, CapabilityCancel, CapabilityConfigure, CapabilityWithdraw)
	g.grant(listers, CapabilityList, CapabilityCancel)
	g.grant(treasurers, CapabilityWithdraw)
	return g
}

func (g *RoleGuard) grant(callers []string, capabilities ...Capability) {
	for _, caller := range callers {
		if caller == "" {
			continue
		}
		set, ok := g.grants[caller]
		if !ok {
			set = make(map[Capability]struct{})
			g.grants[caller] = set
		}
		for _, c := range capabilities {
			set[c] = struct{}{}
		}
	}
}

func (g *RoleGuard) Authorize(caller string, capability Capability) bool {
	_, ok := g.grants[caller][capability]
	return ok
}
