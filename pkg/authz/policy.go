package authz

// Policy answers authorization questions for platform entry points. It is
// injected into services so the rule is visible and testable at each call
// site instead of being inherited from a shared owner address.
type Policy interface {
	IsAdmin(address string) bool
	IsIssuer(address string) bool
}

type staticPolicy struct {
	admins  map[string]bool
	issuers map[string]bool
}

// NewStaticPolicy builds a policy from configured admin and issuer account
// addresses. Issuers may trigger claim-gated issuance but hold no other
// admin capability.
func NewStaticPolicy(admins, issuers []string) Policy {
	p := &staticPolicy{
		admins:  make(map[string]bool, len(admins)),
		issuers: make(map[string]bool, len(issuers)),
	}
	for _, a := range admins {
		p.admins[a] = true
	}
	for _, a := range issuers {
		p.issuers[a] = true
	}
	return p
}

func (p *staticPolicy) IsAdmin(address string) bool {
	return p.admins[address]
}

func (p *staticPolicy) IsIssuer(address string) bool {
	// Admins can do anything an issuer can.
	return p.issuers[address] || p.admins[address]
}
