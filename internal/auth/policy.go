package auth

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

// Operation names an action guarded by the access policy.
type Operation string

const (
	OpTicketCreate   Operation = "ticket.create"
	OpTicketUpdate   Operation = "ticket.update"
	OpTicketDelete   Operation = "ticket.delete"
	OpTicketListAll  Operation = "ticket.list_all"
	OpTicketLease    Operation = "ticket.lease"
	OpTicketSell     Operation = "ticket.sell"
	OpTicketListHeld Operation = "ticket.list_held"
	OpUserManage     Operation = "user.manage"
)

var knownOperations = map[Operation]struct{}{
	OpTicketCreate:   {},
	OpTicketUpdate:   {},
	OpTicketDelete:   {},
	OpTicketListAll:  {},
	OpTicketLease:    {},
	OpTicketSell:     {},
	OpTicketListHeld: {},
	OpUserManage:     {},
}

//go:embed default_policy.yml
var defaultPolicyYAML []byte

// Policy is the role x operation permission table. Anything not listed is denied.
type Policy struct {
	grants map[domain.Role]map[Operation]struct{}
}

type policyFile struct {
	Roles map[string]struct {
		Description string   `yaml:"description"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
}

// DefaultPolicy returns the built-in table: admins manage, agents lease and sell.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded policy: %v", err))
	}
	return p
}

// LoadPolicy reads a policy file, falling back to the default table for an empty path.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes and validates a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var doc policyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("policy defines no roles")
	}

	p := &Policy{grants: make(map[domain.Role]map[Operation]struct{}, len(doc.Roles))}
	for name, role := range doc.Roles {
		r := domain.Role(name)
		if !r.Valid() {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		ops := make(map[Operation]struct{}, len(role.Permissions))
		for _, perm := range role.Permissions {
			op := Operation(perm)
			if _, ok := knownOperations[op]; !ok {
				return nil, fmt.Errorf("role %s grants unknown operation %q", name, perm)
			}
			ops[op] = struct{}{}
		}
		p.grants[r] = ops
	}
	return p, nil
}

// Allows reports whether role may perform op.
func (p *Policy) Allows(role domain.Role, op Operation) bool {
	if p == nil {
		return false
	}
	_, ok := p.grants[role][op]
	return ok
}

// AllowsAny reports whether role may perform at least one of ops.
func (p *Policy) AllowsAny(role domain.Role, ops ...Operation) bool {
	for _, op := range ops {
		if p.Allows(role, op) {
			return true
		}
	}
	return false
}
