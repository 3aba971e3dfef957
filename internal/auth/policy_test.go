package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

func TestDefaultPolicyTable(t *testing.T) {
	p := DefaultPolicy()

	for _, op := range []Operation{OpTicketLease, OpTicketSell, OpTicketListHeld} {
		assert.True(t, p.Allows(domain.RoleAgent, op), op)
		assert.False(t, p.Allows(domain.RoleAdmin, op), op)
	}
	for _, op := range []Operation{OpTicketCreate, OpTicketUpdate, OpTicketDelete, OpTicketListAll, OpUserManage} {
		assert.True(t, p.Allows(domain.RoleAdmin, op), op)
		assert.False(t, p.Allows(domain.RoleAgent, op), op)
	}
	assert.False(t, p.Allows(domain.Role("auditor"), OpTicketListAll))
	assert.True(t, p.AllowsAny(domain.RoleAgent, OpTicketListAll, OpTicketListHeld))
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	doc := "roles:\n  admin:\n    permissions: [ticket.create, ticket.lease]\n  agent:\n    permissions: []\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.True(t, p.Allows(domain.RoleAdmin, OpTicketLease))
	assert.False(t, p.Allows(domain.RoleAgent, OpTicketSell))
}

func TestParsePolicyRejectsUnknownNames(t *testing.T) {
	_, err := ParsePolicy([]byte("roles:\n  admin:\n    permissions: [ticket.fly]\n"))
	assert.Error(t, err)

	_, err = ParsePolicy([]byte("roles:\n  root:\n    permissions: [ticket.create]\n"))
	assert.Error(t, err)

	_, err = ParsePolicy([]byte("roles: {}\n"))
	assert.Error(t, err)
}

func TestLoadPolicyDefaultsWithoutPath(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.True(t, p.Allows(domain.RoleAgent, OpTicketSell))
}
