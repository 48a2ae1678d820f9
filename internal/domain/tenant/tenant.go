package tenant

import "context"

// Agent is the scannable unit of a tenant: one chat-agent instance embedded
// on one website. All scanner state is partitioned by (CompanyID, AgentID).
type Agent struct {
	CompanyID string `json:"companyId"`
	AgentID   string `json:"agentId"`
	Name      string `json:"name"`
	SiteURL   string `json:"siteUrl"`
}

// Directory resolves tenants and agents. Tenant CRUD lives in the host
// product; the scanner only ever reads through this interface.
type Directory interface {
	// ResolveAgent returns the agent for a tenant pair, or
	// errors.ErrAgentNotFound / errors.ErrCompanyNotFound.
	ResolveAgent(ctx context.Context, companyID, agentID string) (*Agent, error)
}
