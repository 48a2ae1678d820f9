// Package directory adapts tenant resolution to a static JSON file. The host
// product owns tenant CRUD; this adapter is the deployment seam for running
// the engine standalone.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/wardenhq/sitewarden/internal/domain/tenant"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

type agentDTO struct {
	CompanyID string `json:"company_id"`
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
	SiteURL   string `json:"site_url"`
}

type directoryFile struct {
	Agents []agentDTO `json:"agents"`
}

// Static resolves agents from a file loaded once at startup.
type Static struct {
	agents    map[string]*tenant.Agent
	companies map[string]struct{}
}

// LoadStatic reads and validates a directory file.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}

	var file directoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse directory file %s: %w", path, err)
	}

	s := &Static{
		agents:    make(map[string]*tenant.Agent, len(file.Agents)),
		companies: make(map[string]struct{}),
	}
	for i, dto := range file.Agents {
		if dto.CompanyID == "" || dto.AgentID == "" {
			return nil, fmt.Errorf("directory entry %d: company_id and agent_id are required", i)
		}
		if dto.SiteURL != "" {
			if _, err := url.Parse(dto.SiteURL); err != nil {
				return nil, fmt.Errorf("directory entry %d: invalid site_url: %w", i, err)
			}
		}
		key := dto.CompanyID + "/" + dto.AgentID
		if _, exists := s.agents[key]; exists {
			return nil, fmt.Errorf("directory entry %d: duplicate agent %s", i, key)
		}
		s.agents[key] = &tenant.Agent{
			CompanyID: dto.CompanyID,
			AgentID:   dto.AgentID,
			Name:      dto.Name,
			SiteURL:   dto.SiteURL,
		}
		s.companies[dto.CompanyID] = struct{}{}
	}
	return s, nil
}

// ResolveAgent implements tenant.Directory.
func (s *Static) ResolveAgent(_ context.Context, companyID, agentID string) (*tenant.Agent, error) {
	if agent, ok := s.agents[companyID+"/"+agentID]; ok {
		return agent, nil
	}
	if _, ok := s.companies[companyID]; !ok {
		return nil, sharedErrors.ErrCompanyNotFound
	}
	return nil, sharedErrors.ErrAgentNotFound
}
