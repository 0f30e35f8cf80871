package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/tenant"
)

// maskText is what a secret value becomes in any persisted output.
const maskText = "********"

// assembleOptions builds the environment option map of one run. Layers
// override each other in this order, weakest first: shareable secrets
// from other tenants, the job's metas, the tenant's own secrets for
// this name, and finally the identity fields the processor relies on.
//
// The returned values slice holds every secret value that must be
// masked before anything is persisted or shown.
func assembleOptions(ctx context.Context, tenants tenant.Store, j *job.Job, tokenText string) (map[string]string, []string, error) {
	opts := make(map[string]string)
	var confidential []string

	shareable, err := tenants.ShareableSecrets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("baza/pipeline: shareable secrets: %w", err)
	}
	for _, s := range shareable {
		if s.Name != j.Name || s.TenantID == j.TenantID {
			continue
		}
		opts[s.Key] = s.Value
		confidential = append(confidential, s.Value)
	}

	for _, meta := range j.Metas {
		key, value, ok := strings.Cut(meta, ":")
		if !ok || key == "" {
			continue
		}
		opts[key] = value
	}

	own, err := tenants.SecretsFor(ctx, j.TenantID, j.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("baza/pipeline: tenant secrets: %w", err)
	}
	for _, s := range own {
		opts[s.Key] = s.Value
		confidential = append(confidential, s.Value)
	}

	opts["JOB_NAME"] = j.Name
	opts["JOB_ID"] = j.ID.String()
	if tokenText != "" {
		opts["JOB_TOKEN"] = tokenText
		confidential = append(confidential, tokenText)
	}

	return opts, confidential, nil
}

// maskSecrets hides every confidential value inside text.
func maskSecrets(text string, confidential []string) string {
	for _, value := range confidential {
		if value == "" {
			continue
		}
		text = strings.ReplaceAll(text, value, maskText)
	}
	return text
}
