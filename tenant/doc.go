// Package tenant defines the aggregate root that owns every other
// record in the system: jobs, locks, valves, alterations, and secrets
// all hang off a tenant. A tenant authenticates through API tokens and
// is admitted to the pipeline through a balance gate.
//
// Billing arithmetic itself lives outside this module; the pipeline only
// ever asks the Gate two boolean questions.
package tenant
