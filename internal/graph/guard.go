package graph

import (
	"regexp"

	"github.com/fyrsmithlabs/knowledged/internal/errs"
)

// mutationPattern matches Cypher keywords that modify the graph. The
// scan runs before execution; a read-only instance rejects any match.
var mutationPattern = regexp.MustCompile(
	`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH)\b|\bLOAD\s+CSV\b`)

// checkMutation rejects mutating queries when readOnly is set.
func checkMutation(cypher string, readOnly bool) error {
	if !readOnly {
		return nil
	}
	if kw := mutationPattern.FindString(cypher); kw != "" {
		return errs.Permission("mutating query rejected: instance is read-only (keyword %q)", kw)
	}
	return nil
}

// tenantParamPattern matches a reference to the injected $project_id
// parameter in query text.
var tenantParamPattern = regexp.MustCompile(`\$project_id\b`)

// checkTenantReference rejects caller Cypher that never references
// $project_id. The adapter forces the parameter value from the request
// scope; requiring the reference keeps the tenant filter inside the
// query itself, so scalar projections and unreturned mutations cannot
// sidestep the result-set checks.
func checkTenantReference(cypher string) error {
	if !tenantParamPattern.MatchString(cypher) {
		return errs.Validation("query must filter on $project_id; results are tenant-scoped")
	}
	return nil
}

// identifierPattern constrains relationship types and labels, which
// cannot be parameterized in Cypher and are interpolated into query
// text after validation.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// validIdentifier checks a label or relationship type.
func validIdentifier(s string) error {
	if !identifierPattern.MatchString(s) {
		return errs.Validation("invalid graph identifier %q", s)
	}
	return nil
}
