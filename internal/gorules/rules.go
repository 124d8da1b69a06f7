// Package gorules holds ruleguard rules run through golangci-lint's
// gocritic integration. They enforce the error and logging conventions the
// reviewers keep catching by hand.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// enhancedErrors keeps error construction on the internal builder in the
// packages whose failures are reported to telemetry. Plain fmt.Errorf there
// loses the component and category tags the Sentry hook groups by.
func enhancedErrors(m dsl.Matcher) {
	m.Match(`fmt.Errorf($*_)`).
		Where(m.File().PkgPath.Matches(`internal/(escalation|mqtt|notification|telemetry)$`)).
		Report(`use the internal errors builder so component and category tags survive`)
}

// noContextTODO rejects context.TODO. Every blocking call in this codebase
// has a real context in reach: the dispatcher's drain context, the request
// context, or the test context.
func noContextTODO(m dsl.Matcher) {
	m.Match(`context.TODO()`).
		Report(`pass a real context instead of context.TODO`)
}

// errorFields routes errors into log output through logger.Error, which
// handles nil and keeps the field key consistent.
func errorFields(m dsl.Matcher) {
	m.Match(`logger.String("error", $_)`).
		Where(!m.File().PkgPath.Matches(`internal/logger$`)).
		Report(`use logger.Error(err) for error fields`)
}
