// Package audit records security-relevant credential events: registrations,
// login attempts, and token issuance. Events are persisted to the primary
// database and pruned on a retention schedule. Recording is best effort;
// an audit failure never fails the request that triggered it.
package audit
