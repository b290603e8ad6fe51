// Package mutation applies gate-approved change proposals to persona
// memory. The controller consumes a passing gate verdict, executes each
// approved mutation in order (continuing past individual failures),
// independently re-checks that nothing targets a canonical fact, and
// forwards approved world intents to the host through a sink callback.
package mutation
