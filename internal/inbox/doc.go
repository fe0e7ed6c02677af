// Package inbox journals free-text messages users send outside the step
// protocol and escalates the ones asking for help to an operator.
package inbox
