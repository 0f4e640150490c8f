// Package interventiontests runs intervention cases: for every matrix entry it opens a browser
// session on the entry's platform with interventions in the entry's state, loads the case's
// site, and checks that the probes of the matching branch hold and those of the other branch
// do not.
package interventiontests
