// Package browser launches browser sessions for the harness and exposes the small set of page
// operations that probes and setup steps need: navigating with a chosen wait mode, matching CSS
// selectors or text with a visibility requirement, evaluating scripts, and capturing a snapshot
// for diagnostics.
//
// ChromeLauncher implements Launcher on top of chromedp, with one browser process per session
// so that navigation state and intervention settings are never shared.
package browser
