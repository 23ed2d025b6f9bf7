package ticketflow

import _ "embed"

// Version is the release of the ticketflow module.
//
//go:embed VERSION
var Version string
